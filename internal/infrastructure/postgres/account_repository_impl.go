package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Column lists share one scan order; the public list never reads password_hash.
const (
	publicCols = `id, first_name, last_name, email, phone, NULL::text AS password_hash,
		otp_code, otp_expires_at, otp_verified, login_attempts, lock_until,
		provider, external_id, external_profile,
		is_active, is_email_verified, is_phone_verified, is_biometric_enrolled,
		last_login, created_at, updated_at`
	internalCols = `id, first_name, last_name, email, phone, password_hash,
		otp_code, otp_expires_at, otp_verified, login_attempts, lock_until,
		provider, external_id, external_profile,
		is_active, is_email_verified, is_phone_verified, is_biometric_enrolled,
		last_login, created_at, updated_at`
)

func cols(p repository.Projection) string {
	if p == repository.ProjectionInternal {
		return internalCols
	}
	return publicCols
}

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, first_name, last_name, email, phone, password_hash,
			otp_code, otp_expires_at, otp_verified, provider, external_id, external_profile,
			is_active, is_email_verified, is_phone_verified, is_biometric_enrolled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`, a.ID, a.FirstName, a.LastName, a.Identity.Email, a.Identity.Phone, a.Credential.PasswordHash,
		a.OTP.Code, a.OTP.ExpiresAt, a.OTP.Verified, a.External.Provider, a.External.ExternalID, nullJSON(a.External.Profile),
		a.Status.IsActive, a.Status.IsEmailVerified, a.Status.IsPhoneVerified, a.Status.IsBiometricEnrolled)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string, p repository.Projection) (*entity.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+cols(p)+` FROM accounts WHERE id = $1`, id)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string, p repository.Projection) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+cols(p)+` FROM accounts WHERE email = $1`, email)
}

func (r *AccountRepository) FindByPhone(ctx context.Context, phone string, p repository.Projection) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+cols(p)+` FROM accounts WHERE phone = $1`, phone)
}

func (r *AccountRepository) FindByExternalID(ctx context.Context, externalID string, p repository.Projection) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+cols(p)+` FROM accounts WHERE external_id = $1`, externalID)
}

func (r *AccountRepository) SetOTP(ctx context.Context, id string, otp entity.OTPChallenge) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET otp_code = $2, otp_expires_at = $3, otp_verified = FALSE, updated_at = now()
		WHERE id = $1
	`, id, otp.Code, otp.ExpiresAt)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ConsumeOTP(ctx context.Context, id, code string, flag entity.VerificationFlag, now time.Time) (*entity.Account, error) {
	a, err := r.findOne(ctx, `
		UPDATE accounts
		SET otp_code = NULL, otp_expires_at = NULL, otp_verified = TRUE,
			is_phone_verified = is_phone_verified OR $4,
			is_email_verified = is_email_verified OR $5,
			updated_at = now()
		WHERE id = $1 AND otp_code = $2 AND otp_expires_at > $3
		RETURNING `+publicCols,
		id, code, now, flag != entity.VerifyEmail, flag == entity.VerifyEmail)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidOTP
	}
	return a, err
}

// RecordLoginFailure mirrors entity.Security.AfterFailure in one statement.
// Postgres evaluates every SET expression against the pre-update row and
// re-reads the row after a concurrent writer commits, so no increment is lost.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id string, now time.Time, p entity.LockPolicy) (entity.Security, error) {
	var s entity.Security
	err := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET login_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
				ELSE login_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN NULL
				WHEN lock_until IS NULL AND login_attempts + 1 >= $3 THEN $4::timestamptz
				ELSE lock_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING login_attempts, lock_until
	`, id, now, p.Threshold, now.Add(p.Window)).Scan(&s.LoginAttempts, &s.LockUntil)
	if err != nil {
		return entity.Security{}, mapErr(err)
	}
	return s, nil
}

func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id string, now time.Time) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET login_attempts = 0, lock_until = NULL, last_login = $2, updated_at = now()
		WHERE id = $1
	`, id, now)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string, now time.Time) error {
	res, err := r.pool.Exec(ctx, `UPDATE accounts SET last_login = $2, updated_at = now() WHERE id = $1`, id, now)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) LinkExternalIdentity(ctx context.Context, id string, ext entity.ExternalIdentity) (*entity.Account, error) {
	if !ext.Linked() {
		return nil, apperr.Validation("external id is required")
	}
	a, err := r.findOne(ctx, `
		UPDATE accounts
		SET provider = $2, external_id = $3, external_profile = $4, is_email_verified = TRUE, updated_at = now()
		WHERE id = $1 AND external_id IS NULL
		RETURNING `+publicCols,
		id, ext.Provider, ext.ExternalID, nullJSON(ext.Profile))
	if errors.Is(err, apperr.ErrNotFound) {
		if _, findErr := r.FindByID(ctx, id, repository.ProjectionPublic); findErr != nil {
			return nil, findErr
		}
		return nil, apperr.Duplicate("external identity")
	}
	return a, err
}

func (r *AccountRepository) findOne(ctx context.Context, sql string, args ...any) (*entity.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return a, nil
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	var profile []byte
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Identity.Email, &a.Identity.Phone, &a.Credential.PasswordHash,
		&a.OTP.Code, &a.OTP.ExpiresAt, &a.OTP.Verified, &a.Security.LoginAttempts, &a.Security.LockUntil,
		&a.External.Provider, &a.External.ExternalID, &profile,
		&a.Status.IsActive, &a.Status.IsEmailVerified, &a.Status.IsPhoneVerified, &a.Status.IsBiometricEnrolled,
		&a.LastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.External.Profile = profile
	return a, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// mapErr converts driver errors into the domain taxonomy.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Duplicate(constraintField(pgErr.ConstraintName))
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", repository.ErrTransient, pgErr.Message)
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func constraintField(name string) string {
	switch name {
	case "accounts_email_key":
		return "email"
	case "accounts_phone_key":
		return "phone"
	case "accounts_external_id_key":
		return "external id"
	default:
		return "account"
	}
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
