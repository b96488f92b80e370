package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/ailens-auth/internal/domain/entity"
)

// Projection selects which view of an account a finder loads.
type Projection int

const (
	// ProjectionPublic never loads the password hash.
	ProjectionPublic Projection = iota
	// ProjectionInternal loads the password hash; only credential checks use it.
	ProjectionInternal
)

// ErrTransient marks store contention that may succeed when retried.
var ErrTransient = errors.New("transient store contention")

// AccountRepository is the CredentialStore contract. Every mutation is a single
// atomic update on the stored record; no method does fetch-mutate-save.
//
// Finders return apperr.ErrNotFound when no account matches. Create returns an
// apperr duplicate error naming the colliding field.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	FindByID(ctx context.Context, id string, p Projection) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string, p Projection) (*entity.Account, error)
	FindByPhone(ctx context.Context, phone string, p Projection) (*entity.Account, error)
	FindByExternalID(ctx context.Context, externalID string, p Projection) (*entity.Account, error)

	// SetOTP replaces the outstanding challenge and resets its verified flag.
	SetOTP(ctx context.Context, id string, otp entity.OTPChallenge) error
	// ConsumeOTP clears the challenge and sets the verified flags only if code
	// still matches and has not expired at now. It returns apperr.ErrInvalidOTP
	// when the conditional update matches nothing.
	ConsumeOTP(ctx context.Context, id, code string, flag entity.VerificationFlag, now time.Time) (*entity.Account, error)

	// RecordLoginFailure applies Security.AfterFailure atomically and returns the new state.
	RecordLoginFailure(ctx context.Context, id string, now time.Time, p entity.LockPolicy) (entity.Security, error)
	// RecordLoginSuccess clears attempts and lock and stamps the last login.
	RecordLoginSuccess(ctx context.Context, id string, now time.Time) error
	// TouchLastLogin stamps the last login and leaves attempts and lock alone.
	TouchLastLogin(ctx context.Context, id string, now time.Time) error

	// LinkExternalIdentity attaches ext to an account that has none linked yet.
	LinkExternalIdentity(ctx context.Context, id string, ext entity.ExternalIdentity) (*entity.Account, error)
}
