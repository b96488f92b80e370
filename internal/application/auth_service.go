package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

// Service orchestrates the authentication flows exposed over HTTP.
type Service struct {
	Repo     repository.AccountRepository
	Store    *CredentialStore
	Hasher   PasswordHasher
	OTP      *OTPVerifier
	Guard    *LoginAttemptGuard
	Tokens   TokenIssuer
	Linker   *OAuthLinker
	Notifier OTPNotifier
	Revoker  TokenRevoker
	Audit    AuditSink
	History  AuditReader
	Logger   *logrus.Logger
	Clock    func() time.Time

	// ExposeOTP returns issued codes in responses. Development only.
	ExposeOTP bool
}

type Deps struct {
	Repo      repository.AccountRepository
	Hasher    PasswordHasher
	Tokens    TokenIssuer
	Verifier  AssertionVerifier
	Notifier  OTPNotifier
	Revoker   TokenRevoker
	Audit     AuditSink
	History   AuditReader
	Logger    *logrus.Logger
	Policy    entity.LockPolicy
	OTPTTL    time.Duration
	OTPLength int
	ExposeOTP bool
	Clock     func() time.Time
}

func NewService(d Deps) *Service {
	store := NewCredentialStore(d.Repo, d.Hasher)
	otp := NewOTPVerifier(d.Repo, d.OTPTTL, d.OTPLength)
	otp.Clock = d.Clock
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	guard := NewLoginAttemptGuard(d.Repo, d.Policy, logger)
	guard.Clock = d.Clock
	audit := d.Audit
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &Service{
		Repo:      d.Repo,
		Store:     store,
		Hasher:    d.Hasher,
		OTP:       otp,
		Guard:     guard,
		Tokens:    d.Tokens,
		Linker:    NewOAuthLinker(d.Repo, store, d.Verifier, logger),
		Notifier:  d.Notifier,
		Revoker:   d.Revoker,
		Audit:     audit,
		History:   d.History,
		Logger:    logger,
		Clock:     d.Clock,
		ExposeOTP: d.ExposeOTP,
	}
}

type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
}

// AuthResult is returned by every flow that ends with a session token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *entity.Account
	OTP       string
	Created   bool
}

type OTPIssue struct {
	Code      string
	ExpiresAt time.Time
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Password == "" {
		return nil, apperr.Validation("password is required")
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperr.Validation("passwords do not match")
	}

	challenge, code, err := s.OTP.NewChallenge()
	if err != nil {
		return nil, err
	}
	a, err := s.Store.Create(ctx, NewAccount{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  in.Password,
		OTP:       challenge,
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, a, code, *challenge.ExpiresAt)

	token, exp, err := s.Tokens.Issue(a.ID)
	if err != nil {
		return nil, err
	}
	Stats.Add("register", 1)
	s.record(ctx, AuditRegister, a, nil)

	res := &AuthResult{Token: token, ExpiresAt: exp, Account: a, Created: true}
	if s.ExposeOTP {
		res.OTP = code
	}
	return res, nil
}

// VerifyOTP consumes the account's outstanding code and sets the status flag
// named by flag.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, flag entity.VerificationFlag) (*entity.Account, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperr.Validation("otp is required")
	}
	flag, ok := entity.ParseVerificationFlag(string(flag))
	if !ok {
		return nil, apperr.Validation("unknown verification channel")
	}
	a, err := s.Repo.FindByEmail(ctx, NormalizeEmail(email), repository.ProjectionPublic)
	if err != nil {
		return nil, err
	}
	updated, err := s.OTP.Verify(ctx, a, strings.TrimSpace(code), flag)
	if err != nil {
		Stats.Add("otp_failure", 1)
		return nil, err
	}
	s.record(ctx, AuditOTPVerified, updated, map[string]any{"channel": string(flag)})
	return updated, nil
}

// ResendOTP replaces the outstanding code. It refuses when flag is already set.
func (s *Service) ResendOTP(ctx context.Context, email string, flag entity.VerificationFlag) (*OTPIssue, error) {
	flag, ok := entity.ParseVerificationFlag(string(flag))
	if !ok {
		return nil, apperr.Validation("unknown verification channel")
	}
	a, err := s.Repo.FindByEmail(ctx, NormalizeEmail(email), repository.ProjectionPublic)
	if err != nil {
		return nil, err
	}
	if a.Status.Verified(flag) {
		return nil, apperr.Validation(string(flag) + " already verified")
	}
	code, exp, err := s.OTP.Issue(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, a, code, exp)
	s.record(ctx, AuditOTPResent, a, nil)

	out := &OTPIssue{ExpiresAt: exp}
	if s.ExposeOTP {
		out.Code = code
	}
	return out, nil
}

// Login checks credentials under the lockout policy. A locked account is
// refused before the password is looked at and its counters are untouched.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	a, err := s.Repo.FindByEmail(ctx, NormalizeEmail(email), repository.ProjectionInternal)
	if errors.Is(err, apperr.ErrNotFound) {
		Stats.Add("login_failure", 1)
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.Status.IsActive {
		return nil, apperr.ErrAccountInactive
	}
	if s.Guard.IsLocked(a) {
		Stats.Add("login_locked", 1)
		s.record(ctx, AuditLoginLocked, a, map[string]any{"lock_until": a.Security.LockUntil})
		return nil, apperr.ErrAccountLocked
	}
	if !a.Credential.HasPassword() {
		Stats.Add("login_failure", 1)
		return nil, apperr.ErrInvalidCredentials
	}

	ok, err := s.Hasher.Verify(password, *a.Credential.PasswordHash)
	if err != nil {
		s.Logger.WithError(err).WithField("account_id", a.ID).Error("password verification failed")
		return nil, apperr.Wrap(apperr.KindCorruptCredential, apperr.ErrCorruptCredential.Message, err)
	}
	if !ok {
		Stats.Add("login_failure", 1)
		sec, err := s.Guard.RecordFailure(ctx, a.ID)
		if err != nil {
			s.Logger.WithError(err).WithField("account_id", a.ID).Error("record login failure")
			return nil, err
		}
		s.record(ctx, AuditLoginFailure, a, map[string]any{"attempts": sec.LoginAttempts})
		if sec.LockUntil != nil && sec.LoginAttempts == s.Guard.Policy.Threshold {
			s.record(ctx, AuditAccountLocked, a, map[string]any{"lock_until": sec.LockUntil})
		}
		return nil, apperr.ErrInvalidCredentials
	}

	if err := s.Guard.RecordSuccess(ctx, a.ID); err != nil {
		return nil, err
	}
	token, exp, err := s.Tokens.Issue(a.ID)
	if err != nil {
		return nil, err
	}
	Stats.Add("login_success", 1)
	s.record(ctx, AuditLoginSuccess, a, nil)

	a.Credential = entity.Credential{}
	a.Security = entity.Security{}
	now := clock(s.Clock).now()
	a.LastLogin = &now
	return &AuthResult{Token: token, ExpiresAt: exp, Account: a}, nil
}

// ExternalLogin signs in with a provider assertion, linking or creating the
// local account as needed.
func (s *Service) ExternalLogin(ctx context.Context, assertion string) (*AuthResult, error) {
	a, created, err := s.Linker.Resolve(ctx, assertion)
	if err != nil {
		return nil, err
	}
	if !a.Status.IsActive {
		return nil, apperr.ErrAccountInactive
	}
	if err := s.Guard.RecordExternalSignIn(ctx, a.ID); err != nil {
		return nil, err
	}
	token, exp, err := s.Tokens.Issue(a.ID)
	if err != nil {
		return nil, err
	}
	ev := AuditExternalLogin
	if created {
		ev = AuditExternalSignup
	}
	Stats.Add("external_login", 1)
	s.record(ctx, ev, a, map[string]any{"provider": a.External.Provider})
	return &AuthResult{Token: token, ExpiresAt: exp, Account: a, Created: created}, nil
}

// Me returns the token subject's account. A subject that no longer exists
// is reported as an invalid token.
func (s *Service) Me(ctx context.Context, accountID string) (*entity.Account, error) {
	a, err := s.Repo.FindByID(ctx, accountID, repository.ProjectionPublic)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrTokenInvalid
	}
	return a, err
}

// Activity lists the caller's recent security events. Without a reader it
// returns an empty list.
func (s *Service) Activity(ctx context.Context, accountID string, size int) ([]AuditEvent, error) {
	if s.History == nil {
		return []AuditEvent{}, nil
	}
	return s.History.Recent(ctx, accountID, size)
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *helpers.Claims) error {
	if claims == nil {
		return apperr.ErrTokenInvalid
	}
	if s.Revoker != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	s.record(ctx, AuditLogout, &entity.Account{ID: claims.AccountID()}, nil)
	return nil
}

// notify delivers the code; failures are logged and never fail the request.
func (s *Service) notify(ctx context.Context, a *entity.Account, code string, exp time.Time) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyOTP(ctx, a, code, exp); err != nil {
		s.Logger.WithError(err).WithField("account_id", a.ID).Warn("otp delivery failed")
	}
}

func (s *Service) record(ctx context.Context, typ string, a *entity.Account, meta map[string]any) {
	rm := RequestMetaFrom(ctx)
	ev := AuditEvent{
		Type:      typ,
		IP:        rm.IP,
		UserAgent: rm.UserAgent,
		RequestID: rm.RequestID,
		At:        clock(s.Clock).now(),
		Meta:      meta,
	}
	if a != nil {
		ev.AccountID = a.ID
		ev.Email = a.Identity.Email
	}
	s.Audit.Record(ctx, ev)
}
