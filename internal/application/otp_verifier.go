package application

import (
	"context"
	"time"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

// OTPVerifier issues and checks single-use, time-limited passcodes.
type OTPVerifier struct {
	Repo   repository.AccountRepository
	TTL    time.Duration
	Length int
	Clock  func() time.Time
}

func NewOTPVerifier(repo repository.AccountRepository, ttl time.Duration, length int) *OTPVerifier {
	return &OTPVerifier{Repo: repo, TTL: ttl, Length: length}
}

// NewChallenge builds a fresh challenge without persisting it; callers that
// create an account store it in the same insert.
func (v *OTPVerifier) NewChallenge() (entity.OTPChallenge, string, error) {
	code, err := helpers.GenOTPCode(v.Length)
	if err != nil {
		return entity.OTPChallenge{}, "", err
	}
	exp := clock(v.Clock).now().Add(v.TTL)
	return entity.OTPChallenge{Code: &code, ExpiresAt: &exp}, code, nil
}

// Issue replaces the account's outstanding challenge with a new one in a
// single update.
func (v *OTPVerifier) Issue(ctx context.Context, accountID string) (string, time.Time, error) {
	ch, code, err := v.NewChallenge()
	if err != nil {
		return "", time.Time{}, err
	}
	if err := v.Repo.SetOTP(ctx, accountID, ch); err != nil {
		return "", time.Time{}, err
	}
	return code, *ch.ExpiresAt, nil
}

// Verify checks supplied against a's challenge and consumes it on success.
func (v *OTPVerifier) Verify(ctx context.Context, a *entity.Account, supplied string, flag entity.VerificationFlag) (*entity.Account, error) {
	if a.OTP.Code == nil || !helpers.OTPEqual(*a.OTP.Code, supplied) {
		return nil, apperr.ErrInvalidOTP
	}
	now := clock(v.Clock).now()
	if a.OTP.ExpiresAt == nil || !now.Before(*a.OTP.ExpiresAt) {
		return nil, apperr.ErrExpiredOTP
	}
	return v.Repo.ConsumeOTP(ctx, a.ID, supplied, flag, now)
}
