package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
)

// LoginAttemptGuard drives the per-account lockout state machine. State lives
// only in the store; the guard applies transitions through atomic updates.
type LoginAttemptGuard struct {
	Repo   repository.AccountRepository
	Policy entity.LockPolicy
	Logger *logrus.Logger
	Clock  func() time.Time
}

func NewLoginAttemptGuard(repo repository.AccountRepository, policy entity.LockPolicy, logger *logrus.Logger) *LoginAttemptGuard {
	return &LoginAttemptGuard{Repo: repo, Policy: policy, Logger: logger}
}

func (g *LoginAttemptGuard) IsLocked(a *entity.Account) bool {
	return a.Security.IsLocked(clock(g.Clock).now())
}

// RecordFailure counts one failed attempt. Store contention is retried once.
func (g *LoginAttemptGuard) RecordFailure(ctx context.Context, accountID string) (entity.Security, error) {
	now := clock(g.Clock).now()
	s, err := g.Repo.RecordLoginFailure(ctx, accountID, now, g.Policy)
	if errors.Is(err, repository.ErrTransient) {
		if g.Logger != nil {
			g.Logger.WithError(err).WithField("account_id", accountID).Warn("retrying login failure update")
		}
		s, err = g.Repo.RecordLoginFailure(ctx, accountID, now, g.Policy)
	}
	if err != nil {
		return entity.Security{}, err
	}
	if s.IsLocked(now) && s.LoginAttempts == g.Policy.Threshold && g.Logger != nil {
		g.Logger.WithFields(logrus.Fields{"account_id": accountID, "lock_until": s.LockUntil}).Warn("account locked")
	}
	return s, nil
}

func (g *LoginAttemptGuard) RecordSuccess(ctx context.Context, accountID string) error {
	return g.Repo.RecordLoginSuccess(ctx, accountID, clock(g.Clock).now())
}

// RecordExternalSignIn stamps the last login of a provider sign-in. A
// password lockout survives it.
func (g *LoginAttemptGuard) RecordExternalSignIn(ctx context.Context, accountID string) error {
	return g.Repo.TouchLastLogin(ctx, accountID, clock(g.Clock).now())
}
