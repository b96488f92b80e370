package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	"github.com/oksasatya/ailens-auth/internal/infrastructure/memory"
)

// flakyRepo fails the first n failure updates with a transient error.
type flakyRepo struct {
	*memory.AccountRepository
	failures int
	calls    int
}

func (f *flakyRepo) RecordLoginFailure(ctx context.Context, id string, now time.Time, p entity.LockPolicy) (entity.Security, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return entity.Security{}, fmt.Errorf("%w: could not serialize access", repository.ErrTransient)
	}
	return f.AccountRepository.RecordLoginFailure(ctx, id, now, p)
}

func seedAccount(t *testing.T, repo repository.AccountRepository) string {
	t.Helper()
	hash := "x"
	a := &entity.Account{
		Identity:   entity.Identity{Email: "g@x.io", Phone: "1"},
		Credential: entity.Credential{PasswordHash: &hash},
		Status:     entity.Status{IsActive: true},
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a.ID
}

func TestLoginAttemptGuard_RetriesTransientOnce(t *testing.T) {
	repo := &flakyRepo{AccountRepository: memory.NewAccountRepository(), failures: 1}
	id := seedAccount(t, repo)
	g := NewLoginAttemptGuard(repo, entity.DefaultLockPolicy(), nil)

	s, err := g.RecordFailure(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.LoginAttempts)
	assert.Equal(t, 2, repo.calls)
}

func TestLoginAttemptGuard_GivesUpAfterSecondTransient(t *testing.T) {
	repo := &flakyRepo{AccountRepository: memory.NewAccountRepository(), failures: 2}
	id := seedAccount(t, repo)
	g := NewLoginAttemptGuard(repo, entity.DefaultLockPolicy(), nil)

	_, err := g.RecordFailure(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrTransient)
	assert.Equal(t, 2, repo.calls)
}

func TestLoginAttemptGuard_IsLockedUsesClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	g := &LoginAttemptGuard{Policy: entity.DefaultLockPolicy(), Clock: func() time.Time { return now }}

	a := &entity.Account{Security: entity.Security{LoginAttempts: 5, LockUntil: &until}}
	assert.True(t, g.IsLocked(a))

	g.Clock = func() time.Time { return until }
	assert.False(t, g.IsLocked(a))
}
