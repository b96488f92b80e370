package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurity_FiveFailuresLock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := DefaultLockPolicy()

	s := Security{}
	for i := 1; i < p.Threshold; i++ {
		s = s.AfterFailure(now, p)
		assert.Equal(t, i, s.LoginAttempts)
		assert.False(t, s.IsLocked(now), "attempt %d must not lock", i)
	}

	s = s.AfterFailure(now, p)
	require.True(t, s.IsLocked(now))
	assert.Equal(t, 5, s.LoginAttempts)
	assert.Equal(t, now.Add(2*time.Hour), *s.LockUntil)
}

func TestSecurity_FailureWhileLockedKeepsLockUntil(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	s := Security{LoginAttempts: 5, LockUntil: &until}

	next := s.AfterFailure(now.Add(time.Minute), DefaultLockPolicy())
	assert.Equal(t, 6, next.LoginAttempts)
	assert.Equal(t, until, *next.LockUntil)
}

func TestSecurity_ExpiredLockRestartsAtOne(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(-time.Second)
	s := Security{LoginAttempts: 5, LockUntil: &until}

	assert.False(t, s.IsLocked(now))
	next := s.AfterFailure(now, DefaultLockPolicy())
	assert.Equal(t, 1, next.LoginAttempts)
	assert.Nil(t, next.LockUntil)

	assert.Equal(t, Security{}, next.AfterSuccess())
}

func TestSecurity_LockBoundaryIsExclusive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Security{LockUntil: &now}
	assert.False(t, s.IsLocked(now))
	assert.True(t, s.IsLocked(now.Add(-time.Nanosecond)))
}

func TestAccount_PublicOmitsCredential(t *testing.T) {
	hash := "$2a$10$abc"
	a := &Account{ID: "a1", Identity: Identity{Email: "a@b.co", Phone: "0123456789"}, Credential: Credential{PasswordHash: &hash}}
	pub := a.Public()
	assert.Equal(t, "a1", pub.ID)
	assert.Equal(t, "a@b.co", pub.Email)
	assert.True(t, a.HasAuthMethod())
}
