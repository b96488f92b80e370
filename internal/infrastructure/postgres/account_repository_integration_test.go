//go:build integration

package postgres

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/infrastructure/postgres/
func testRepo(t *testing.T) *AccountRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, Migrate(dsn, "../../../db/migrations", logger))

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, PoolOptions{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	truncate(t, pool)
	return NewAccountRepository(pool)
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE accounts`)
	require.NoError(t, err)
}

// pgNow is microsecond precision to match timestamptz.
func pgNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func seedPG(t *testing.T, r *AccountRepository, email, phone string) *entity.Account {
	t.Helper()
	hash := "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold"
	a := &entity.Account{
		Identity:   entity.Identity{Email: email, Phone: phone},
		Credential: entity.Credential{PasswordHash: &hash},
		Status:     entity.Status{IsActive: true},
	}
	require.NoError(t, r.Create(context.Background(), a))
	return a
}

func TestPG_CreateDuplicateNamesField(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	seedPG(t, r, "a@x.io", "0100000001")

	hash := "h"
	err := r.Create(ctx, &entity.Account{
		Identity:   entity.Identity{Email: "a@x.io", Phone: "0100000002"},
		Credential: entity.Credential{PasswordHash: &hash},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))
	assert.Equal(t, "email already in use", apperr.PublicMessage(err))

	err = r.Create(ctx, &entity.Account{
		Identity:   entity.Identity{Email: "b@x.io", Phone: "0100000001"},
		Credential: entity.Credential{PasswordHash: &hash},
	})
	assert.Equal(t, "phone already in use", apperr.PublicMessage(err))
}

func TestPG_ProjectionHidesHash(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	a := seedPG(t, r, "a@x.io", "0100000001")

	pub, err := r.FindByID(ctx, a.ID, repository.ProjectionPublic)
	require.NoError(t, err)
	assert.Nil(t, pub.Credential.PasswordHash)

	in, err := r.FindByEmail(ctx, "a@x.io", repository.ProjectionInternal)
	require.NoError(t, err)
	require.NotNil(t, in.Credential.PasswordHash)

	_, err = r.FindByID(ctx, "not-a-uuid", repository.ProjectionPublic)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = r.FindByID(ctx, uuid.NewString(), repository.ProjectionPublic)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPG_RecordLoginFailure(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	p := entity.LockPolicy{Threshold: 3, Window: time.Hour}
	now := pgNow()

	t.Run("locks at threshold", func(t *testing.T) {
		a := seedPG(t, r, "lock@x.io", "0200000001")
		var s entity.Security
		var err error
		for i := 1; i <= p.Threshold; i++ {
			s, err = r.RecordLoginFailure(ctx, a.ID, now, p)
			require.NoError(t, err)
			assert.Equal(t, i, s.LoginAttempts)
		}
		require.NotNil(t, s.LockUntil)
		assert.True(t, now.Add(p.Window).Equal(*s.LockUntil))

		// lock window is not extended by further failures
		s, err = r.RecordLoginFailure(ctx, a.ID, now.Add(time.Minute), p)
		require.NoError(t, err)
		assert.Equal(t, p.Threshold+1, s.LoginAttempts)
		assert.True(t, now.Add(p.Window).Equal(*s.LockUntil))
	})

	t.Run("expired lock restarts at one", func(t *testing.T) {
		a := seedPG(t, r, "expired@x.io", "0200000002")
		for i := 0; i < p.Threshold; i++ {
			_, err := r.RecordLoginFailure(ctx, a.ID, now, p)
			require.NoError(t, err)
		}
		s, err := r.RecordLoginFailure(ctx, a.ID, now.Add(p.Window), p)
		require.NoError(t, err)
		assert.Equal(t, 1, s.LoginAttempts)
		assert.Nil(t, s.LockUntil)
	})

	t.Run("matches the entity rule", func(t *testing.T) {
		a := seedPG(t, r, "rule@x.io", "0200000003")
		var want entity.Security
		for i, at := range []time.Time{now, now, now, now.Add(30 * time.Minute), now.Add(2 * time.Hour), now.Add(2 * time.Hour)} {
			want = want.AfterFailure(at, p)
			got, err := r.RecordLoginFailure(ctx, a.ID, at, p)
			require.NoError(t, err)
			assert.Equal(t, want.LoginAttempts, got.LoginAttempts, "step %d", i)
			assert.Equal(t, want.LockUntil == nil, got.LockUntil == nil, "step %d", i)
		}
	})

	t.Run("concurrent failures lose no updates", func(t *testing.T) {
		a := seedPG(t, r, "race@x.io", "0200000004")
		big := entity.LockPolicy{Threshold: 8, Window: time.Hour}
		var wg sync.WaitGroup
		for i := 0; i < big.Threshold; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.RecordLoginFailure(ctx, a.ID, now, big)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := r.FindByID(ctx, a.ID, repository.ProjectionPublic)
		require.NoError(t, err)
		assert.Equal(t, big.Threshold, got.Security.LoginAttempts)
		assert.True(t, got.Security.IsLocked(now))
	})

	t.Run("success and external sign-in", func(t *testing.T) {
		a := seedPG(t, r, "reset@x.io", "0200000005")
		for i := 0; i < p.Threshold; i++ {
			_, err := r.RecordLoginFailure(ctx, a.ID, now, p)
			require.NoError(t, err)
		}

		require.NoError(t, r.TouchLastLogin(ctx, a.ID, now))
		got, err := r.FindByID(ctx, a.ID, repository.ProjectionPublic)
		require.NoError(t, err)
		assert.True(t, got.Security.IsLocked(now))
		require.NotNil(t, got.LastLogin)

		require.NoError(t, r.RecordLoginSuccess(ctx, a.ID, now))
		got, err = r.FindByID(ctx, a.ID, repository.ProjectionPublic)
		require.NoError(t, err)
		assert.Zero(t, got.Security.LoginAttempts)
		assert.Nil(t, got.Security.LockUntil)

		assert.ErrorIs(t, r.TouchLastLogin(ctx, uuid.NewString(), now), apperr.ErrNotFound)
	})
}

func TestPG_ConsumeOTP(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	now := pgNow()
	code := "123456"
	exp := now.Add(10 * time.Minute)

	a := seedPG(t, r, "otp@x.io", "0300000001")
	require.NoError(t, r.SetOTP(ctx, a.ID, entity.OTPChallenge{Code: &code, ExpiresAt: &exp}))

	_, err := r.ConsumeOTP(ctx, a.ID, "654321", entity.VerifyPhone, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP)
	_, err = r.ConsumeOTP(ctx, a.ID, code, entity.VerifyPhone, exp)
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP, "expiry is exclusive")

	got, err := r.ConsumeOTP(ctx, a.ID, code, entity.VerifyPhone, now)
	require.NoError(t, err)
	assert.True(t, got.Status.IsPhoneVerified)
	assert.False(t, got.Status.IsEmailVerified)
	assert.True(t, got.OTP.Verified)
	assert.Nil(t, got.OTP.Code)
	assert.Nil(t, got.Credential.PasswordHash)

	_, err = r.ConsumeOTP(ctx, a.ID, code, entity.VerifyPhone, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidOTP, "single use")

	b := seedPG(t, r, "otp2@x.io", "0300000002")
	require.NoError(t, r.SetOTP(ctx, b.ID, entity.OTPChallenge{Code: &code, ExpiresAt: &exp}))
	got, err = r.ConsumeOTP(ctx, b.ID, code, entity.VerifyEmail, now)
	require.NoError(t, err)
	assert.True(t, got.Status.IsEmailVerified)
	assert.False(t, got.Status.IsPhoneVerified)
}

func TestPG_LinkExternalIdentity(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()
	sub := "google-sub-1"
	ext := entity.ExternalIdentity{Provider: "google", ExternalID: &sub, Profile: []byte(`{"sub":"google-sub-1"}`)}

	a := seedPG(t, r, "link@x.io", "0400000001")
	linked, err := r.LinkExternalIdentity(ctx, a.ID, ext)
	require.NoError(t, err)
	assert.True(t, linked.External.Linked())
	assert.True(t, linked.Status.IsEmailVerified)

	other := "google-sub-2"
	_, err = r.LinkExternalIdentity(ctx, a.ID, entity.ExternalIdentity{Provider: "google", ExternalID: &other})
	assert.Equal(t, "external identity already in use", apperr.PublicMessage(err))

	b := seedPG(t, r, "link2@x.io", "0400000002")
	_, err = r.LinkExternalIdentity(ctx, b.ID, ext)
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))
	assert.Equal(t, "external id already in use", apperr.PublicMessage(err))

	_, err = r.LinkExternalIdentity(ctx, uuid.NewString(), entity.ExternalIdentity{Provider: "google", ExternalID: &other})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	found, err := r.FindByExternalID(ctx, sub, repository.ProjectionPublic)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}
