package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
)

func googleAssertion(sub, email string, verified bool) *ExternalAssertion {
	return &ExternalAssertion{
		Provider:      "google",
		Subject:       sub,
		Email:         email,
		EmailVerified: verified,
		GivenName:     "Grace",
		FamilyName:    "Hopper",
		Claims:        map[string]any{"sub": sub, "email": email},
	}
}

func TestExternalLogin_CreatesAccountOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.verifier.assertions["tok"] = googleAssertion("g-1", "grace@x.io", true)

	first, err := h.svc.ExternalLogin(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.Token)
	assert.True(t, first.Account.Status.IsEmailVerified)
	assert.Equal(t, "google_g-1", first.Account.Identity.Phone)

	stored, err := h.repo.FindByExternalID(ctx, "g-1", repository.ProjectionInternal)
	require.NoError(t, err)
	assert.Nil(t, stored.Credential.PasswordHash)
	assert.JSONEq(t, `{"sub":"g-1","email":"grace@x.io"}`, string(stored.External.Profile))

	second, err := h.svc.ExternalLogin(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Contains(t, h.audit.types(), AuditExternalSignup)
	assert.Contains(t, h.audit.types(), AuditExternalLogin)
}

func TestExternalLogin_LinksVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reg := h.register(t, "grace@x.io", "1")
	h.verifier.assertions["tok"] = googleAssertion("g-2", "Grace@X.io", true)

	res, err := h.svc.ExternalLogin(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, reg.Account.ID, res.Account.ID)
	assert.True(t, res.Account.External.Linked())

	// password sign-in still works after linking
	_, err = h.svc.Login(ctx, "grace@x.io", "correct horse")
	assert.NoError(t, err)
}

func TestExternalLogin_UnverifiedEmailDoesNotLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "grace@x.io", "1")
	h.verifier.assertions["tok"] = googleAssertion("g-3", "grace@x.io", false)

	_, err := h.svc.ExternalLogin(ctx, "tok")
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))

	_, err = h.repo.FindByExternalID(ctx, "g-3", repository.ProjectionPublic)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExternalLogin_EmailLinkedToOtherSubject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.verifier.assertions["a"] = googleAssertion("g-a", "grace@x.io", true)
	h.verifier.assertions["b"] = googleAssertion("g-b", "grace@x.io", true)

	_, err := h.svc.ExternalLogin(ctx, "a")
	require.NoError(t, err)
	_, err = h.svc.ExternalLogin(ctx, "b")
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))
}

func TestExternalLogin_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.ExternalLogin(ctx, "  ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = h.svc.ExternalLogin(ctx, "forged")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))

	h.verifier.assertions["noemail"] = googleAssertion("g-4", "", true)
	_, err = h.svc.ExternalLogin(ctx, "noemail")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestExternalLogin_UsesAssertedPhone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	as := googleAssertion("g-5", "ada@x.io", true)
	as.Phone = "+15550100"
	h.verifier.assertions["tok"] = as

	res, err := h.svc.ExternalLogin(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "+15550100", res.Account.Identity.Phone)
}

func TestExternalLogin_KeepsPasswordLockout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "grace@x.io", "1")
	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "grace@x.io", "wrong")
	}
	h.verifier.assertions["tok"] = googleAssertion("g-6", "grace@x.io", true)

	res, err := h.svc.ExternalLogin(ctx, "tok")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	stored, err := h.repo.FindByEmail(ctx, "grace@x.io", repository.ProjectionPublic)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Security.LoginAttempts)
	require.NotNil(t, stored.Security.LockUntil)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, h.clock.Now(), *stored.LastLogin)

	_, err = h.svc.Login(ctx, "grace@x.io", "correct horse")
	assert.ErrorIs(t, err, apperr.ErrAccountLocked)
}
