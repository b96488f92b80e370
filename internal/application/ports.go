package application

import (
	"context"
	"time"

	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(accountID string) (string, time.Time, error)
	Validate(token string) (*helpers.Claims, error)
}

// ExternalAssertion is the verified claim set of an identity-provider token.
type ExternalAssertion struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Phone         string
	Claims        map[string]any
}

// AssertionVerifier checks a raw provider token against the provider's
// published signing keys and the expected audience.
type AssertionVerifier interface {
	Verify(ctx context.Context, raw string) (*ExternalAssertion, error)
}

// OTPNotifier hands an issued code to the delivery channel.
type OTPNotifier interface {
	NotifyOTP(ctx context.Context, a *entity.Account, code string, expiresAt time.Time) error
}

// TokenRevoker keeps the ids of logged-out tokens until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
