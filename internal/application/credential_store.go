package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

// NewAccount carries the fields of an account being created. Password is
// plaintext and never leaves CredentialStore.Create unhashed.
type NewAccount struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Password      string
	External      *entity.ExternalIdentity
	EmailVerified bool
	PhoneVerified bool
	OTP           entity.OTPChallenge
}

// CredentialStore is the only create path for accounts. It hashes the
// password before the record reaches the repository.
type CredentialStore struct {
	Repo   repository.AccountRepository
	Hasher PasswordHasher
}

func NewCredentialStore(repo repository.AccountRepository, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{Repo: repo, Hasher: hasher}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *CredentialStore) Create(ctx context.Context, in NewAccount) (*entity.Account, error) {
	a := &entity.Account{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Identity: entity.Identity{
			Email: NormalizeEmail(in.Email),
			Phone: strings.TrimSpace(in.Phone),
		},
		OTP:    in.OTP,
		Status: entity.Status{IsActive: true, IsEmailVerified: in.EmailVerified, IsPhoneVerified: in.PhoneVerified},
	}
	if in.External != nil {
		a.External = *in.External
	}
	if a.Identity.Email == "" {
		return nil, apperr.Validation("email is required")
	}
	if a.Identity.Phone == "" {
		return nil, apperr.Validation("phone is required")
	}

	if in.Password != "" {
		hash, err := s.Hasher.Hash(in.Password)
		if errors.Is(err, helpers.ErrPasswordTooLong) {
			return nil, apperr.Validation(fmt.Sprintf("password must be at most %d bytes", helpers.MaxPasswordBytes))
		}
		if err != nil {
			return nil, err
		}
		a.Credential.PasswordHash = &hash
	}
	if !a.HasAuthMethod() {
		return nil, apperr.Validation("a password or external identity is required")
	}

	if err := s.Repo.Create(ctx, a); err != nil {
		return nil, err
	}
	a.Credential = entity.Credential{}
	return a, nil
}
