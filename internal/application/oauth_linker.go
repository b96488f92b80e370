package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
)

// OAuthLinker resolves a verified provider assertion to a local account:
// an existing link wins, then a verified-email match is linked, otherwise
// a new password-less account is created.
type OAuthLinker struct {
	Repo     repository.AccountRepository
	Store    *CredentialStore
	Verifier AssertionVerifier
	Logger   *logrus.Logger
}

func NewOAuthLinker(repo repository.AccountRepository, store *CredentialStore, verifier AssertionVerifier, logger *logrus.Logger) *OAuthLinker {
	return &OAuthLinker{Repo: repo, Store: store, Verifier: verifier, Logger: logger}
}

// Resolve returns the account for raw and whether it was created by this call.
func (l *OAuthLinker) Resolve(ctx context.Context, raw string) (*entity.Account, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, apperr.Validation("assertion is required")
	}
	if l.Verifier == nil {
		return nil, false, apperr.New(apperr.KindInternal, "external sign-in is not configured")
	}

	as, err := l.Verifier.Verify(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	if as.Subject == "" {
		return nil, false, apperr.New(apperr.KindInvalidCredential, "assertion has no subject")
	}

	if a, err := l.Repo.FindByExternalID(ctx, as.Subject, repository.ProjectionPublic); err == nil {
		return a, false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	ext := externalIdentity(as)
	email := NormalizeEmail(as.Email)

	if email != "" && as.EmailVerified {
		existing, err := l.Repo.FindByEmail(ctx, email, repository.ProjectionPublic)
		switch {
		case err == nil:
			if existing.External.Linked() {
				return nil, false, apperr.Duplicate("email")
			}
			a, err := l.Repo.LinkExternalIdentity(ctx, existing.ID, ext)
			if apperr.IsKind(err, apperr.KindDuplicate) {
				return l.refetch(ctx, as.Subject, err)
			}
			if err != nil {
				return nil, false, err
			}
			l.log().WithFields(logrus.Fields{"account_id": a.ID, "provider": as.Provider}).Info("linked external identity")
			return a, false, nil
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, false, err
		}
	}

	if email == "" {
		return nil, false, apperr.Validation("assertion has no email")
	}
	phone := as.Phone
	if phone == "" {
		phone = as.Provider + "_" + as.Subject
	}
	a, err := l.Store.Create(ctx, NewAccount{
		FirstName:     as.GivenName,
		LastName:      as.FamilyName,
		Email:         email,
		Phone:         phone,
		External:      &ext,
		EmailVerified: true,
	})
	if apperr.IsKind(err, apperr.KindDuplicate) {
		return l.refetch(ctx, as.Subject, err)
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// refetch settles a lost race against a concurrent sign-in of the same subject.
func (l *OAuthLinker) refetch(ctx context.Context, subject string, cause error) (*entity.Account, bool, error) {
	a, err := l.Repo.FindByExternalID(ctx, subject, repository.ProjectionPublic)
	if err != nil {
		return nil, false, cause
	}
	return a, false, nil
}

func (l *OAuthLinker) log() *logrus.Logger {
	if l.Logger == nil {
		return logrus.StandardLogger()
	}
	return l.Logger
}

func externalIdentity(as *ExternalAssertion) entity.ExternalIdentity {
	sub := as.Subject
	var profile json.RawMessage
	if len(as.Claims) > 0 {
		if b, err := json.Marshal(as.Claims); err == nil {
			profile = b
		}
	}
	return entity.ExternalIdentity{Provider: as.Provider, ExternalID: &sub, Profile: profile}
}
