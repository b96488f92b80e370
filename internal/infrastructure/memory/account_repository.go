// Package memory is an in-process AccountRepository used by the development
// driver and by tests. A single mutex makes every mutation atomic.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

type AccountRepository struct {
	mu       sync.Mutex
	byID     map[string]*entity.Account
	email    map[string]string
	phone    map[string]string
	external map[string]string
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:     map[string]*entity.Account{},
		email:    map[string]string{},
		phone:    map[string]string{},
		external: map[string]string{},
	}
}

func emailKey(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (r *AccountRepository) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.email[emailKey(a.Identity.Email)]; ok {
		return apperr.Duplicate("email")
	}
	if _, ok := r.phone[a.Identity.Phone]; ok {
		return apperr.Duplicate("phone")
	}
	if a.External.Linked() {
		if _, ok := r.external[*a.External.ExternalID]; ok {
			return apperr.Duplicate("external id")
		}
	}

	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt, a.UpdatedAt = now, now

	stored := clone(a)
	r.byID[a.ID] = stored
	r.email[emailKey(a.Identity.Email)] = a.ID
	r.phone[a.Identity.Phone] = a.ID
	if a.External.Linked() {
		r.external[*a.External.ExternalID] = a.ID
	}
	return nil
}

func (r *AccountRepository) FindByID(_ context.Context, id string, p repository.Projection) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(id, p)
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string, p repository.Projection) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(r.email[emailKey(email)], p)
}

func (r *AccountRepository) FindByPhone(_ context.Context, phone string, p repository.Projection) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(r.phone[phone], p)
}

func (r *AccountRepository) FindByExternalID(_ context.Context, externalID string, p repository.Projection) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view(r.external[externalID], p)
}

func (r *AccountRepository) SetOTP(_ context.Context, id string, otp entity.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	a.OTP = entity.OTPChallenge{Code: otp.Code, ExpiresAt: otp.ExpiresAt}
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepository) ConsumeOTP(_ context.Context, id, code string, flag entity.VerificationFlag, now time.Time) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if a.OTP.Code == nil || !helpers.OTPEqual(*a.OTP.Code, code) ||
		a.OTP.ExpiresAt == nil || !now.Before(*a.OTP.ExpiresAt) {
		return nil, apperr.ErrInvalidOTP
	}
	a.OTP = entity.OTPChallenge{Verified: true}
	switch flag {
	case entity.VerifyEmail:
		a.Status.IsEmailVerified = true
	default:
		a.Status.IsPhoneVerified = true
	}
	a.UpdatedAt = time.Now().UTC()
	return r.view(id, repository.ProjectionPublic)
}

func (r *AccountRepository) RecordLoginFailure(_ context.Context, id string, now time.Time, p entity.LockPolicy) (entity.Security, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return entity.Security{}, apperr.ErrNotFound
	}
	a.Security = a.Security.AfterFailure(now, p)
	a.UpdatedAt = time.Now().UTC()
	return a.Security, nil
}

func (r *AccountRepository) RecordLoginSuccess(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	a.Security = a.Security.AfterSuccess()
	last := now
	a.LastLogin = &last
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepository) TouchLastLogin(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	last := now
	a.LastLogin = &last
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepository) LinkExternalIdentity(_ context.Context, id string, ext entity.ExternalIdentity) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !ext.Linked() {
		return nil, apperr.Validation("external id is required")
	}
	if a.External.Linked() {
		return nil, apperr.Duplicate("external identity")
	}
	if _, taken := r.external[*ext.ExternalID]; taken {
		return nil, apperr.Duplicate("external id")
	}
	a.External = cloneExternal(ext)
	a.Status.IsEmailVerified = true
	a.UpdatedAt = time.Now().UTC()
	r.external[*ext.ExternalID] = id
	return r.view(id, repository.ProjectionPublic)
}

// view must be called with r.mu held.
func (r *AccountRepository) view(id string, p repository.Projection) (*entity.Account, error) {
	a, ok := r.byID[id]
	if !ok || id == "" {
		return nil, apperr.ErrNotFound
	}
	out := clone(a)
	if p != repository.ProjectionInternal {
		out.Credential = entity.Credential{}
	}
	return out, nil
}

func clone(a *entity.Account) *entity.Account {
	c := *a
	c.Credential.PasswordHash = clonePtr(a.Credential.PasswordHash)
	c.OTP.Code = clonePtr(a.OTP.Code)
	c.OTP.ExpiresAt = clonePtr(a.OTP.ExpiresAt)
	c.Security.LockUntil = clonePtr(a.Security.LockUntil)
	c.External = cloneExternal(a.External)
	c.LastLogin = clonePtr(a.LastLogin)
	return &c
}

func cloneExternal(e entity.ExternalIdentity) entity.ExternalIdentity {
	out := e
	out.ExternalID = clonePtr(e.ExternalID)
	if e.Profile != nil {
		out.Profile = append([]byte(nil), e.Profile...)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
