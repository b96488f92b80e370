package entity

import (
	"encoding/json"
	"time"
)

// Account is the aggregate root for the authentication domain.
// Only the CredentialStore creates or mutates it; handlers serialize Public().
type Account struct {
	ID         string
	FirstName  string
	LastName   string
	Identity   Identity
	Credential Credential
	OTP        OTPChallenge
	Security   Security
	External   ExternalIdentity
	Status     Status
	LastLogin  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Identity struct {
	Email string
	Phone string
}

// Credential is absent (nil hash) for identity-provider-only accounts and
// for accounts loaded with the public projection.
type Credential struct {
	PasswordHash *string
}

func (c Credential) HasPassword() bool {
	return c.PasswordHash != nil && *c.PasswordHash != ""
}

// OTPChallenge is the single outstanding verification challenge. A new
// challenge replaces it wholesale.
type OTPChallenge struct {
	Code      *string
	ExpiresAt *time.Time
	Verified  bool
}

type ExternalIdentity struct {
	Provider   string
	ExternalID *string
	Profile    json.RawMessage
}

func (e ExternalIdentity) Linked() bool {
	return e.ExternalID != nil && *e.ExternalID != ""
}

type Status struct {
	IsActive            bool
	IsEmailVerified     bool
	IsPhoneVerified     bool
	IsBiometricEnrolled bool
}

// VerificationFlag names the status flag an OTP verification sets.
type VerificationFlag string

const (
	VerifyPhone VerificationFlag = "phone"
	VerifyEmail VerificationFlag = "email"
)

// ParseVerificationFlag maps a request channel to its flag. Empty means phone.
func ParseVerificationFlag(channel string) (VerificationFlag, bool) {
	switch VerificationFlag(channel) {
	case "", VerifyPhone:
		return VerifyPhone, true
	case VerifyEmail:
		return VerifyEmail, true
	}
	return "", false
}

// Verified reports whether the flag is already set.
func (s Status) Verified(f VerificationFlag) bool {
	if f == VerifyEmail {
		return s.IsEmailVerified
	}
	return s.IsPhoneVerified
}

// HasAuthMethod reports whether the account can authenticate at all.
func (a *Account) HasAuthMethod() bool {
	return a.Credential.HasPassword() || a.External.Linked()
}

// PublicAccount is the projection that leaves the security boundary.
type PublicAccount struct {
	ID                  string     `json:"id"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone"`
	Provider            string     `json:"provider,omitempty"`
	IsActive            bool       `json:"isActive"`
	IsEmailVerified     bool       `json:"isEmailVerified"`
	IsPhoneVerified     bool       `json:"isPhoneVerified"`
	IsBiometricEnrolled bool       `json:"isBiometricEnrolled"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:                  a.ID,
		FirstName:           a.FirstName,
		LastName:            a.LastName,
		Email:               a.Identity.Email,
		Phone:               a.Identity.Phone,
		Provider:            a.External.Provider,
		IsActive:            a.Status.IsActive,
		IsEmailVerified:     a.Status.IsEmailVerified,
		IsPhoneVerified:     a.Status.IsPhoneVerified,
		IsBiometricEnrolled: a.Status.IsBiometricEnrolled,
		LastLogin:           a.LastLogin,
		CreatedAt:           a.CreatedAt,
	}
}
