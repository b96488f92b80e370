// Package google verifies Google Sign-In ID tokens.
package google

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/oksasatya/ailens-auth/internal/application"
	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
)

const Provider = "google"

var issuers = []string{"accounts.google.com", "https://accounts.google.com"}

type tokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// Verifier checks signature against Google's published keys, expiry, issuer
// and that the audience is one of the configured client ids. Keys are cached
// by the idtoken package according to the certificate endpoint's max-age.
type Verifier struct {
	validator tokenValidator
	audiences []string
	logger    *logrus.Logger
}

func NewVerifier(ctx context.Context, audiences []string, client *http.Client, logger *logrus.Logger) (*Verifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("idtoken validator: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Verifier{validator: v, audiences: audiences, logger: logger}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*application.ExternalAssertion, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return nil, apperr.Validation("assertion is not a JWT")
	}
	if len(v.audiences) == 0 {
		return nil, unverifiable("no client ids configured")
	}

	// audience is checked against the allowlist below
	p, err := v.validator.Validate(ctx, raw, "")
	if err != nil {
		v.logger.WithError(err).Debug("google id token rejected")
		return nil, unverifiable(err.Error())
	}
	if !slices.Contains(issuers, p.Issuer) {
		return nil, unverifiable("unexpected issuer " + p.Issuer)
	}
	if !slices.Contains(v.audiences, p.Audience) {
		return nil, unverifiable("unexpected audience")
	}
	if p.Subject == "" {
		return nil, unverifiable("missing subject")
	}

	return &application.ExternalAssertion{
		Provider:      Provider,
		Subject:       p.Subject,
		Email:         claimString(p.Claims, "email"),
		EmailVerified: claimBool(p.Claims, "email_verified"),
		GivenName:     claimString(p.Claims, "given_name"),
		FamilyName:    claimString(p.Claims, "family_name"),
		Phone:         claimString(p.Claims, "phone_number"),
		Claims:        profile(p.Claims),
	}, nil
}

func unverifiable(reason string) error {
	return apperr.Wrap(apperr.KindInvalidCredential, "external assertion could not be verified", fmt.Errorf("%s", reason))
}

func claimString(c map[string]any, k string) string {
	s, _ := c[k].(string)
	return s
}

// email_verified is a JSON bool in current tokens and a string in older ones.
func claimBool(c map[string]any, k string) bool {
	switch v := c[k].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// profile keeps the identity claims worth storing with the account.
func profile(c map[string]any) map[string]any {
	out := map[string]any{}
	for _, k := range []string{"sub", "email", "email_verified", "name", "given_name", "family_name", "picture", "locale", "hd", "phone_number"} {
		if v, ok := c[k]; ok {
			out[k] = v
		}
	}
	return out
}

var _ application.AssertionVerifier = (*Verifier)(nil)
