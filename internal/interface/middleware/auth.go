package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
	"github.com/oksasatya/ailens-auth/pkg/response"
)

const (
	CtxAccountIDKey = "accountID"
	ctxClaimsKey    = "tokenClaims"
)

type TokenValidator interface {
	Validate(token string) (*helpers.Claims, error)
}

type Revocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth validates the bearer token and sets accountID in the Gin context.
// A revocation lookup failure is logged and the token is accepted.
func Auth(tokens TokenValidator, revoked Revocations, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Fail(c, http.StatusUnauthorized, string(apperr.KindTokenInvalid), "missing bearer token", nil)
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			public := apperr.ErrTokenInvalid
			if errors.Is(err, helpers.ErrTokenExpired) {
				public = apperr.ErrTokenExpired
			}
			response.Fail(c, http.StatusUnauthorized, string(public.Kind), public.Message, nil)
			return
		}
		if revoked != nil && claims.ID != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil && logger != nil {
				logger.WithError(err).WithField("account_id", claims.AccountID()).Warn("revocation lookup failed")
			}
			if isRevoked {
				response.Fail(c, http.StatusUnauthorized, string(apperr.KindTokenInvalid), "token has been revoked", nil)
				return
			}
		}

		c.Set(CtxAccountIDKey, claims.AccountID())
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims Auth stored, or nil.
func ClaimsFrom(c *gin.Context) *helpers.Claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*helpers.Claims)
	return claims
}

func bearerToken(h string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
