package application

import (
	"context"
	"expvar"
	"time"
)

const (
	AuditRegister       = "auth.register"
	AuditLoginSuccess   = "auth.login.success"
	AuditLoginFailure   = "auth.login.failure"
	AuditLoginLocked    = "auth.login.locked"
	AuditAccountLocked  = "auth.account.locked"
	AuditOTPVerified    = "auth.otp.verified"
	AuditOTPResent      = "auth.otp.resent"
	AuditExternalLogin  = "auth.external.login"
	AuditExternalSignup = "auth.external.signup"
	AuditLogout         = "auth.logout"
)

type AuditEvent struct {
	Type      string         `json:"type"`
	AccountID string         `json:"account_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	At        time.Time      `json:"@timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// AuditSink receives security events. Delivery problems are the sink's to
// log; they never fail the request.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

// AuditReader lists an account's most recent events, newest first.
type AuditReader interface {
	Recent(ctx context.Context, accountID string, size int) ([]AuditEvent, error)
}

type NopAuditSink struct{}

func (NopAuditSink) Record(context.Context, AuditEvent) {}

// RequestMeta is the caller context the HTTP layer attaches for auditing.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}

// Stats is published on /debug/vars.
var Stats = expvar.NewMap("auth")
