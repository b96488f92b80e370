package templates

import (
	"time"
)

// Branding is the sender identity stamped on every email.
type Branding struct {
	AppName        string
	CompanyName    string
	CompanyAddress string
	LogoURL        string
	SupportURL     string
}

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }

// WithExpiresAt sets the absolute expiry and the minutes left relative to now.
func WithExpiresAt(t, now time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
		if mins := int(t.Sub(now).Round(time.Minute) / time.Minute); mins > 0 {
			d.ExpiresInMin = mins
		}
	}
}

func NewBaseEmailData(b Branding, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,

		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		AppName:        b.AppName,
		LogoURL:        b.LogoURL,
		SupportURL:     b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewOTPData(b Branding, name, email, code string, opts ...Option) map[string]any {
	d := NewBaseEmailData(b, PhoneOTP, name, email, opts...)
	d.Code = code
	return ToMap(d)
}
