// Package notify delivers one-time passcodes to account holders.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/application"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/pkg/mailer"
	mailtpl "github.com/oksasatya/ailens-auth/pkg/mailer/templates"
)

// Publisher is satisfied by helpers.RabbitPublisher.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier enqueues an "otp" email job for the email worker.
type QueueNotifier struct {
	Pub      Publisher
	Branding mailtpl.Branding
	Clock    func() time.Time
}

func NewQueueNotifier(pub Publisher, b mailtpl.Branding) *QueueNotifier {
	return &QueueNotifier{Pub: pub, Branding: b, Clock: time.Now}
}

func (n *QueueNotifier) NotifyOTP(ctx context.Context, a *entity.Account, code string, expiresAt time.Time) error {
	rm := application.RequestMetaFrom(ctx)
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	data := mailtpl.NewOTPData(n.Branding, name, a.Identity.Email, code,
		mailtpl.WithExpiresAt(expiresAt, n.Clock()),
		mailtpl.WithIP(rm.IP),
		mailtpl.WithUserAgent(rm.UserAgent),
	)
	job := mailer.EmailJob{
		To:       a.Identity.Email,
		Template: mailtpl.PhoneOTP,
		Data:     data,
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return n.Pub.PublishJSON(c, job)
}

// LogNotifier is used when no queue is configured. Codes are only written to
// the log when reveal is set.
type LogNotifier struct {
	Logger *logrus.Logger
	Reveal bool
}

func (n *LogNotifier) NotifyOTP(_ context.Context, a *entity.Account, code string, expiresAt time.Time) error {
	fields := logrus.Fields{"account_id": a.ID, "expires_at": expiresAt}
	if n.Reveal {
		fields["code"] = code
	}
	n.Logger.WithFields(fields).Info("otp issued; no delivery channel configured")
	return nil
}

var (
	_ application.OTPNotifier = (*QueueNotifier)(nil)
	_ application.OTPNotifier = (*LogNotifier)(nil)
)
