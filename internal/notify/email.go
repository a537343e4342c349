package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// SendGridSender delivers email through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   string
	log    *zap.Logger
}

// NewSendGridSender returns an email sender. An empty API key yields an
// unconfigured sender whose sends fail softly with ErrNotConfigured.
func NewSendGridSender(apiKey, from string, log *zap.Logger) *SendGridSender {
	s := &SendGridSender{from: from, log: log}
	if apiKey != "" {
		s.client = sendgrid.NewSendClient(apiKey)
	} else {
		log.Warn("sendgrid api key not set, email channel disabled")
	}
	return s
}

// Configured reports whether the SendGrid client is usable.
func (s *SendGridSender) Configured() bool { return s.client != nil }

func (s *SendGridSender) deliver(ctx context.Context, toName, toAddr, subject, text string) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("Still Here", s.from),
		subject,
		sgmail.NewEmail(toName, toAddr),
		text,
		htmlBody(text),
	)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	s.log.Info("email sent", zap.String("to", toAddr), zap.String("subject", subject))
	return nil
}

// SendAlert emails an escalated alert to a contact.
func (s *SendGridSender) SendAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, opts AlertOptions) error {
	if c.Email == "" {
		return fmt.Errorf("contact %s has no email", c.Name)
	}
	return s.deliver(ctx, c.Name, c.Email, alertSubject(u, opts.Test), alertBody(u, c, opts))
}

// SendReminder emails the softer 24h heads-up to a contact.
func (s *SendGridSender) SendReminder(ctx context.Context, u *domain.User, c domain.EmergencyContact) error {
	if c.Email == "" {
		return fmt.Errorf("contact %s has no email", c.Name)
	}
	return s.deliver(ctx, c.Name, c.Email, reminderSubject(u), reminderBody(u, c))
}

// SendActivityAlert emails an overdue-activity alert to a contact.
func (s *SendGridSender) SendActivityAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, a *domain.Activity) error {
	if c.Email == "" {
		return fmt.Errorf("contact %s has no email", c.Name)
	}
	return s.deliver(ctx, c.Name, c.Email, activityAlertSubject(u, a), activityAlertBody(u, c, a))
}
