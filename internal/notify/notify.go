// Package notify delivers reminders and alerts to emergency contacts over
// email, SMS and web push, and fans a single escalation out across every
// (contact, channel) pair independently.
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// ErrNotConfigured is the soft failure returned when a channel's provider
// credentials are absent. It never aborts fan-out.
var ErrNotConfigured = errors.New("channel not configured")

// AlertOptions carries per-send alert details.
type AlertOptions struct {
	Test     bool
	Location *domain.Location
}

// EmailSender delivers contact-facing email.
type EmailSender interface {
	SendAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, opts AlertOptions) error
	SendReminder(ctx context.Context, u *domain.User, c domain.EmergencyContact) error
	SendActivityAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, a *domain.Activity) error
	Configured() bool
}

// SMSSender delivers contact-facing SMS.
type SMSSender interface {
	SendAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, opts AlertOptions) error
	Configured() bool
}

// PushSender delivers best-effort reminder pushes to the user themselves.
type PushSender interface {
	SendReminder(ctx context.Context, u *domain.User) error
	Configured() bool
}

// Channel identifies a delivery mechanism in fan-out outcomes.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Outcome is the result of one delivery attempt during fan-out.
type Outcome struct {
	ContactID   string
	ContactName string
	Channel     Channel
	Err         error
}

// Dispatcher fans a classified notification out to a user's contacts.
type Dispatcher struct {
	email EmailSender
	sms   SMSSender
	log   *zap.Logger
}

// NewDispatcher wires the channel senders.
func NewDispatcher(email EmailSender, sms SMSSender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, log: log}
}

// Dispatch attempts delivery to every eligible (contact, channel) pair
// concurrently and returns all outcomes once every attempt has settled. An
// empty contact list falls back to the user's legacy single-contact fields.
// Failures are logged and collected; they never stop the other attempts.
func (d *Dispatcher) Dispatch(ctx context.Context, u *domain.User, kind domain.Kind, contacts []domain.EmergencyContact, loc *domain.Location) []Outcome {
	if len(contacts) == 0 {
		legacy := u.LegacyContact()
		if legacy.Email == "" && legacy.Phone == "" {
			d.log.Warn("no contacts to notify", zap.String("user", u.ID))
			return nil
		}
		contacts = []domain.EmergencyContact{legacy}
	}

	type attempt struct {
		contact domain.EmergencyContact
		channel Channel
	}
	var attempts []attempt
	for _, c := range contacts {
		if c.Preference.WantsEmail() && c.Email != "" {
			attempts = append(attempts, attempt{c, ChannelEmail})
		}
		// SMS is alert-tier only. Reminders stay on the quieter channels.
		if kind == domain.KindAlert && c.Preference.WantsSMS() && c.Phone != "" && d.sms.Configured() {
			attempts = append(attempts, attempt{c, ChannelSMS})
		}
	}

	outcomes := make([]Outcome, len(attempts))
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(i int, a attempt) {
			defer wg.Done()
			outcomes[i] = Outcome{
				ContactID:   a.contact.ID,
				ContactName: a.contact.Name,
				Channel:     a.channel,
				Err:         d.send(ctx, u, kind, a.contact, a.channel, loc),
			}
		}(i, a)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			d.log.Error("notification delivery failed",
				zap.String("user", u.ID),
				zap.String("kind", string(kind)),
				zap.String("contact", o.ContactName),
				zap.String("channel", string(o.Channel)),
				zap.Error(o.Err),
			)
		}
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, u *domain.User, kind domain.Kind, c domain.EmergencyContact, ch Channel, loc *domain.Location) error {
	switch ch {
	case ChannelEmail:
		if kind == domain.KindAlert {
			return d.email.SendAlert(ctx, u, c, AlertOptions{Location: loc})
		}
		return d.email.SendReminder(ctx, u, c)
	case ChannelSMS:
		return d.sms.SendAlert(ctx, u, c, AlertOptions{Location: loc})
	}
	return errors.New("unknown channel")
}
