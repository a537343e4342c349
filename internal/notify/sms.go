package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// TwilioSender delivers SMS through the Twilio API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	log    *zap.Logger
}

// NewTwilioSender returns an SMS sender. Missing credentials yield an
// unconfigured sender; the dispatcher skips the channel entirely then.
func NewTwilioSender(accountSID, authToken, fromNumber string, log *zap.Logger) *TwilioSender {
	s := &TwilioSender{from: fromNumber, log: log}
	if accountSID != "" && authToken != "" && fromNumber != "" {
		s.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
	} else {
		log.Warn("twilio credentials not set, sms channel disabled")
	}
	return s
}

// Configured reports whether the Twilio client is usable.
func (s *TwilioSender) Configured() bool { return s.client != nil }

// NormalizePhone strips formatting and returns an E.164-ish number. Ten-digit
// numbers are assumed to be US.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if len(n) == 10 && !strings.HasPrefix(n, "1") {
		n = "1" + n
	}
	return "+" + n
}

// SendAlert texts an escalated alert to a contact.
func (s *TwilioSender) SendAlert(ctx context.Context, u *domain.User, c domain.EmergencyContact, opts AlertOptions) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	if c.Phone == "" {
		return fmt.Errorf("contact %s has no phone number", c.Name)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(NormalizePhone(c.Phone))
	params.SetFrom(s.from)
	params.SetBody(smsAlertBody(u, opts))

	msg, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	s.log.Info("sms sent", zap.String("to", c.Phone), zap.String("sid", sid))
	return nil
}
