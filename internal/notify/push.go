package notify

import (
	"context"
	"encoding/json"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
	"github.com/SiamakSafari/stillhere-sub000/internal/store"
)

// SubscriptionSource yields the web-push endpoints registered by a user.
type SubscriptionSource interface {
	PushSubscriptions(ctx context.Context, userID string) ([]store.PushSubscription, error)
}

// WebPushSender delivers reminder pushes to the user's own devices. It is
// best-effort everywhere it is called; a dead endpoint is only logged.
type WebPushSender struct {
	subs       SubscriptionSource
	vapidPub   string
	vapidPriv  string
	subscriber string
	appURL     string
	log        *zap.Logger
}

// NewWebPushSender returns a push sender. Missing VAPID keys yield an
// unconfigured sender.
func NewWebPushSender(subs SubscriptionSource, vapidPub, vapidPriv, subscriber, appURL string, log *zap.Logger) *WebPushSender {
	if vapidPub == "" || vapidPriv == "" {
		log.Warn("vapid keys not set, push channel disabled")
	}
	return &WebPushSender{
		subs:       subs,
		vapidPub:   vapidPub,
		vapidPriv:  vapidPriv,
		subscriber: subscriber,
		appURL:     appURL,
		log:        log,
	}
}

// Configured reports whether VAPID keys are present.
func (s *WebPushSender) Configured() bool { return s.vapidPub != "" && s.vapidPriv != "" }

// SendReminder pushes a check-in nudge to every endpoint the user has
// registered. It succeeds if at least one endpoint accepts, and returns the
// last error otherwise.
func (s *WebPushSender) SendReminder(ctx context.Context, u *domain.User) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	subs, err := s.subs.PushSubscriptions(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return fmt.Errorf("user %s has no push subscriptions", u.ID)
	}

	payload, err := json.Marshal(map[string]string{
		"title": "Still Here",
		"body":  "Don't forget to check in today!",
		"tag":   "checkin-reminder",
		"url":   s.appURL,
	})
	if err != nil {
		return err
	}

	delivered := 0
	var lastErr error
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.vapidPub,
			VAPIDPrivateKey: s.vapidPriv,
			TTL:             3600,
		})
		if err != nil {
			lastErr = err
			s.log.Warn("push delivery failed", zap.String("user", u.ID), zap.Error(err))
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("push endpoint status %d", resp.StatusCode)
			s.log.Warn("push endpoint rejected", zap.String("user", u.ID), zap.Int("status", resp.StatusCode))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}
