package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds daemon configuration loaded from environment variables.
type Config struct {
	DBPath   string `envconfig:"DB_PATH" default:"./data/stillhere.db"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz only
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error

	// Check-in timing.
	ReminderThresholdHours int `envconfig:"REMINDER_THRESHOLD_HOURS" default:"24"`
	AlertThresholdHours    int `envconfig:"ALERT_THRESHOLD_HOURS" default:"48"`

	// Calendar day used for notification dedup keys. Using the server's local
	// day is ambiguous near midnight, so the boundary is explicit. Set
	// "Local" to key on the server's day anyway.
	DedupTZ string `envconfig:"DEDUP_TZ" default:"UTC"`

	// Activity mode.
	ActivityGraceMinutes int `envconfig:"ACTIVITY_GRACE_MINUTES" default:"5"`

	// Data retention.
	MaxCheckInHistoryDays int `envconfig:"MAX_CHECKIN_HISTORY_DAYS" default:"365"`

	// Email (SendGrid).
	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	FromEmail      string `envconfig:"FROM_EMAIL" default:"alerts@stillhere.app"`

	// SMS (Twilio). All three must be set for the SMS channel to be active.
	TwilioAccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`

	// Web push (VAPID).
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:alerts@stillhere.app"`

	// App URL used in notification links.
	AppURL string `envconfig:"APP_URL" default:"http://localhost:5173"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.ReminderThresholdHours <= 0 || cfg.AlertThresholdHours <= cfg.ReminderThresholdHours {
		return cfg, fmt.Errorf("invalid thresholds: reminder=%dh alert=%dh",
			cfg.ReminderThresholdHours, cfg.AlertThresholdHours)
	}
	return cfg, nil
}

// DedupLocation resolves DedupTZ into a location. Errors are returned rather
// than masked so a misconfigured boundary is caught at startup.
func (c Config) DedupLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DedupTZ)
	if err != nil {
		return nil, fmt.Errorf("dedup tz %q: %w", c.DedupTZ, err)
	}
	return loc, nil
}

// ActivityGrace returns the activity grace period as a duration.
func (c Config) ActivityGrace() time.Duration {
	return time.Duration(c.ActivityGraceMinutes) * time.Minute
}
