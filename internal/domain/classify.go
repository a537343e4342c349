package domain

import "time"

// Kind is the notification tier a user is classified into.
type Kind string

const (
	KindNone     Kind = "none"
	KindReminder Kind = "reminder"
	KindAlert    Kind = "alert"
)

// Thresholds carries the escalation boundaries in hours.
type Thresholds struct {
	ReminderHours float64
	AlertHours    float64
}

// DefaultThresholds matches the 24h reminder / 48h alert tiers.
var DefaultThresholds = Thresholds{ReminderHours: 24, AlertHours: 48}

// SentChecker is the dedup view the classifier consults: whether a
// notification of a kind already went out for a user on a given day key.
type SentChecker interface {
	HasSent(kind Kind, userID, day string) bool
}

// Classify decides the notification tier for u at now. It is pure apart
// from reading the dedup state: vacation or snooze suppress everything, an
// alert outranks a reminder, and reminders additionally require being past
// the user's check-in window. windowErr, when non-nil, records a window
// evaluation failure the caller should log (classification has already
// failed open).
func Classify(u *User, now time.Time, sent SentChecker, day string, th Thresholds) (kind Kind, windowErr error) {
	if u.OnVacation(now) || u.Snoozed(now) {
		return KindNone, nil
	}

	hours := HoursSince(u.LastCheckIn, now)
	if hours < th.ReminderHours {
		return KindNone, nil
	}

	if hours >= th.AlertHours {
		if sent.HasSent(KindAlert, u.ID, day) {
			return KindNone, nil
		}
		return KindAlert, nil
	}

	past, err := PastWindow(u, now)
	if !past {
		return KindNone, err
	}
	if sent.HasSent(KindReminder, u.ID, day) {
		return KindNone, err
	}
	return KindReminder, err
}
