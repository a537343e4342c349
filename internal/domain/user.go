package domain

import "time"

// AlertPreference selects delivery channels for an emergency contact.
type AlertPreference string

const (
	PrefEmail AlertPreference = "email"
	PrefSMS   AlertPreference = "sms"
	PrefBoth  AlertPreference = "both"
)

// WantsEmail reports whether the preference includes the email channel.
func (p AlertPreference) WantsEmail() bool { return p == PrefEmail || p == PrefBoth }

// WantsSMS reports whether the preference includes the SMS channel.
func (p AlertPreference) WantsSMS() bool { return p == PrefSMS || p == PrefBoth }

// User is the subset of account state the check-in core reads.
type User struct {
	ID          string
	Name        string
	LastCheckIn *time.Time // UTC, nil until the first check-in
	Streak      int        // consecutive daily check-ins

	// Optional daily window (local time-of-day, "HH:MM") and its timezone.
	CheckInWindowStart string
	CheckInWindowEnd   string
	Timezone           string // IANA name; empty means UTC

	VacationUntil *time.Time // suppresses reminders and alerts while in the future
	SnoozeUntil   *time.Time

	// Legacy single-contact fields, used when no emergency contacts exist.
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	AlertPreference AlertPreference

	// Pet details included in alert messages so a contact knows someone
	// else may need looking after.
	PetName  string
	PetEmoji string
	PetNotes string

	LocationSharingEnabled bool
	CreatedAt              time.Time
}

// Location resolves the user's IANA timezone, defaulting to UTC when unset
// or invalid.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OnVacation reports whether a vacation suppression is active at now.
func (u *User) OnVacation(now time.Time) bool {
	return u.VacationUntil != nil && u.VacationUntil.After(now)
}

// Snoozed reports whether a snooze suppression is active at now.
func (u *User) Snoozed(now time.Time) bool {
	return u.SnoozeUntil != nil && u.SnoozeUntil.After(now)
}

// EmergencyContact is a per-user alert recipient. At least one of Email or
// Phone is present; Preference decides which channels are attempted.
type EmergencyContact struct {
	ID         string
	UserID     string
	Name       string
	Email      string
	Phone      string
	Preference AlertPreference
	Priority   int
	CreatedAt  time.Time
}

// LegacyContact wraps the user's single-contact fields into a synthetic
// EmergencyContact so fan-out has one code path. Preference defaults to
// email when unset.
func (u *User) LegacyContact() EmergencyContact {
	pref := u.AlertPreference
	if pref == "" {
		pref = PrefEmail
	}
	return EmergencyContact{
		UserID:     u.ID,
		Name:       u.ContactName,
		Email:      u.ContactEmail,
		Phone:      u.ContactPhone,
		Preference: pref,
	}
}

// CheckIn is one recorded daily confirmation.
type CheckIn struct {
	ID        int64
	UserID    string
	Mood      string
	Note      string
	Latitude  *float64
	Longitude *float64
	CheckedAt time.Time
}

// Location is a coordinate fix taken from a check-in.
type Location struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// ActivityStatus tracks a server-side activity record.
type ActivityStatus string

const (
	ActivityActive    ActivityStatus = "active"
	ActivityCompleted ActivityStatus = "completed"
	ActivityCancelled ActivityStatus = "cancelled"
	ActivityAlerted   ActivityStatus = "alerted"
)

// Activity is a time-boxed outing ("going for a run") whose expected end the
// server watches so a missed return can be escalated.
type Activity struct {
	ID              string
	UserID          string
	Type            string
	Label           string
	DurationMinutes int
	StartedAt       time.Time
	ExpectedEndAt   time.Time
	ShareLocation   bool
	Latitude        *float64
	Longitude       *float64
	Details         string
	Status          ActivityStatus
}
