package store

import (
	"context"
	"time"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// CheckInInput carries the optional details recorded with a check-in.
type CheckInInput struct {
	Mood      string
	Note      string
	Latitude  *float64
	Longitude *float64
}

// PushSubscription is one web-push endpoint registered by a user's browser.
type PushSubscription struct {
	ID       int64
	UserID   string
	Endpoint string
	P256dh   string
	Auth     string
}

// Repo defines the storage operations the check-in core and its callers use.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// UsersNeedingReminder returns users whose last check-in is older than
	// thresholdHours (or absent) and who are not currently on vacation.
	UsersNeedingReminder(ctx context.Context, now time.Time, thresholdHours int) ([]domain.User, error)

	// RecordCheckIn applies the streak rules and stores a check-in row.
	// A second check-in on the same local day is a no-op reported via
	// alreadyCheckedIn.
	RecordCheckIn(ctx context.Context, userID string, in CheckInInput, now time.Time) (u *domain.User, alreadyCheckedIn bool, err error)
	LastCheckInLocation(ctx context.Context, userID string) (*domain.Location, error)
	CheckInHistory(ctx context.Context, userID string, limit int) ([]domain.CheckIn, error)
	PruneCheckIns(ctx context.Context, olderThan time.Time) (int64, error)

	AddContact(ctx context.Context, c *domain.EmergencyContact) error
	DeleteContact(ctx context.Context, userID, contactID string) error
	EmergencyContacts(ctx context.Context, userID string) ([]domain.EmergencyContact, error)

	CreateActivity(ctx context.Context, a *domain.Activity) error
	OverdueActivities(ctx context.Context, now time.Time, grace time.Duration) ([]domain.Activity, error)
	SetActivityStatus(ctx context.Context, activityID string, status domain.ActivityStatus) error

	SavePushSubscription(ctx context.Context, s *PushSubscription) error
	PushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	DeletePushSubscriptions(ctx context.Context, userID string) error

	Close() error
}
