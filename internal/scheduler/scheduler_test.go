package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
	"github.com/SiamakSafari/stillhere-sub000/internal/ledger"
	"github.com/SiamakSafari/stillhere-sub000/internal/notify"
	"github.com/SiamakSafari/stillhere-sub000/internal/store"
)

type fakeEmail struct {
	mu             sync.Mutex
	alerts         []string // contact names
	reminders      []string
	activityAlerts []string
	fail           bool
	started        chan struct{} // closed once, on first send
	block          chan struct{} // when set, sends wait on it
	startedOnce    sync.Once
}

func (f *fakeEmail) gate() {
	if f.started != nil {
		f.startedOnce.Do(func() { close(f.started) })
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeEmail) SendAlert(_ context.Context, _ *domain.User, c domain.EmergencyContact, _ notify.AlertOptions) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.alerts = append(f.alerts, c.Name)
	return nil
}

func (f *fakeEmail) SendReminder(_ context.Context, _ *domain.User, c domain.EmergencyContact) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.reminders = append(f.reminders, c.Name)
	return nil
}

func (f *fakeEmail) SendActivityAlert(_ context.Context, _ *domain.User, c domain.EmergencyContact, _ *domain.Activity) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.activityAlerts = append(f.activityAlerts, c.Name)
	return nil
}

func (f *fakeEmail) Configured() bool { return true }

func (f *fakeEmail) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakeSMS struct {
	mu     sync.Mutex
	alerts []string
	fail   bool
}

func (f *fakeSMS) SendAlert(_ context.Context, _ *domain.User, c domain.EmergencyContact, _ notify.AlertOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.alerts = append(f.alerts, c.Name)
	return nil
}

func (f *fakeSMS) Configured() bool { return true }

type fakePush struct {
	mu    sync.Mutex
	users []string
}

func (f *fakePush) SendReminder(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u.ID)
	return nil
}

func (f *fakePush) Configured() bool { return true }

type fixture struct {
	repo  *store.SQLiteRepo
	led   *ledger.Memory
	email *fakeEmail
	sms   *fakeSMS
	push  *fakePush
	sched *Scheduler
	now   time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f := &fixture{
		repo:  repo,
		led:   ledger.NewMemory(),
		email: &fakeEmail{},
		sms:   &fakeSMS{},
		push:  &fakePush{},
		now:   now,
	}
	f.sched = New(repo, f.led, notify.NewDispatcher(f.email, f.sms, zap.NewNop()),
		f.push, f.email, zap.NewNop(), Options{
			Thresholds:    domain.DefaultThresholds,
			ActivityGrace: 5 * time.Minute,
			Retention:     365 * 24 * time.Hour,
			DayLocation:   time.UTC,
			Now:           func() time.Time { return f.now },
		})
	return f
}

func (f *fixture) seedUser(t *testing.T, u *domain.User) *domain.User {
	t.Helper()
	if u.Name == "" {
		u.Name = "Test User"
	}
	require.NoError(t, f.repo.UpsertUser(context.Background(), u))
	return u
}

func hoursAgo(now time.Time, h int) *time.Time {
	t := now.Add(-time.Duration(h) * time.Hour)
	return &t
}

var sweepNow = time.Date(2026, time.August, 1, 14, 0, 0, 0, time.UTC)

func TestSweep_AlertFansOutAcrossContacts(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", LastCheckIn: hoursAgo(sweepNow, 49)})
	require.NoError(t, f.repo.AddContact(ctx, &domain.EmergencyContact{
		UserID: u.ID, Name: "A", Email: "a@example.com", Preference: domain.PrefEmail,
	}))
	require.NoError(t, f.repo.AddContact(ctx, &domain.EmergencyContact{
		UserID: u.ID, Name: "B", Phone: "5551234567", Preference: domain.PrefSMS,
	}))

	f.sms.fail = true // SMS provider down must not block the email
	f.sched.SweepMissedCheckIns(ctx)

	assert.Equal(t, []string{"A"}, f.email.alerts, "exactly one email, to A")
	assert.Empty(t, f.email.reminders, "alert tier, never a reminder")
	assert.Empty(t, f.push.users, "no push at the alert tier")
	assert.True(t, f.led.HasSent(domain.KindAlert, u.ID, "2026-08-01"),
		"marked sent even though one channel failed")
}

func TestSweep_DedupAcrossTicks(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", LastCheckIn: hoursAgo(sweepNow, 49)})
	require.NoError(t, f.repo.AddContact(ctx, &domain.EmergencyContact{
		UserID: u.ID, Name: "A", Email: "a@example.com", Preference: domain.PrefEmail,
	}))

	f.sched.SweepMissedCheckIns(ctx)
	require.Equal(t, 1, f.email.alertCount())

	// Next hourly tick, same day: nothing new.
	f.now = f.now.Add(time.Hour)
	f.sched.SweepMissedCheckIns(ctx)
	assert.Equal(t, 1, f.email.alertCount())

	// Next day the alert tier fires again if still overdue.
	f.now = f.now.Add(24 * time.Hour)
	f.sched.SweepMissedCheckIns(ctx)
	assert.Equal(t, 2, f.email.alertCount())
}

func TestSweep_ReminderTierSendsEmailAndPush(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", LastCheckIn: hoursAgo(sweepNow, 25)})
	require.NoError(t, f.repo.AddContact(ctx, &domain.EmergencyContact{
		UserID: u.ID, Name: "A", Email: "a@example.com", Preference: domain.PrefEmail,
	}))

	f.sched.SweepMissedCheckIns(ctx)

	assert.Equal(t, []string{"A"}, f.email.reminders)
	assert.Empty(t, f.email.alerts)
	assert.Equal(t, []string{u.ID}, f.push.users, "reminder push nudges the user")
	assert.True(t, f.led.HasSent(domain.KindReminder, u.ID, "2026-08-01"))
}

func TestSweep_LegacyContactFallback(t *testing.T) {
	f := newFixture(t, sweepNow)

	f.seedUser(t, &domain.User{
		Name:         "Dana",
		LastCheckIn:  hoursAgo(sweepNow, 49),
		ContactName:  "Mom",
		ContactEmail: "mom@example.com",
	})

	f.sched.SweepMissedCheckIns(context.Background())
	assert.Equal(t, []string{"Mom"}, f.email.alerts)
}

func TestSweep_VacationAndFreshUsersUntouched(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	f.seedUser(t, &domain.User{Name: "fresh", LastCheckIn: hoursAgo(sweepNow, 3), ContactEmail: "x@example.com"})
	f.seedUser(t, &domain.User{
		Name:          "away",
		LastCheckIn:   hoursAgo(sweepNow, 100),
		VacationUntil: ptrTime(sweepNow.Add(48 * time.Hour)),
		ContactEmail:  "y@example.com",
	})

	f.sched.SweepMissedCheckIns(ctx)
	assert.Empty(t, f.email.alerts)
	assert.Empty(t, f.email.reminders)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestSweep_ReentrancyGuard(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", LastCheckIn: hoursAgo(sweepNow, 49)})
	require.NoError(t, f.repo.AddContact(ctx, &domain.EmergencyContact{
		UserID: u.ID, Name: "A", Email: "a@example.com", Preference: domain.PrefEmail,
	}))

	f.email.started = make(chan struct{})
	f.email.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		f.sched.SweepMissedCheckIns(ctx)
		close(done)
	}()

	<-f.email.started
	// A second tick while the first is mid-dispatch must be skipped.
	f.sched.SweepMissedCheckIns(ctx)

	close(f.email.block)
	<-done

	assert.Equal(t, 1, f.email.alertCount(), "overlapping tick was skipped")
}

func TestSweep_OverdueActivities(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", ContactName: "Mom", ContactEmail: "mom@example.com"})
	act := &domain.Activity{
		UserID: u.ID, Type: "run", Label: "Evening run",
		DurationMinutes: 30,
		StartedAt:       sweepNow.Add(-40 * time.Minute),
		ExpectedEndAt:   sweepNow.Add(-10 * time.Minute),
	}
	require.NoError(t, f.repo.CreateActivity(ctx, act))

	f.sched.SweepOverdueActivities(ctx)
	assert.Equal(t, []string{"Mom"}, f.email.activityAlerts)

	// Marked alerted: the next sweep is quiet.
	f.sched.SweepOverdueActivities(ctx)
	assert.Len(t, f.email.activityAlerts, 1)
}

func TestSweep_FailedActivityAlertRetries(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	u := f.seedUser(t, &domain.User{Name: "Dana", ContactEmail: "mom@example.com", ContactName: "Mom"})
	require.NoError(t, f.repo.CreateActivity(ctx, &domain.Activity{
		UserID: u.ID, Type: "run",
		DurationMinutes: 30,
		StartedAt:       sweepNow.Add(-40 * time.Minute),
		ExpectedEndAt:   sweepNow.Add(-10 * time.Minute),
	}))

	f.email.fail = true
	f.sched.SweepOverdueActivities(ctx)
	assert.Empty(t, f.email.activityAlerts)

	// Delivery recovers: the still-active record is retried.
	f.email.fail = false
	f.sched.SweepOverdueActivities(ctx)
	assert.Equal(t, []string{"Mom"}, f.email.activityAlerts)
}

func TestCleanupLedgerAndPrune(t *testing.T) {
	f := newFixture(t, sweepNow)
	ctx := context.Background()

	f.led.MarkSent(domain.KindReminder, "u1", "2026-07-20")
	f.led.MarkSent(domain.KindAlert, "u2", "2026-08-01")
	f.sched.CleanupLedger()
	assert.Equal(t, 1, f.led.Len(), "stale day dropped, today kept")

	u := f.seedUser(t, &domain.User{Timezone: "UTC"})
	lat, lng := 40.7, -74.0
	_, _, err := f.repo.RecordCheckIn(ctx, u.ID,
		store.CheckInInput{Latitude: &lat, Longitude: &lng}, sweepNow.AddDate(-2, 0, 0))
	require.NoError(t, err)

	loc, err := f.repo.LastCheckInLocation(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, loc)

	f.sched.PruneHistory(ctx)

	loc, err = f.repo.LastCheckInLocation(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, loc, "two-year-old check-in pruned")
}
