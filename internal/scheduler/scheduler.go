// Package scheduler runs the periodic sweeps that turn missed check-ins and
// overdue activities into notifications.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
	"github.com/SiamakSafari/stillhere-sub000/internal/ledger"
	"github.com/SiamakSafari/stillhere-sub000/internal/notify"
	"github.com/SiamakSafari/stillhere-sub000/internal/store"
)

// startupDelay gives the store a moment to settle before the first sweep.
const startupDelay = 2 * time.Second

// Options configures a Scheduler.
type Options struct {
	Thresholds    domain.Thresholds
	ActivityGrace time.Duration
	Retention     time.Duration    // check-in rows older than this are pruned
	DayLocation   *time.Location   // calendar day used for dedup keys
	Now           func() time.Time // defaults to time.Now
}

// Scheduler owns the cron job table and the sweep logic.
type Scheduler struct {
	repo     store.Repo
	ledger   ledger.Ledger
	dispatch *notify.Dispatcher
	push     notify.PushSender
	email    notify.EmailSender
	log      *zap.Logger
	opts     Options

	cron     *cron.Cron
	sweeping atomic.Bool // re-entrancy guard for the check-in sweep
}

// New wires a Scheduler. The cron chain recovers panics so a failing job
// never takes the process down.
func New(repo store.Repo, led ledger.Ledger, dispatch *notify.Dispatcher, push notify.PushSender, email notify.EmailSender, log *zap.Logger, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DayLocation == nil {
		opts.DayLocation = time.UTC
	}
	return &Scheduler{
		repo:     repo,
		ledger:   led,
		dispatch: dispatch,
		push:     push,
		email:    email,
		log:      log,
		opts:     opts,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
	}
}

// Start registers the job table and launches the cron loop plus a delayed
// initial sweep. The schedule mirrors the production cadence: check-ins
// hourly, activities every minute, ledger cleanup at midnight, history
// pruning weekly.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		run  func()
	}{
		{"0 * * * *", func() { s.SweepMissedCheckIns(ctx) }},
		{"* * * * *", func() { s.SweepOverdueActivities(ctx) }},
		{"0 0 * * *", func() { s.CleanupLedger() }},
		{"0 3 * * 0", func() { s.PruneHistory(ctx) }},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return err
		}
	}
	s.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(startupDelay):
		}
		s.SweepMissedCheckIns(ctx)
		s.SweepOverdueActivities(ctx)
	}()

	s.log.Info("scheduler started",
		zap.String("checkins", "hourly"),
		zap.String("activities", "every minute"),
		zap.String("ledger_cleanup", "daily"),
		zap.String("prune", "weekly"),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// SweepMissedCheckIns classifies every overdue user and fans out the
// resulting notifications. Overlapping invocations are skipped: a sweep that
// is still dispatching must finish before the next one starts.
func (s *Scheduler) SweepMissedCheckIns(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Warn("check-in sweep still running, skipping tick")
		return
	}
	defer s.sweeping.Store(false)

	now := s.opts.Now().UTC()
	day := ledger.DayKey(now, s.opts.DayLocation)

	users, err := s.repo.UsersNeedingReminder(ctx, now, int(s.opts.Thresholds.ReminderHours))
	if err != nil {
		s.log.Error("query overdue users failed", zap.Error(err))
		return
	}
	s.log.Debug("check-in sweep", zap.Int("candidates", len(users)))

	for i := range users {
		s.processUser(ctx, &users[i], now, day)
	}
}

// processUser handles one user so a failure never aborts the rest of the
// sweep.
func (s *Scheduler) processUser(ctx context.Context, u *domain.User, now time.Time, day string) {
	kind, windowErr := domain.Classify(u, now, s.ledger, day, s.opts.Thresholds)
	if windowErr != nil {
		// Classification already failed open; just record why.
		s.log.Warn("check-in window evaluation failed",
			zap.String("user", u.ID), zap.Error(windowErr))
	}
	if kind == domain.KindNone {
		return
	}

	hours := domain.HoursSince(u.LastCheckIn, now)
	s.log.Info("escalating missed check-in",
		zap.String("user", u.ID),
		zap.String("kind", string(kind)),
		zap.Float64("hours_since_checkin", hours),
	)

	contacts, err := s.repo.EmergencyContacts(ctx, u.ID)
	if err != nil {
		s.log.Error("load contacts failed", zap.String("user", u.ID), zap.Error(err))
		return
	}

	var loc *domain.Location
	if kind == domain.KindAlert && u.LocationSharingEnabled {
		loc, err = s.repo.LastCheckInLocation(ctx, u.ID)
		if err != nil {
			s.log.Warn("load last location failed", zap.String("user", u.ID), zap.Error(err))
		}
	}

	s.dispatch.Dispatch(ctx, u, kind, contacts, loc)

	if kind == domain.KindReminder && s.push != nil && s.push.Configured() {
		// Push is a nudge to the user themselves, never fatal.
		if err := s.push.SendReminder(ctx, u); err != nil {
			s.log.Debug("reminder push failed", zap.String("user", u.ID), zap.Error(err))
		}
	}

	// Marked after fan-out was attempted for all contacts, regardless of
	// outcome: a broken provider must not cause same-day retry storms.
	// Still-overdue users escalate again on the next day's cycle.
	s.ledger.MarkSent(kind, u.ID, day)
}

// SweepOverdueActivities alerts contacts about activities whose expected end
// plus grace has passed, then marks them alerted. A fully failed delivery
// leaves the activity active so the next minute retries it.
func (s *Scheduler) SweepOverdueActivities(ctx context.Context) {
	now := s.opts.Now().UTC()

	overdue, err := s.repo.OverdueActivities(ctx, now, s.opts.ActivityGrace)
	if err != nil {
		s.log.Error("query overdue activities failed", zap.Error(err))
		return
	}

	for i := range overdue {
		a := &overdue[i]
		u, err := s.repo.GetUser(ctx, a.UserID)
		if err != nil {
			s.log.Warn("user not found for activity",
				zap.String("activity", a.ID), zap.String("user", a.UserID), zap.Error(err))
			continue
		}

		contacts, err := s.repo.EmergencyContacts(ctx, u.ID)
		if err != nil {
			s.log.Error("load contacts failed", zap.String("user", u.ID), zap.Error(err))
			continue
		}
		if len(contacts) == 0 {
			legacy := u.LegacyContact()
			if legacy.Email == "" {
				s.log.Warn("no contact for activity alert", zap.String("activity", a.ID))
				continue
			}
			contacts = []domain.EmergencyContact{legacy}
		}

		delivered := 0
		for _, c := range contacts {
			if c.Email == "" {
				continue
			}
			if err := s.email.SendActivityAlert(ctx, u, c, a); err != nil {
				s.log.Error("activity alert failed",
					zap.String("activity", a.ID), zap.String("contact", c.Name), zap.Error(err))
				continue
			}
			delivered++
		}
		if delivered == 0 {
			continue
		}
		if err := s.repo.SetActivityStatus(ctx, a.ID, domain.ActivityAlerted); err != nil {
			s.log.Error("mark activity alerted failed", zap.String("activity", a.ID), zap.Error(err))
			continue
		}
		s.log.Info("activity alert sent",
			zap.String("activity", a.ID), zap.String("label", a.Label), zap.Int("contacts", delivered))
	}
}

// CleanupLedger drops dedup entries older than yesterday.
func (s *Scheduler) CleanupLedger() {
	today := ledger.DayKey(s.opts.Now(), s.opts.DayLocation)
	s.ledger.Cleanup(today)
	s.log.Debug("ledger cleaned", zap.String("today", today))
}

// PruneHistory deletes check-ins beyond the retention window.
func (s *Scheduler) PruneHistory(ctx context.Context) {
	if s.opts.Retention <= 0 {
		return
	}
	cutoff := s.opts.Now().UTC().Add(-s.opts.Retention)
	n, err := s.repo.PruneCheckIns(ctx, cutoff)
	if err != nil {
		s.log.Error("prune check-ins failed", zap.Error(err))
		return
	}
	s.log.Info("old check-ins pruned", zap.Int64("rows", n))
}

// cronLogger adapts zap to cron's logger so recovered panics are reported
// through the same sink as everything else.
type cronLogger struct{ log *zap.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.log.Sugar().Infow(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.log.Sugar().Errorw(msg, append(kv, "error", err)...)
}
