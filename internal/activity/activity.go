// Package activity implements the client-side Activity Mode: a time-boxed
// outing with a grace period before the user's contact is alerted. The state
// machine is explicit and framework-free; a UI drives it through Start,
// Extend, Confirm, Cancel and a periodic Tick.
package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is one node of the activity lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateGrace
	StateCompleted
	StateCancelled
	StateAlerted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateGrace:
		return "grace"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateAlerted:
		return "alerted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends an activity.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateAlerted
}

// DefaultGrace is the buffer after an activity's expected end before the
// alert fires.
const DefaultGrace = 5 * time.Minute

var (
	ErrNoActivity      = errors.New("no active activity")
	ErrAlreadyRunning  = errors.New("an activity is already running")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Activity describes one outing.
type Activity struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Label           string     `json:"label"`
	DurationMinutes int        `json:"durationMinutes"`
	StartedAt       time.Time  `json:"startedAt"`
	ExpectedEndAt   time.Time  `json:"expectedEndAt"`
	ShareLocation   bool       `json:"shareLocation"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	Details         string     `json:"details,omitempty"`
}

// StartParams are the user-supplied fields for a new activity.
type StartParams struct {
	Type            string
	Label           string
	DurationMinutes int
	ShareLocation   bool
	Latitude        *float64
	Longitude       *float64
	Details         string
}

// AlertFunc is invoked (fire-and-forget) when an activity escalates.
type AlertFunc func(Activity)

// Config wires a Session's collaborators. Zero values get sane defaults.
type Config struct {
	Grace   time.Duration
	Now     func() time.Time
	Alert   AlertFunc
	History *History
	Log     *zap.Logger
}

// Session is the activity state machine. All methods are safe for
// concurrent use; the zero state is Idle.
type Session struct {
	mu         sync.Mutex
	state      State
	current    *Activity
	graceStart time.Time // anchor set once when grace begins

	grace   time.Duration
	now     func() time.Time
	alert   AlertFunc
	history *History
	log     *zap.Logger
}

// NewSession builds an idle session.
func NewSession(cfg Config) *Session {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Session{
		state:   StateIdle,
		grace:   cfg.Grace,
		now:     cfg.Now,
		alert:   cfg.Alert,
		history: cfg.History,
		log:     cfg.Log,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the active activity, or nil when idle.
func (s *Session) Current() *Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	a := *s.current
	return &a
}

// Start begins an activity from Idle or any terminal state.
func (s *Session) Start(p StartParams) (*Activity, error) {
	if p.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StateGrace {
		return nil, ErrAlreadyRunning
	}

	started := s.now()
	a := &Activity{
		ID:              uuid.NewString(),
		Type:            p.Type,
		Label:           p.Label,
		DurationMinutes: p.DurationMinutes,
		StartedAt:       started,
		ExpectedEndAt:   started.Add(time.Duration(p.DurationMinutes) * time.Minute),
		ShareLocation:   p.ShareLocation,
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		Details:         p.Details,
	}
	s.current = a
	s.state = StateRunning
	s.graceStart = time.Time{}
	s.log.Info("activity started",
		zap.String("id", a.ID), zap.String("label", a.Label),
		zap.Int("minutes", a.DurationMinutes))

	out := *a
	return &out, nil
}

// Extend pushes the expected end forward by minutes. Extending during the
// grace period returns to Running and clears the grace anchor, so a later
// expiry starts a fresh grace window measured from the new expected end.
func (s *Session) Extend(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || (s.state != StateRunning && s.state != StateGrace) {
		return ErrNoActivity
	}

	s.current.DurationMinutes += minutes
	s.current.ExpectedEndAt = s.current.ExpectedEndAt.Add(time.Duration(minutes) * time.Minute)
	if s.state == StateGrace {
		s.state = StateRunning
		s.graceStart = time.Time{}
	}
	s.log.Info("activity extended",
		zap.String("id", s.current.ID), zap.Int("minutes", minutes))
	return nil
}

// Confirm records the user back safe: Running|Grace → Completed.
func (s *Session) Confirm() error {
	return s.finish(StateCompleted)
}

// Cancel ends the activity early: Running|Grace → Cancelled.
func (s *Session) Cancel() error {
	return s.finish(StateCancelled)
}

func (s *Session) finish(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || (s.state != StateRunning && s.state != StateGrace) {
		return ErrNoActivity
	}
	s.settle(to)
	return nil
}

// Tick advances the machine against now. Call it about once a second; any
// cadence works as long as transitions fire within a few seconds of their
// trigger time.
func (s *Session) Tick(now time.Time) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		if s.current != nil && !now.Before(s.current.ExpectedEndAt) {
			// Anchor the grace window at the moment it was entered, not at
			// the expected end: a lagging tick must not shorten the grace.
			s.state = StateGrace
			s.graceStart = now
			s.log.Info("activity grace period started", zap.String("id", s.current.ID))
		}
	case StateGrace:
		if !now.Before(s.graceStart.Add(s.grace)) {
			s.settle(StateAlerted)
		}
	}
	return s.state
}

// GraceDeadline returns when the grace period ends; ok is false outside
// grace.
func (s *Session) GraceDeadline() (deadline time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGrace {
		return time.Time{}, false
	}
	return s.graceStart.Add(s.grace), true
}

// settle moves to a terminal state, records history, fires the alert for
// StateAlerted, and clears the active activity. Caller holds the lock.
func (s *Session) settle(to State) {
	a := *s.current
	ended := s.now()
	s.log.Info("activity finished",
		zap.String("id", a.ID), zap.String("outcome", to.String()))

	if s.history != nil {
		if err := s.history.Append(Record{Activity: a, Outcome: to, EndedAt: ended}); err != nil {
			s.log.Warn("activity history write failed", zap.Error(err))
		}
	}
	if to == StateAlerted && s.alert != nil {
		// Fire-and-forget: the alert path must never block or fail a tick.
		go s.alert(a)
	}

	s.current = nil
	s.graceStart = time.Time{}
	s.state = to
}

// Run drives the machine from a wall-clock ticker until ctx is canceled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}
