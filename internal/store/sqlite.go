package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const userColumns = `id, name, contact_name, contact_email, contact_phone,
	alert_preference, pet_name, pet_emoji, pet_notes, streak, last_check_in,
	vacation_until, snooze_until, check_in_window_start, check_in_window_end,
	timezone, location_sharing_enabled, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		pref        string
		lastNS      sql.NullInt64
		vacationNS  sql.NullInt64
		snoozeNS    sql.NullInt64
		locShareInt int
		createdAt   int64
	)
	if err := row.Scan(
		&u.ID, &u.Name, &u.ContactName, &u.ContactEmail, &u.ContactPhone,
		&pref, &u.PetName, &u.PetEmoji, &u.PetNotes, &u.Streak, &lastNS,
		&vacationNS, &snoozeNS, &u.CheckInWindowStart, &u.CheckInWindowEnd,
		&u.Timezone, &locShareInt, &createdAt,
	); err != nil {
		return nil, err
	}
	u.AlertPreference = domain.AlertPreference(pref)
	u.LastCheckIn = fromNullInt64(lastNS)
	u.VacationUntil = fromNullInt64(vacationNS)
	u.SnoozeUntil = fromNullInt64(snoozeNS)
	u.LocationSharingEnabled = locShareInt != 0
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// UpsertUser inserts or updates a user row. A missing ID is assigned here.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	pref := u.AlertPreference
	if pref == "" {
		pref = domain.PrefEmail
	}
	if u.Timezone != "" {
		tz, err := domain.ValidateTZ(u.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", u.Timezone, err)
		}
		u.Timezone = tz
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, name, contact_name, contact_email, contact_phone,
			alert_preference, pet_name, pet_emoji, pet_notes, streak,
			last_check_in, vacation_until, snooze_until,
			check_in_window_start, check_in_window_end, timezone,
			location_sharing_enabled, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name                     = excluded.name,
			contact_name             = excluded.contact_name,
			contact_email            = excluded.contact_email,
			contact_phone            = excluded.contact_phone,
			alert_preference         = excluded.alert_preference,
			pet_name                 = excluded.pet_name,
			pet_emoji                = excluded.pet_emoji,
			pet_notes                = excluded.pet_notes,
			streak                   = excluded.streak,
			last_check_in            = excluded.last_check_in,
			vacation_until           = excluded.vacation_until,
			snooze_until             = excluded.snooze_until,
			check_in_window_start    = excluded.check_in_window_start,
			check_in_window_end      = excluded.check_in_window_end,
			timezone                 = excluded.timezone,
			location_sharing_enabled = excluded.location_sharing_enabled`,
		u.ID, u.Name, u.ContactName, u.ContactEmail, u.ContactPhone,
		string(pref), u.PetName, u.PetEmoji, u.PetNotes, u.Streak,
		toNullInt64(u.LastCheckIn), toNullInt64(u.VacationUntil),
		toNullInt64(u.SnoozeUntil), u.CheckInWindowStart, u.CheckInWindowEnd,
		u.Timezone, boolToInt(u.LocationSharingEnabled), u.CreatedAt.UTC().Unix(),
	)
	return err
}

// GetUser returns a user by id or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// UsersNeedingReminder returns users whose last check-in is older than
// thresholdHours or absent, excluding users currently on vacation. Snooze is
// not filtered here; the classifier handles it per tier.
func (r *SQLiteRepo) UsersNeedingReminder(ctx context.Context, now time.Time, thresholdHours int) ([]domain.User, error) {
	cutoff := now.UTC().Add(-time.Duration(thresholdHours) * time.Hour).Unix()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (last_check_in IS NULL OR last_check_in < ?)
		  AND (vacation_until IS NULL OR vacation_until < ?)`,
		cutoff, now.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// RecordCheckIn applies the streak rules in the user's timezone and stores a
// check-in row. A repeat check-in on the same local day leaves everything
// untouched.
func (r *SQLiteRepo) RecordCheckIn(ctx context.Context, userID string, in CheckInInput, now time.Time) (*domain.User, bool, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	streak, already := domain.NextStreak(u.LastCheckIn, now, u.Streak, u.Location())
	if already {
		return u, true, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO check_ins (user_id, mood, note, latitude, longitude, checked_in_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, in.Mood, in.Note, toNullFloat(in.Latitude), toNullFloat(in.Longitude),
		now.UTC().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET streak = ?, last_check_in = ? WHERE id = ?`,
		streak, now.UTC().Unix(), userID,
	); err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	checked := now.UTC()
	u.Streak = streak
	u.LastCheckIn = &checked
	return u, false, nil
}

// LastCheckInLocation returns the most recent check-in coordinates for a
// user, or nil when no located check-in exists.
func (r *SQLiteRepo) LastCheckInLocation(ctx context.Context, userID string) (*domain.Location, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT latitude, longitude, checked_in_at
		FROM check_ins
		WHERE user_id = ? AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY checked_in_at DESC
		LIMIT 1`,
		userID,
	)
	var (
		lat, lng float64
		at       int64
	)
	if err := row.Scan(&lat, &lng, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Location{Latitude: lat, Longitude: lng, Timestamp: time.Unix(at, 0).UTC()}, nil
}

// CheckInHistory returns the user's most recent check-ins, newest first.
func (r *SQLiteRepo) CheckInHistory(ctx context.Context, userID string, limit int) ([]domain.CheckIn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, mood, note, latitude, longitude, checked_in_at
		FROM check_ins
		WHERE user_id = ?
		ORDER BY checked_in_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CheckIn
	for rows.Next() {
		var (
			c        domain.CheckIn
			lat, lng sql.NullFloat64
			at       int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Mood, &c.Note, &lat, &lng, &at); err != nil {
			return nil, err
		}
		c.Latitude = fromNullFloat(lat)
		c.Longitude = fromNullFloat(lng)
		c.CheckedAt = time.Unix(at, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneCheckIns deletes check-ins recorded before olderThan and reports how
// many rows were removed.
func (r *SQLiteRepo) PruneCheckIns(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM check_ins WHERE checked_in_at < ?`, olderThan.UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddContact stores an emergency contact. At least one of email or phone
// must be present.
func (r *SQLiteRepo) AddContact(ctx context.Context, c *domain.EmergencyContact) error {
	if c == nil {
		return errors.New("nil contact")
	}
	if c.Email == "" && c.Phone == "" {
		return errors.New("contact needs an email or phone")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	pref := c.Preference
	if pref == "" {
		pref = domain.PrefEmail
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emergency_contacts (id, user_id, name, email, phone, alert_preference, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, string(pref), c.Priority,
		c.CreatedAt.UTC().Unix(),
	)
	return err
}

// DeleteContact removes a contact owned by userID.
func (r *SQLiteRepo) DeleteContact(ctx context.Context, userID, contactID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM emergency_contacts WHERE id = ? AND user_id = ?`, contactID, userID)
	return err
}

// EmergencyContacts returns a user's contacts ordered by priority.
func (r *SQLiteRepo) EmergencyContacts(ctx context.Context, userID string) ([]domain.EmergencyContact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, email, phone, alert_preference, priority, created_at
		FROM emergency_contacts
		WHERE user_id = ?
		ORDER BY priority ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.EmergencyContact
	for rows.Next() {
		var (
			c         domain.EmergencyContact
			pref      string
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &pref, &c.Priority, &createdAt); err != nil {
			return nil, err
		}
		c.Preference = domain.AlertPreference(pref)
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		res = append(res, c)
	}
	return res, rows.Err()
}

// CreateActivity stores a new server-side activity with status active.
func (r *SQLiteRepo) CreateActivity(ctx context.Context, a *domain.Activity) error {
	if a == nil {
		return errors.New("nil activity")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.ActivityActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (
			id, user_id, type, label, duration_minutes, started_at,
			expected_end_at, share_location, latitude, longitude, details, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Type, a.Label, a.DurationMinutes,
		a.StartedAt.UTC().Unix(), a.ExpectedEndAt.UTC().Unix(),
		boolToInt(a.ShareLocation), toNullFloat(a.Latitude), toNullFloat(a.Longitude),
		a.Details, string(a.Status),
	)
	return err
}

// OverdueActivities returns active activities whose expected end plus the
// grace period has passed.
func (r *SQLiteRepo) OverdueActivities(ctx context.Context, now time.Time, grace time.Duration) ([]domain.Activity, error) {
	deadline := now.UTC().Add(-grace).Unix()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, label, duration_minutes, started_at,
		       expected_end_at, share_location, latitude, longitude, details, status
		FROM activities
		WHERE status = ? AND expected_end_at <= ?
		ORDER BY expected_end_at ASC`,
		string(domain.ActivityActive), deadline,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Activity
	for rows.Next() {
		var (
			a          domain.Activity
			startedAt  int64
			endAt      int64
			shareInt   int
			latNF      sql.NullFloat64
			lngNF      sql.NullFloat64
			statusText string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Label, &a.DurationMinutes,
			&startedAt, &endAt, &shareInt, &latNF, &lngNF, &a.Details, &statusText); err != nil {
			return nil, err
		}
		a.StartedAt = time.Unix(startedAt, 0).UTC()
		a.ExpectedEndAt = time.Unix(endAt, 0).UTC()
		a.ShareLocation = shareInt != 0
		a.Latitude = fromNullFloat(latNF)
		a.Longitude = fromNullFloat(lngNF)
		a.Status = domain.ActivityStatus(statusText)
		res = append(res, a)
	}
	return res, rows.Err()
}

// SetActivityStatus transitions an activity record.
func (r *SQLiteRepo) SetActivityStatus(ctx context.Context, activityID string, status domain.ActivityStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE activities SET status = ? WHERE id = ?`, string(status), activityID)
	return err
}

// SavePushSubscription registers a web-push endpoint, replacing any previous
// row for the same endpoint.
func (r *SQLiteRepo) SavePushSubscription(ctx context.Context, s *PushSubscription) error {
	if s == nil {
		return errors.New("nil subscription")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = ?`, s.Endpoint); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.UserID, s.Endpoint, s.P256dh, s.Auth, time.Now().UTC().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// PushSubscriptions returns all registered endpoints for a user.
func (r *SQLiteRepo) PushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth
		FROM push_subscriptions
		WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PushSubscription
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// DeletePushSubscriptions removes every endpoint registered by a user.
func (r *SQLiteRepo) DeletePushSubscriptions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ?`, userID)
	return err
}
