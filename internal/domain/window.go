package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// HoursSince returns the hours elapsed since last, or +Inf when last is nil
// (a user who has never checked in is maximally overdue).
func HoursSince(last *time.Time, now time.Time) float64 {
	if last == nil {
		return math.Inf(1)
	}
	return now.Sub(*last).Hours()
}

// PastWindow reports whether now is past the user's check-in window end in
// their local time. An unset window end means no restriction and always
// returns true. Any parse or timezone failure also returns true: the
// evaluator fails open toward notifying, and the returned error tells the
// caller to log the condition.
func PastWindow(u *User, now time.Time) (bool, error) {
	if u.CheckInWindowEnd == "" {
		return true, nil
	}

	tz := u.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return true, err
	}

	endM, err := ParseHHMM(u.CheckInWindowEnd)
	if err != nil {
		return true, err
	}

	localNow := now.In(loc)
	windowEnd := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
		endM/60, endM%60, 0, 0, loc)
	return localNow.After(windowEnd), nil
}

// ParseHHMM parses "HH:MM" into minutes since midnight (0..1439).
func ParseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// ValidateTZ checks that tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}
