package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper: build a time in given tz and return its UTC
func mustLocalUTC(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	require.NoError(t, err, "load tz")
	return time.Date(y, m, d, hh, mm, 0, 0, loc).UTC()
}

func TestHoursSince(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, math.IsInf(HoursSince(nil, now), 1), "never checked in is +Inf overdue")

	last := now.Add(-25 * time.Hour)
	assert.InDelta(t, 25.0, HoursSince(&last, now), 1e-9)
}

func TestPastWindow_UnsetAlwaysTrue(t *testing.T) {
	u := &User{Timezone: "America/New_York"}
	past, err := PastWindow(u, time.Now())
	require.NoError(t, err)
	assert.True(t, past)
}

func TestPastWindow_LocalTime(t *testing.T) {
	u := &User{Timezone: "America/New_York", CheckInWindowEnd: "21:00"}

	// 19:30 New York: before window end.
	now := mustLocalUTC(t, u.Timezone, 2026, time.March, 10, 19, 30)
	past, err := PastWindow(u, now)
	require.NoError(t, err)
	assert.False(t, past)

	// 21:30 New York: past window end.
	now = mustLocalUTC(t, u.Timezone, 2026, time.March, 10, 21, 30)
	past, err = PastWindow(u, now)
	require.NoError(t, err)
	assert.True(t, past)
}

func TestPastWindow_FailsOpen(t *testing.T) {
	// Broken timezone: must lean toward notifying, with the error surfaced.
	u := &User{Timezone: "Not/AZone", CheckInWindowEnd: "21:00"}
	past, err := PastWindow(u, time.Now())
	assert.Error(t, err)
	assert.True(t, past)

	// Unparseable window end behaves the same.
	u = &User{Timezone: "UTC", CheckInWindowEnd: "9pm"}
	past, err = PastWindow(u, time.Now())
	assert.Error(t, err)
	assert.True(t, past)
}

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"23:59", 23*60 + 59, false},
		{" 08:05 ", 8*60 + 5, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseHHMM(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestValidateTZ(t *testing.T) {
	name, err := ValidateTZ("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", name)

	_, err = ValidateTZ("Mars/Olympus")
	assert.Error(t, err)
}
