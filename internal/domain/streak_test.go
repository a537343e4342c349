package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStreak_FirstCheckIn(t *testing.T) {
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	streak, already := NextStreak(nil, now, 0, time.UTC)
	assert.Equal(t, 1, streak)
	assert.False(t, already)
}

func TestNextStreak_SameDayIsNoOp(t *testing.T) {
	now := time.Date(2026, time.May, 1, 21, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	streak, already := NextStreak(&last, now, 7, time.UTC)
	assert.Equal(t, 7, streak)
	assert.True(t, already)
}

func TestNextStreak_ConsecutiveDayIncrements(t *testing.T) {
	now := time.Date(2026, time.May, 2, 7, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.May, 1, 23, 30, 0, 0, time.UTC)
	streak, already := NextStreak(&last, now, 7, time.UTC)
	assert.Equal(t, 8, streak)
	assert.False(t, already)
}

func TestNextStreak_GapResets(t *testing.T) {
	now := time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.May, 1, 7, 0, 0, 0, time.UTC)
	streak, already := NextStreak(&last, now, 30, time.UTC)
	assert.Equal(t, 1, streak)
	assert.False(t, already)
}

func TestNextStreak_UsesUserTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// 11:30 UTC May 1 and 13:00 UTC May 1 straddle midnight in Auckland
	// (UTC+12): the second check-in lands on the next local day.
	last := time.Date(2026, time.May, 1, 11, 30, 0, 0, time.UTC)
	now := time.Date(2026, time.May, 1, 13, 0, 0, 0, time.UTC)

	streak, already := NextStreak(&last, now, 3, loc)
	assert.Equal(t, 4, streak, "next local day extends the streak")
	assert.False(t, already)

	// In UTC the same pair is a same-day repeat.
	streak, already = NextStreak(&last, now, 3, time.UTC)
	assert.Equal(t, 3, streak)
	assert.True(t, already)
}
