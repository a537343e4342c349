package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

func TestMemory_MarkAndHas(t *testing.T) {
	m := NewMemory()

	assert.False(t, m.HasSent(domain.KindReminder, "u1", "2026-06-01"))

	m.MarkSent(domain.KindReminder, "u1", "2026-06-01")
	assert.True(t, m.HasSent(domain.KindReminder, "u1", "2026-06-01"))

	// Kinds, users, and days are independent keys.
	assert.False(t, m.HasSent(domain.KindAlert, "u1", "2026-06-01"))
	assert.False(t, m.HasSent(domain.KindReminder, "u2", "2026-06-01"))
	assert.False(t, m.HasSent(domain.KindReminder, "u1", "2026-06-02"))
}

func TestMemory_CleanupKeepsTodayAndYesterday(t *testing.T) {
	m := NewMemory()
	m.MarkSent(domain.KindReminder, "u1", "2026-06-01")
	m.MarkSent(domain.KindAlert, "u1", "2026-06-02")
	m.MarkSent(domain.KindReminder, "u2", "2026-06-03")
	require.Equal(t, 3, m.Len())

	m.Cleanup("2026-06-03")

	assert.False(t, m.HasSent(domain.KindReminder, "u1", "2026-06-01"), "two days old is dropped")
	assert.True(t, m.HasSent(domain.KindAlert, "u1", "2026-06-02"), "yesterday survives")
	assert.True(t, m.HasSent(domain.KindReminder, "u2", "2026-06-03"), "today survives")
	assert.Equal(t, 2, m.Len())
}

func TestMemory_CleanupBadDayIsNoOp(t *testing.T) {
	m := NewMemory()
	m.MarkSent(domain.KindReminder, "u1", "2026-06-01")
	m.Cleanup("not-a-day")
	assert.Equal(t, 1, m.Len())
}

func TestDayKey_Location(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC is still the previous day in New York.
	at := time.Date(2026, time.June, 2, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-06-02", DayKey(at, time.UTC))
	assert.Equal(t, "2026-06-01", DayKey(at, ny))
	assert.Equal(t, "2026-05-31", PrevDayKey(at, ny))
}
