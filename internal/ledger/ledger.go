// Package ledger tracks which notifications already went out so a user never
// receives more than one reminder and one alert per calendar day. The
// default implementation is in-memory: losing it on restart risks at worst a
// duplicate within the same day, never a missed notification.
package ledger

import (
	"sync"
	"time"

	"github.com/SiamakSafari/stillhere-sub000/internal/domain"
)

// Ledger records per-day notification sends.
type Ledger interface {
	HasSent(kind domain.Kind, userID, day string) bool
	MarkSent(kind domain.Kind, userID, day string)
	// Cleanup drops entries that are neither today nor yesterday, bounding
	// memory growth.
	Cleanup(today string)
}

// DayKey formats t as a calendar-day string in loc. The location is an
// explicit parameter: the day boundary used for dedup is configuration, not
// an assumption (see DEDUP_TZ).
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// PrevDayKey returns the day key for the day before the one containing t.
func PrevDayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).AddDate(0, 0, -1).Format("2006-01-02")
}

type entry struct {
	kind   domain.Kind
	userID string
	day    string
}

// Memory is the in-process Ledger.
type Memory struct {
	mu   sync.Mutex
	sent map[entry]time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{sent: make(map[entry]time.Time)}
}

func (m *Memory) HasSent(kind domain.Kind, userID, day string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[entry{kind, userID, day}]
	return ok
}

func (m *Memory) MarkSent(kind domain.Kind, userID, day string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[entry{kind, userID, day}] = time.Now().UTC()
}

// Cleanup removes every entry whose day is neither today nor the day before
// it. Yesterday is kept so a send just before midnight still dedups a tick
// just after it.
func (m *Memory) Cleanup(today string) {
	d, err := time.Parse("2006-01-02", today)
	if err != nil {
		return
	}
	yesterday := d.AddDate(0, 0, -1).Format("2006-01-02")

	m.mu.Lock()
	defer m.mu.Unlock()
	for e := range m.sent {
		if e.day != today && e.day != yesterday {
			delete(m.sent, e)
		}
	}
}

// Len reports the number of tracked entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
