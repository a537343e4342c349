package domain

import "time"

// SameLocalDay reports whether a and b fall on the same calendar day in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NextStreak computes the streak after a check-in at now. A check-in on the
// same local day as the last one keeps the streak and reports
// alreadyCheckedIn; a check-in the day after the last one extends it; any
// gap resets it to 1. Days are evaluated in the user's timezone.
func NextStreak(last *time.Time, now time.Time, current int, loc *time.Location) (streak int, alreadyCheckedIn bool) {
	if last == nil {
		return 1, false
	}
	if SameLocalDay(*last, now, loc) {
		return current, true
	}
	if SameLocalDay(last.In(loc).AddDate(0, 0, 1), now, loc) {
		return current + 1, false
	}
	return 1, false
}
