package schedule

import (
	"math/rand"
	"time"
)

const (
	minRetryDelay = 24 * time.Hour
	maxRetryDelay = 48 * time.Hour
)

// NextRetryAt picks when a soft-failed business becomes callable again.
//
// The delay is uniform in [24h, 48h] after lastCallAt. The result is snapped
// to the start of the window opposite to the one lastCallAt fell in, moved
// off weekends, and is always after both lastCallAt and now.
func NextRetryAt(lastCallAt, now time.Time, rng *rand.Rand) time.Time {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	last := lastCallAt.In(London)

	spread := int64((maxRetryDelay - minRetryDelay) / time.Minute)
	delay := minRetryDelay + time.Duration(rng.Int63n(spread+1))*time.Minute
	target := last.Add(delay)

	w := MorningWindow
	if last.Hour() < 12 {
		w = AfternoonWindow
	}

	next := atMinute(target, w.Start)
	if w == MorningWindow && !next.After(now) {
		next = addDays(next, 1)
	}
	next = skipWeekend(next)
	for !next.After(lastCallAt) || !next.After(now) {
		next = skipWeekend(addDays(next, 1))
	}
	return next.UTC()
}

func atMinute(t time.Time, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, London)
}

// addDays moves by calendar days keeping the local wall-clock time.
func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), 0, 0, London)
}

func skipWeekend(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return addDays(t, 2)
	case time.Sunday:
		return addDays(t, 1)
	}
	return t
}
