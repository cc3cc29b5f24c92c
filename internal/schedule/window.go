package schedule

import (
	"time"
	_ "time/tzdata"
)

// HomeZone is the zone every calling rule is evaluated in.
const HomeZone = "Europe/London"

var London = mustLoadLocation(HomeZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Window is a daily calling window in minutes since local midnight.
// Both ends are inclusive.
type Window struct {
	Start int
	End   int
}

var (
	MorningWindow   = Window{Start: 10 * 60, End: 11*60 + 30}
	AfternoonWindow = Window{Start: 14*60 + 30, End: 16*60 + 30}
)

func (w Window) Contains(minute int) bool { return minute >= w.Start && minute <= w.End }

// IsCallingWindow reports whether now falls inside a calling window,
// Monday to Friday, in the home zone.
func IsCallingWindow(now time.Time) bool {
	local := now.In(London)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return MorningWindow.Contains(m) || AfternoonWindow.Contains(m)
}
