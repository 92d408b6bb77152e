package entry

import (
	"fmt"
	"time"
)

// CurfewWindow is the nightly interval during which unpermitted scans are
// violations. The start boundary is inclusive, the end boundary exclusive:
// with the default 22:30-06:00 window, 22:30:00 is curfew and 06:00:00 is
// not. All checks happen in the window's civil zone.
type CurfewWindow struct {
	start int // minutes past midnight
	end   int
	loc   *time.Location
}

// NewCurfewWindow parses "HH:MM" boundaries. A window whose start is later
// than its end wraps past midnight.
func NewCurfewWindow(start, end string, loc *time.Location) (CurfewWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return CurfewWindow{}, fmt.Errorf("curfew start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return CurfewWindow{}, fmt.Errorf("curfew end: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return CurfewWindow{start: s, end: e, loc: loc}, nil
}

// Contains reports whether t falls inside the curfew window.
func (w CurfewWindow) Contains(t time.Time) bool {
	lt := t.In(w.loc)
	m := lt.Hour()*60 + lt.Minute()
	if w.start <= w.end {
		return m >= w.start && m < w.end
	}
	return m >= w.start || m < w.end
}

// Location returns the civil zone all scan timestamps are evaluated in.
func (w CurfewWindow) Location() *time.Location {
	return w.loc
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return h*60 + m, nil
}
