package entry

import (
	"fmt"
	"time"
)

var permitLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// permitWindow builds the departure and arrival instants from the permit's
// stored date and time strings, interpreted in loc.
func permitWindow(p Permit, loc *time.Location) (time.Time, time.Time, error) {
	departure, err := parsePermitStamp(p.ExpectedDate, p.ExpectedTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("departure: %w", err)
	}
	arrival, err := parsePermitStamp(p.ExpectedArrivalDate, p.ExpectedArrivalTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("arrival: %w", err)
	}
	return departure, arrival, nil
}

func parsePermitStamp(date, clock string, loc *time.Location) (time.Time, error) {
	raw := date + "T" + clock
	var lastErr error
	for _, layout := range permitLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// matchPermit returns the first permit whose [departure, arrival] window
// contains t (closed interval). Permits with unparseable dates are skipped
// so one bad row never blocks the rest.
func matchPermit(permits []Permit, t time.Time, loc *time.Location) (Permit, bool) {
	for _, p := range permits {
		departure, arrival, err := permitWindow(p, loc)
		if err != nil {
			continue
		}
		if !t.Before(departure) && !t.After(arrival) {
			return p, true
		}
	}
	return Permit{}, false
}
