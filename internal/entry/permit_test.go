package entry

import (
	"testing"
	"time"
)

func permitAt(departure, arrival string) Permit {
	return Permit{
		ID:                  "p1",
		StudentNo:           "2021-0001",
		Status:              "approved",
		TypeOfPermit:        "Weekend Leave",
		ExpectedDate:        departure[:10],
		ExpectedTime:        departure[11:],
		ExpectedArrivalDate: arrival[:10],
		ExpectedArrivalTime: arrival[11:],
	}
}

func TestMatchPermitCoversClosedInterval(t *testing.T) {
	p := permitAt("2026-03-10 18:00", "2026-03-11 07:00")

	cases := []struct {
		at   string
		want bool
	}{
		{"2026-03-10 17:59", false},
		{"2026-03-10 18:00", true}, // departure boundary
		{"2026-03-10 23:30", true},
		{"2026-03-11 07:00", true}, // arrival boundary
		{"2026-03-11 07:01", false},
	}
	for _, tc := range cases {
		ts, err := time.ParseInLocation("2006-01-02 15:04", tc.at, manila)
		if err != nil {
			t.Fatal(err)
		}
		_, ok := matchPermit([]Permit{p}, ts, manila)
		if ok != tc.want {
			t.Errorf("matchPermit at %s = %v, want %v", tc.at, ok, tc.want)
		}
	}
}

func TestMatchPermitSkipsMalformed(t *testing.T) {
	bad := Permit{ExpectedDate: "soon", ExpectedTime: "ish", ExpectedArrivalDate: "later", ExpectedArrivalTime: "maybe"}
	good := permitAt("2026-03-10 18:00", "2026-03-11 07:00")

	ts, _ := time.ParseInLocation("2006-01-02 15:04", "2026-03-10 23:00", manila)
	got, ok := matchPermit([]Permit{bad, good}, ts, manila)
	if !ok {
		t.Fatal("expected the well-formed permit to match")
	}
	if got.ID != good.ID {
		t.Errorf("matched %q, want %q", got.ID, good.ID)
	}
}

func TestMatchPermitNoCandidates(t *testing.T) {
	ts, _ := time.ParseInLocation("2006-01-02 15:04", "2026-03-10 23:00", manila)
	if _, ok := matchPermit(nil, ts, manila); ok {
		t.Error("empty permit list should not match")
	}
}

func TestParsePermitStampWithSeconds(t *testing.T) {
	got, err := parsePermitStamp("2026-03-10", "18:00:30", manila)
	if err != nil {
		t.Fatal(err)
	}
	if got.Second() != 30 {
		t.Errorf("seconds lost: %v", got)
	}
}
