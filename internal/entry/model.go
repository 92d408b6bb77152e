package entry

import (
	"strings"
	"time"
)

// Student is a registered dorm resident, looked up by the uid of their card.
// Read-only from this package's perspective.
type Student struct {
	UID           string
	FirstName     string
	MiddleName    string
	LastName      string
	StudentNumber string
	DormResidence string
}

// FullName composes "First M. Last", abbreviating the middle name to an
// initial when present.
func (s Student) FullName() string {
	parts := make([]string, 0, 3)
	if s.FirstName != "" {
		parts = append(parts, s.FirstName)
	}
	if s.MiddleName != "" {
		parts = append(parts, s.MiddleName[:1]+".")
	}
	if s.LastName != "" {
		parts = append(parts, s.LastName)
	}
	return strings.Join(parts, " ")
}

// Permit is an approved leave request with an expected departure/arrival
// window. Date and time fields are stored as strings ("2006-01-02", "15:04")
// and interpreted in the service's configured zone.
type Permit struct {
	ID                  string
	StudentNo           string
	Status              string
	TypeOfPermit        string
	ExpectedDate        string
	ExpectedTime        string
	ExpectedArrivalDate string
	ExpectedArrivalTime string
}

// ExpectedReturn is the human-readable arrival shown on dashboards.
func (p Permit) ExpectedReturn() string {
	return p.ExpectedArrivalDate + " " + p.ExpectedArrivalTime
}

// Entry is one attendance record. An entry with TimeOut unset is "open":
// the student is out (or in) pending the matching scan.
type Entry struct {
	ID               string
	StudentNo        string
	StudentName      string
	DormResidence    string
	TimeIn           string
	TimeInTimestamp  time.Time
	TimeOut          string
	TimeOutTimestamp *time.Time
	HasViolation     bool
	PermitID         *string
	PermitType       *string
}

// Open reports whether the entry is still waiting for its closing scan.
func (e Entry) Open() bool {
	return e.TimeOut == "" && e.TimeOutTimestamp == nil
}

// Violation is an append-only curfew violation report.
type Violation struct {
	StudentNo        string
	StudentName      string
	Violation        string
	Description      string
	DatetimeReported string
	Timestamp        time.Time
	Status           string
}

// PermitSummary is the slice of permit data exposed in scan results.
type PermitSummary struct {
	Type           string `json:"type"`
	ExpectedReturn string `json:"expectedReturn"`
}

// ScanResult is the outcome of one scan. It is what POST /entry returns,
// what the live feed broadcasts, and what the latest-entry endpoint replays.
type ScanResult struct {
	Success          bool           `json:"success"`
	UID              string         `json:"uid"`
	Name             string         `json:"name"`
	StudentNumber    string         `json:"studentNumber"`
	Timestamp        string         `json:"timestamp"`
	Message          string         `json:"message,omitempty"`
	EntryType        string         `json:"entryType,omitempty"`
	IsDuringCurfew   bool           `json:"isDuringCurfew"`
	HasPermit        bool           `json:"hasPermit"`
	HasViolation     bool           `json:"hasViolation"`
	Permit           *PermitSummary `json:"permit"`
	RegistrationLink string         `json:"registrationLink,omitempty"`
}
