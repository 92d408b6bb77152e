package entry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dormwatch/internal/feed"
)

type closeCall struct {
	id           string
	timeOut      string
	ts           time.Time
	hasViolation bool
	permitID     *string
	permitType   *string
}

type fakeStore struct {
	students     map[string]Student
	permits      []Permit
	permitsErr   error
	latest       *Entry
	latestErr    error
	violationErr error

	inserted   []Entry
	closed     []closeCall
	violations []Violation
}

func (f *fakeStore) StudentByUID(_ context.Context, uid string) (*Student, error) {
	s, ok := f.students[uid]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) ApprovedPermits(_ context.Context, _ string) ([]Permit, error) {
	return f.permits, f.permitsErr
}

func (f *fakeStore) LatestEntry(_ context.Context, _ string) (*Entry, error) {
	return f.latest, f.latestErr
}

func (f *fakeStore) InsertEntry(_ context.Context, e Entry) (Entry, error) {
	f.inserted = append(f.inserted, e)
	return e, nil
}

func (f *fakeStore) CloseEntry(_ context.Context, id, timeOut string, ts time.Time, hasViolation bool, permitID, permitType *string) error {
	f.closed = append(f.closed, closeCall{id, timeOut, ts, hasViolation, permitID, permitType})
	return nil
}

func (f *fakeStore) InsertViolation(_ context.Context, v Violation) error {
	if f.violationErr != nil {
		return f.violationErr
	}
	f.violations = append(f.violations, v)
	return nil
}

type captureFeed struct {
	published [][]byte
}

func (f *captureFeed) Publish(_ context.Context, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}

func (f *captureFeed) Subscribe(_ context.Context) (feed.Subscription, error) {
	return nil, errors.New("not implemented")
}

func newTestService(t *testing.T, st *fakeStore, at string) (*Service, *captureFeed) {
	t.Helper()
	w := mustWindow(t, "22:30", "06:00", manila)
	f := &captureFeed{}
	svc := NewService(st, f, w, "https://dormwatch.netlify.app/auth/register")
	fixed, err := time.ParseInLocation("2006-01-02 15:04", at, manila)
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return fixed }
	return svc, f
}

func registered() *fakeStore {
	return &fakeStore{
		students: map[string]Student{
			"ABC123": {
				UID:           "ABC123",
				FirstName:     "Juan",
				MiddleName:    "Reyes",
				LastName:      "Dela Cruz",
				StudentNumber: "2021-0001",
				DormResidence: "North Hall",
			},
		},
	}
}

func TestScanMissingUID(t *testing.T) {
	svc, _ := newTestService(t, registered(), "2026-03-10 12:00")
	if _, err := svc.Scan(context.Background(), ""); !errors.Is(err, ErrMissingUID) {
		t.Fatalf("err = %v, want ErrMissingUID", err)
	}
}

func TestScanUnregistered(t *testing.T) {
	st := registered()
	svc, f := newTestService(t, st, "2026-03-10 23:00")

	res, err := svc.Scan(context.Background(), "ghost")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	if res.Success {
		t.Error("not-registered result must not be marked success")
	}
	if !strings.Contains(res.RegistrationLink, "uid=ghost") {
		t.Errorf("registration link %q should carry the uid", res.RegistrationLink)
	}
	if len(st.inserted) != 0 || len(st.violations) != 0 {
		t.Error("unregistered scan must not write entries or violations")
	}
	if len(f.published) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(f.published))
	}
	// The latest cell must stay untouched.
	if got := svc.Latest(); got.UID != "" {
		t.Errorf("latest cell overwritten by unregistered scan: %+v", got)
	}
}

func TestScanCurfewViolation(t *testing.T) {
	st := registered()
	svc, _ := newTestService(t, st, "2026-03-10 23:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if res.EntryType != EntryTypeTimeIn {
		t.Errorf("entryType = %q, want time_in", res.EntryType)
	}
	if !res.IsDuringCurfew || res.HasPermit || !res.HasViolation {
		t.Errorf("flags = curfew:%v permit:%v violation:%v", res.IsDuringCurfew, res.HasPermit, res.HasViolation)
	}
	if len(st.violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(st.violations))
	}
	v := st.violations[0]
	if v.Violation != "Curfew Violation" || v.Status != "pending" || v.StudentNo != "2021-0001" {
		t.Errorf("violation = %+v", v)
	}
	if v.StudentName != "Juan R. Dela Cruz" {
		t.Errorf("student name = %q", v.StudentName)
	}
	if len(st.inserted) != 1 || !st.inserted[0].Open() {
		t.Errorf("expected one open entry, got %+v", st.inserted)
	}
	if st.inserted[0].HasViolation != true {
		t.Error("entry should carry the violation flag")
	}
}

func TestScanOutsideCurfewNoViolation(t *testing.T) {
	st := registered()
	svc, _ := newTestService(t, st, "2026-03-10 12:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuringCurfew || res.HasViolation {
		t.Errorf("noon scan flagged: %+v", res)
	}
	if len(st.violations) != 0 {
		t.Error("no violation should be recorded outside curfew")
	}
}

func TestScanPermitSuppressesViolation(t *testing.T) {
	st := registered()
	st.permits = []Permit{permitAt("2026-03-10 18:00", "2026-03-11 07:00")}
	svc, _ := newTestService(t, st, "2026-03-10 23:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasPermit || res.HasViolation {
		t.Errorf("flags = permit:%v violation:%v", res.HasPermit, res.HasViolation)
	}
	if res.Permit == nil || res.Permit.Type != "Weekend Leave" {
		t.Errorf("permit summary = %+v", res.Permit)
	}
	if len(st.violations) != 0 {
		t.Error("covered scan must not record a violation")
	}
	if st.inserted[0].PermitID == nil || *st.inserted[0].PermitID != "p1" {
		t.Errorf("entry permit ref = %+v", st.inserted[0].PermitID)
	}
}

func TestScanPermitLookupFailureStillViolates(t *testing.T) {
	st := registered()
	st.permitsErr = errors.New("store down")
	svc, _ := newTestService(t, st, "2026-03-10 23:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if res.HasPermit {
		t.Error("failed lookup must degrade to no permit")
	}
	if !res.HasViolation || len(st.violations) != 1 {
		t.Error("curfew violation must still be recorded")
	}
}

func TestScanViolationWriteFailureDoesNotAbort(t *testing.T) {
	st := registered()
	st.violationErr = errors.New("write failed")
	svc, _ := newTestService(t, st, "2026-03-10 23:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasViolation {
		t.Error("scan is still violating even when the write fails")
	}
	if len(st.inserted) != 1 {
		t.Error("entry must still be recorded")
	}
}

func TestScanClosesOpenEntry(t *testing.T) {
	st := registered()
	st.latest = &Entry{
		ID:              "e1",
		StudentNo:       "2021-0001",
		TimeIn:          "3/10/2026, 1:00:00 PM",
		TimeInTimestamp: time.Date(2026, 3, 10, 13, 0, 0, 0, manila),
	}
	svc, _ := newTestService(t, st, "2026-03-10 14:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if res.EntryType != EntryTypeTimeOut {
		t.Errorf("entryType = %q, want time_out", res.EntryType)
	}
	if len(st.inserted) != 0 {
		t.Error("closing scan must not create a new entry")
	}
	if len(st.closed) != 1 || st.closed[0].id != "e1" {
		t.Errorf("closed = %+v, want exactly entry e1", st.closed)
	}
}

func TestScanAfterClosedEntryOpensNew(t *testing.T) {
	out := time.Date(2026, 3, 10, 8, 0, 0, 0, manila)
	st := registered()
	st.latest = &Entry{
		ID:               "e1",
		StudentNo:        "2021-0001",
		TimeIn:           "3/10/2026, 7:00:00 AM",
		TimeInTimestamp:  time.Date(2026, 3, 10, 7, 0, 0, 0, manila),
		TimeOut:          "3/10/2026, 8:00:00 AM",
		TimeOutTimestamp: &out,
	}
	svc, _ := newTestService(t, st, "2026-03-10 14:00")

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if res.EntryType != EntryTypeTimeIn {
		t.Errorf("entryType = %q, want time_in", res.EntryType)
	}
	if len(st.closed) != 0 || len(st.inserted) != 1 {
		t.Errorf("closed=%d inserted=%d", len(st.closed), len(st.inserted))
	}
}

func TestLatestCellUpdatedPerScan(t *testing.T) {
	st := registered()
	svc, f := newTestService(t, st, "2026-03-10 12:00")

	if got := svc.Latest(); !got.Success || got.UID != "" {
		t.Errorf("pre-scan latest = %+v", got)
	}

	res, err := svc.Scan(context.Background(), "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if got := svc.Latest(); got != res {
		t.Errorf("latest = %+v, want %+v", got, res)
	}
	if len(f.published) != 1 {
		t.Errorf("expected 1 broadcast, got %d", len(f.published))
	}
}

func TestScanLatestEntryErrorSurfaces(t *testing.T) {
	st := registered()
	st.latestErr = errors.New("store down")
	svc, f := newTestService(t, st, "2026-03-10 12:00")

	if _, err := svc.Scan(context.Background(), "ABC123"); err == nil {
		t.Fatal("expected error")
	}
	if len(f.published) != 0 {
		t.Error("failed scans must not be broadcast")
	}
}
