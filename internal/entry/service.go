package entry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"dormwatch/internal/feed"
	"dormwatch/internal/metrics"
)

const (
	// EntryTypeTimeIn marks a scan that opened a new entry.
	EntryTypeTimeIn = "time_in"
	// EntryTypeTimeOut marks a scan that closed the open entry.
	EntryTypeTimeOut = "time_out"

	curfewViolationKind = "Curfew Violation"

	// displayLayout mirrors what dashboards already render.
	displayLayout = "1/2/2006, 3:04:05 PM"
)

// ErrMissingUID is returned when a scan arrives without an identifier.
var ErrMissingUID = errors.New("uid required")

// ErrNotRegistered is returned when the uid resolves to no student. The
// ScanResult returned alongside it carries the registration link.
var ErrNotRegistered = errors.New("user not registered")

// Store is everything the scan path needs from the database.
type Store interface {
	StudentByUID(ctx context.Context, uid string) (*Student, error)
	ApprovedPermits(ctx context.Context, studentNo string) ([]Permit, error)
	LatestEntry(ctx context.Context, studentNo string) (*Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	CloseEntry(ctx context.Context, id, timeOut string, ts time.Time, hasViolation bool, permitID, permitType *string) error
	InsertViolation(ctx context.Context, v Violation) error
}

// Service classifies scans: it resolves the student, applies curfew policy
// and permits, maintains the in/out entry timeline, and broadcasts results.
type Service struct {
	store               Store
	feed                feed.Feed
	curfew              CurfewWindow
	registrationBaseURL string
	now                 func() time.Time

	perStudent keyedMutex

	// latest is the single-writer cell behind GET /entry/latest-entry and
	// the initial SSE event. Only Scan writes it.
	mu     sync.RWMutex
	latest ScanResult
}

// NewService creates a scan service.
func NewService(store Store, f feed.Feed, curfew CurfewWindow, registrationBaseURL string) *Service {
	return &Service{
		store:               store,
		feed:                f,
		curfew:              curfew,
		registrationBaseURL: registrationBaseURL,
		now:                 time.Now,
		latest:              ScanResult{Success: true},
	}
}

// Scan processes one device scan. The not-registered outcome returns
// ErrNotRegistered together with a populated result; any other error means
// the scan could not be classified.
func (s *Service) Scan(ctx context.Context, uid string) (ScanResult, error) {
	if uid == "" {
		return ScanResult{}, ErrMissingUID
	}

	student, err := s.store.StudentByUID(ctx, uid)
	if err != nil {
		return ScanResult{}, fmt.Errorf("resolve uid: %w", err)
	}
	if student == nil {
		res := ScanResult{
			UID:              uid,
			Message:          "User not registered",
			RegistrationLink: s.registrationBaseURL + "?uid=" + url.QueryEscape(uid),
		}
		metrics.ScansTotal.WithLabelValues("not_registered").Inc()
		s.broadcast(ctx, res)
		return res, ErrNotRegistered
	}

	// Serialize per student so two rapid scans cannot both observe the
	// same open entry.
	unlock := s.perStudent.lock(student.StudentNumber)
	defer unlock()

	// One instant drives every decision in this scan.
	now := s.now().In(s.curfew.Location())
	display := now.Format(displayLayout)

	var covering *Permit
	permits, err := s.store.ApprovedPermits(ctx, student.StudentNumber)
	if err != nil {
		// Degrade to "no permit" so curfew checking still runs.
		log.Printf("permit lookup failed for %s: %v", student.StudentNumber, err)
	} else if p, ok := matchPermit(permits, now, s.curfew.Location()); ok {
		covering = &p
	}
	hasPermit := covering != nil
	inCurfew := s.curfew.Contains(now)

	hasViolation := false
	if inCurfew && !hasPermit {
		v := Violation{
			StudentNo:        student.StudentNumber,
			StudentName:      student.FullName(),
			Violation:        curfewViolationKind,
			Description:      "Student entered/left dorm during curfew hours without valid permit",
			DatetimeReported: display,
			Timestamp:        now,
			Status:           "pending",
		}
		if err := s.store.InsertViolation(ctx, v); err != nil {
			// Fire-and-forget: the scan still completes.
			log.Printf("violation write failed for %s: %v", student.StudentNumber, err)
		}
		hasViolation = true
		metrics.ViolationsTotal.Inc()
	}

	var permitID, permitType *string
	var summary *PermitSummary
	if covering != nil {
		permitID = &covering.ID
		permitType = &covering.TypeOfPermit
		summary = &PermitSummary{Type: covering.TypeOfPermit, ExpectedReturn: covering.ExpectedReturn()}
	}

	latest, err := s.store.LatestEntry(ctx, student.StudentNumber)
	if err != nil {
		return ScanResult{}, fmt.Errorf("latest entry: %w", err)
	}

	entryType := EntryTypeTimeIn
	message := "Time in recorded"
	if latest != nil && latest.Open() {
		if err := s.store.CloseEntry(ctx, latest.ID, display, now, hasViolation, permitID, permitType); err != nil {
			return ScanResult{}, fmt.Errorf("close entry: %w", err)
		}
		entryType = EntryTypeTimeOut
		message = "Time out recorded"
	} else {
		e := Entry{
			StudentNo:       student.StudentNumber,
			StudentName:     student.FullName(),
			DormResidence:   student.DormResidence,
			TimeIn:          display,
			TimeInTimestamp: now,
			HasViolation:    hasViolation,
			PermitID:        permitID,
			PermitType:      permitType,
		}
		if _, err := s.store.InsertEntry(ctx, e); err != nil {
			return ScanResult{}, fmt.Errorf("insert entry: %w", err)
		}
	}

	res := ScanResult{
		Success:        true,
		UID:            uid,
		Name:           student.FullName(),
		StudentNumber:  student.StudentNumber,
		Timestamp:      display,
		Message:        message,
		EntryType:      entryType,
		IsDuringCurfew: inCurfew,
		HasPermit:      hasPermit,
		HasViolation:   hasViolation,
		Permit:         summary,
	}

	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()

	metrics.ScansTotal.WithLabelValues(entryType).Inc()
	s.broadcast(ctx, res)
	return res, nil
}

// Latest returns the most recent scan result, zero-valued (Success true,
// empty identity) before the first scan.
func (s *Service) Latest() ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Service) broadcast(ctx context.Context, res ScanResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.Printf("marshal scan result: %v", err)
		return
	}
	if err := s.feed.Publish(ctx, payload); err != nil {
		log.Printf("feed publish failed: %v", err)
	}
}

// keyedMutex hands out one mutex per student number.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
