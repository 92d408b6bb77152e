package entry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists dorm access data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// StudentByUID resolves a card uid to its registered student. Returns
// (nil, nil) when the uid is unknown.
func (r *Repository) StudentByUID(ctx context.Context, uid string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT uid, first_name, COALESCE(middle_name, ''), last_name, student_number, COALESCE(dorm_residence, 'Unknown')
		FROM users WHERE uid = $1
	`, uid)
	var s Student
	if err := row.Scan(&s.UID, &s.FirstName, &s.MiddleName, &s.LastName, &s.StudentNumber, &s.DormResidence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ApprovedPermits returns every approved permit for the student. Window
// matching happens in the service; this is just the equality filter.
func (r *Repository) ApprovedPermits(ctx context.Context, studentNo string) ([]Permit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_no, status, type_of_permit,
		       expected_date, expected_time, expected_arrival_date, expected_arrival_time
		FROM permits
		WHERE student_no = $1 AND status = 'approved'
	`, studentNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Permit
	for rows.Next() {
		var p Permit
		if err := rows.Scan(&p.ID, &p.StudentNo, &p.Status, &p.TypeOfPermit,
			&p.ExpectedDate, &p.ExpectedTime, &p.ExpectedArrivalDate, &p.ExpectedArrivalTime); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// LatestEntry returns the student's most recent entry by time-in, or
// (nil, nil) when the student has never scanned.
func (r *Repository) LatestEntry(ctx context.Context, studentNo string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_no, student_name, dorm_residence,
		       time_in, time_in_timestamp, COALESCE(time_out, ''), time_out_timestamp,
		       has_violation, permit_id, permit_type
		FROM entries
		WHERE student_no = $1
		ORDER BY time_in_timestamp DESC
		LIMIT 1
	`, studentNo)
	var e Entry
	if err := row.Scan(&e.ID, &e.StudentNo, &e.StudentName, &e.DormResidence,
		&e.TimeIn, &e.TimeInTimestamp, &e.TimeOut, &e.TimeOutTimestamp,
		&e.HasViolation, &e.PermitID, &e.PermitType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// InsertEntry writes a new open entry.
func (r *Repository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (id, student_no, student_name, dorm_residence,
		                     time_in, time_in_timestamp, time_out, time_out_timestamp,
		                     has_violation, permit_id, permit_type)
		VALUES ($1,$2,$3,$4,$5,$6,'',NULL,$7,$8,$9)
	`, e.ID, e.StudentNo, e.StudentName, e.DormResidence,
		e.TimeIn, e.TimeInTimestamp, e.HasViolation, e.PermitID, e.PermitType)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// CloseEntry sets the time-out on an open entry. The permit reference is
// only overwritten when the closing scan carries one.
func (r *Repository) CloseEntry(ctx context.Context, id, timeOut string, ts time.Time, hasViolation bool, permitID, permitType *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries
		SET time_out = $2, time_out_timestamp = $3, has_violation = $4,
		    permit_id = COALESCE($5, permit_id), permit_type = COALESCE($6, permit_type)
		WHERE id = $1
	`, id, timeOut, ts, hasViolation, permitID, permitType)
	return err
}

// InsertViolation appends a violation report. Rows are never updated by
// this service.
func (r *Repository) InsertViolation(ctx context.Context, v Violation) error {
	if v.Status == "" {
		v.Status = "pending"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO violations (id, student_no, student_name, violation, description,
		                        datetime_reported, timestamp, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, uuid.NewString(), v.StudentNo, v.StudentName, v.Violation, v.Description,
		v.DatetimeReported, v.Timestamp, v.Status)
	return err
}

// UpsertDevice ensures a reader device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return err
}
