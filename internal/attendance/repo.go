package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"classattend/internal/schedule"
)

// Class is a registered class with its schedule and optional beacon binding.
type Class struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	TeacherID string        `json:"teacher_id"`
	Schedule  schedule.Spec `json:"schedule"`
	BeaconID  *string       `json:"ble_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Student is one roster entry.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// DayRecord is one attendance row: at most one per (class, student, date),
// enforced by a unique index.
type DayRecord struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	Manual     bool      `json:"manual"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetClass loads one class including its schedule JSON and beacon binding.
func (r *Repository) GetClass(ctx context.Context, classID string) (*Class, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, teacher_id, timezone, start_date, end_date, schedule, ble_id, created_at
		FROM classes WHERE id = $1
	`, classID)

	var (
		c           Class
		scheduleRaw []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.TeacherID, &c.Schedule.Timezone,
		&c.Schedule.StartDate, &c.Schedule.EndDate, &scheduleRaw, &c.BeaconID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(scheduleRaw) > 0 {
		if err := json.Unmarshal(scheduleRaw, &c.Schedule.Days); err != nil {
			return nil, err
		}
	}
	c.Schedule = c.Schedule.Normalize()
	return &c, nil
}

// CreateClass registers a class. Schedule days are stored as JSON.
func (r *Repository) CreateClass(ctx context.Context, c Class) (Class, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	days, err := json.Marshal(c.Schedule.Days)
	if err != nil {
		return Class{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (id, name, teacher_id, timezone, start_date, end_date, schedule, ble_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, c.ID, c.Name, c.TeacherID, c.Schedule.Timezone, c.Schedule.StartDate, c.Schedule.EndDate, days, c.BeaconID)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return Class{}, err
	}
	return c, nil
}

// IsEnrolled reports whether the student is enrolled in the class.
func (r *Repository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2)
	`, classID, studentID).Scan(&exists)
	return exists, err
}

// Enroll adds a student to a class, ignoring duplicates.
func (r *Repository) Enroll(ctx context.Context, classID, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (class_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (class_id, student_id) DO NOTHING
	`, classID, studentID)
	return err
}

// Roster returns the students enrolled in a class ordered by name.
func (r *Repository) Roster(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, COALESCE(s.email, '')
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.class_id = $1
		ORDER BY s.name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// InsertDayRecord writes a new row and reports whether it was inserted.
// inserted=false means a record for the same (class, student, date) already
// exists; the caller maps that to the idempotence conflict.
func (r *Repository) InsertDayRecord(ctx context.Context, rec DayRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_days (id, class_id, student_id, date, status, manual)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (class_id, student_id, date) DO NOTHING
		RETURNING id
	`, rec.ID, rec.ClassID, rec.StudentID, rec.Date, rec.Status, rec.Manual)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpsertDayRecord overwrites the status for (class, student, date). Used by
// the teacher path, which may flip a record between present and absent.
func (r *Repository) UpsertDayRecord(ctx context.Context, rec DayRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_days (id, class_id, student_id, date, status, manual)
		VALUES ($1,$2,$3,$4,$5,TRUE)
		ON CONFLICT (class_id, student_id, date) DO UPDATE SET
			status = EXCLUDED.status,
			manual = TRUE,
			recorded_at = NOW()
	`, rec.ID, rec.ClassID, rec.StudentID, rec.Date, rec.Status)
	return err
}

// AttendanceForDate returns the class's records for one calendar date.
func (r *Repository) AttendanceForDate(ctx context.Context, classID, date string) ([]DayRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, class_id, student_id, to_char(date, 'YYYY-MM-DD'), status, manual, recorded_at
		FROM attendance_days
		WHERE class_id = $1 AND date = $2
		ORDER BY recorded_at
	`, classID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DayRecord
	for rows.Next() {
		var rec DayRecord
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.StudentID, &rec.Date, &rec.Status, &rec.Manual, &rec.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecomputePercentages refreshes each enrolled student's attendance figure
// for the class: present days over distinct session days with any record.
func (r *Repository) RecomputePercentages(ctx context.Context, classID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE enrollments e SET
			attendance_pct = sub.pct,
			pct_updated_at = NOW()
		FROM (
			SELECT s.student_id,
			       CASE WHEN days.total = 0 THEN 0
			            ELSE (100 * s.present / days.total) END AS pct
			FROM (
				SELECT student_id, COUNT(*) FILTER (WHERE status = 'present') AS present
				FROM attendance_days WHERE class_id = $1
				GROUP BY student_id
			) s
			CROSS JOIN (
				SELECT COUNT(DISTINCT date) AS total
				FROM attendance_days WHERE class_id = $1
			) days
		) sub
		WHERE e.class_id = $1 AND e.student_id = sub.student_id
	`, classID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, token, expiresAt)
	return err
}
