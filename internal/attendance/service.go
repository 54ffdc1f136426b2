package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClassNotFound means the class id is unknown.
	ErrClassNotFound = errors.New("class not found")
	// ErrNotEnrolled means the student is not enrolled in the class.
	ErrNotEnrolled = errors.New("student not enrolled in this class")
	// ErrAlreadyRecorded means a record for (class, student, date) exists.
	// The self-check-in endpoint maps this to 409 so clients can treat it
	// as idempotent success.
	ErrAlreadyRecorded = errors.New("attendance already recorded for today")
	// ErrNotOwner means the acting teacher does not own the class.
	ErrNotOwner = errors.New("you do not own this class")
	// ErrInvalidStatus rejects statuses outside present/absent.
	ErrInvalidStatus = errors.New("status must be present or absent")
	// ErrInvalidDate rejects dates not formatted yyyy-MM-dd.
	ErrInvalidDate = errors.New("date must be yyyy-MM-dd")
)

const dateLayout = "2006-01-02"

// NormalizeStatus validates and canonicalizes an attendance status.
func NormalizeStatus(status string) (string, error) {
	switch status {
	case "present", "absent":
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// ValidDate reports whether date is a yyyy-MM-dd calendar date.
func ValidDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

// Service coordinates attendance writes and the idempotence rule.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// resolveDate validates date, or computes "today" in the class's own
// timezone when the client omitted it. Using the class timezone keeps the
// server and a device in another zone agreeing on which day it is.
func resolveDate(class *Class, date string) (string, error) {
	if date == "" {
		return time.Now().In(class.Schedule.Location()).Format(dateLayout), nil
	}
	if !ValidDate(date) {
		return "", ErrInvalidDate
	}
	return date, nil
}

// RecordSelf handles the student check-in path: the student must be enrolled
// and the day's row must not exist yet. The insert itself is the idempotence
// point; the unique index decides races. Returns the calendar date recorded.
func (s *Service) RecordSelf(ctx context.Context, classID, studentID, date string) (string, error) {
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return "", err
	}
	if class == nil {
		return "", ErrClassNotFound
	}
	if date, err = resolveDate(class, date); err != nil {
		return "", err
	}
	enrolled, err := s.repo.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return "", err
	}
	if !enrolled {
		return "", ErrNotEnrolled
	}

	inserted, err := s.repo.InsertDayRecord(ctx, DayRecord{
		ClassID:   classID,
		StudentID: studentID,
		Date:      date,
		Status:    "present",
	})
	if err != nil {
		return "", err
	}
	if !inserted {
		return date, ErrAlreadyRecorded
	}
	return date, nil
}

// SetManual handles the teacher path: overwrite the day's status for one
// student. The teacher must own the class. Returns the calendar date written.
func (s *Service) SetManual(ctx context.Context, teacherID, classID, studentID, date, status string) (string, error) {
	status, err := NormalizeStatus(status)
	if err != nil {
		return "", err
	}
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return "", err
	}
	if class == nil {
		return "", ErrClassNotFound
	}
	if date, err = resolveDate(class, date); err != nil {
		return "", err
	}
	if class.TeacherID != teacherID {
		return "", ErrNotOwner
	}
	return date, s.repo.UpsertDayRecord(ctx, DayRecord{
		ClassID:   classID,
		StudentID: studentID,
		Date:      date,
		Status:    status,
	})
}

// AttendanceForDate returns a class's records for one date.
func (s *Service) AttendanceForDate(ctx context.Context, classID, date string) ([]DayRecord, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	return s.repo.AttendanceForDate(ctx, classID, date)
}

// Roster returns the class roster.
func (s *Service) Roster(ctx context.Context, classID string) ([]Student, error) {
	return s.repo.Roster(ctx, classID)
}

// RegisterClass creates a class; the beacon binding set here is immutable
// afterwards.
func (s *Service) RegisterClass(ctx context.Context, c Class) (Class, error) {
	if c.Name == "" || c.TeacherID == "" {
		return Class{}, errors.New("class name and teacher required")
	}
	c.Schedule = c.Schedule.Normalize()
	return s.repo.CreateClass(ctx, c)
}

// Enroll adds a student to a class.
func (s *Service) Enroll(ctx context.Context, classID, studentID string) error {
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return err
	}
	if class == nil {
		return ErrClassNotFound
	}
	return s.repo.Enroll(ctx, classID, studentID)
}

// RecomputePercentages refreshes derived attendance figures for a class.
// Called by the worker after new records arrive.
func (s *Service) RecomputePercentages(ctx context.Context, classID string) error {
	return s.repo.RecomputePercentages(ctx, classID)
}
