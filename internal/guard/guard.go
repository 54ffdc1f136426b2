// Package guard enforces the at-most-one-attendance-per-class-per-day rule,
// reconciling a fast local cache with the authoritative backend record.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classattend/internal/match"
)

// Status is an attendance record's final state.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// DateLayout is the calendar-date format used on the wire and in cache keys.
const DateLayout = "2006-01-02"

var (
	// ErrAlreadyRecordedLocally is the fast-path rejection: the cache says
	// today's attendance is already in. Informational, not a failure.
	ErrAlreadyRecordedLocally = errors.New("attendance already recorded today")
	// ErrNotMatched means the intent's outcome was not a beacon match, so
	// there is nothing to record.
	ErrNotMatched = errors.New("attendance intent did not match a beacon")
	// ErrServerConflict means the server already holds a record for this
	// class/student/day. Treated as idempotent success by RecordIntent.
	ErrServerConflict = errors.New("attendance already recorded on server")
	// ErrUnavailable wraps network and server failures. Retryable: the
	// local marker is left unset so a later attempt can still go through.
	ErrUnavailable = errors.New("attendance backend unavailable")
)

// Recorder is the authoritative backend write/read surface the guard needs.
// Implementations map transport failures to ErrUnavailable and existing-row
// rejections to ErrServerConflict.
type Recorder interface {
	PutAttendance(ctx context.Context, classID, studentID, date string, status Status) error
}

// Intent is one transient attendance request produced by the matcher.
type Intent struct {
	ClassID   string
	StudentID string
	Date      string
	Decision  match.Decision
}

// Today formats the current calendar date in the class's own timezone. Using
// the class timezone rather than device-local time keeps the client and the
// server agreeing on which day "today" is.
func Today(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format(DateLayout)
}

// Guard mediates between the check-in cache and the backend for one student.
type Guard struct {
	cache     CheckinCache
	recorder  Recorder
	studentID string
}

// New builds a guard for studentID.
func New(cache CheckinCache, recorder Recorder, studentID string) *Guard {
	return &Guard{cache: cache, recorder: recorder, studentID: studentID}
}

// HasCheckedInToday consults only the local cache. A cache read failure
// counts as "not checked in": the cache is an optimization, never a blocker.
func (g *Guard) HasCheckedInToday(ctx context.Context, classID, date string) bool {
	marked, err := g.cache.Marked(ctx, classID, date)
	if err != nil {
		return false
	}
	return marked
}

// RecordIntent records attendance exactly once per class per day:
//
//  1. A local marker for today short-circuits with ErrAlreadyRecordedLocally
//     before any network traffic.
//  2. A matched intent is written to the backend as status=present.
//  3. On success the local marker is set.
//  4. A server conflict means someone got there first; that is success for
//     the student, and the marker is still set to speed up future checks.
//  5. Any other backend failure propagates wrapped in ErrUnavailable with no
//     marker written, keeping a retry possible.
func (g *Guard) RecordIntent(ctx context.Context, intent Intent) error {
	if intent.Decision.Outcome != match.OutcomeMatched {
		return ErrNotMatched
	}
	if g.HasCheckedInToday(ctx, intent.ClassID, intent.Date) {
		return ErrAlreadyRecordedLocally
	}

	studentID := intent.StudentID
	if studentID == "" {
		studentID = g.studentID
	}
	err := g.recorder.PutAttendance(ctx, intent.ClassID, studentID, intent.Date, StatusPresent)
	switch {
	case err == nil:
	case errors.Is(err, ErrServerConflict):
		// Already recorded server-side; not an error for the student.
	default:
		return fmt.Errorf("record attendance: %w", err)
	}

	// Marker is best-effort; losing it only costs a redundant round trip.
	_ = g.cache.Mark(ctx, intent.ClassID, intent.Date)
	return nil
}

// SetManualStatus is the teacher path: one direct backend call per student
// per save action. The check-in cache belongs to the self-service path and
// is bypassed entirely.
func (g *Guard) SetManualStatus(ctx context.Context, classID, studentID, date string, status Status) error {
	if status != StatusPresent && status != StatusAbsent {
		return fmt.Errorf("invalid status %q", status)
	}
	return g.recorder.PutAttendance(ctx, classID, studentID, date, status)
}
