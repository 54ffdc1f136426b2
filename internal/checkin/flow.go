// Package checkin wires one student attendance attempt end to end:
// schedule eligibility, a bounded beacon scan, match polling, and the
// once-per-day guard.
package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"classattend/internal/guard"
	"classattend/internal/match"
	"classattend/internal/scan"
	"classattend/internal/schedule"
)

// Class is the enrollment context one attempt runs against.
type Class struct {
	ID       string
	Name     string
	Schedule schedule.Spec
	BeaconID string
}

// Kind classifies how an attempt ended.
type Kind int

const (
	// KindRecorded means the server accepted a new record today.
	KindRecorded Kind = iota
	// KindAlreadyRecorded means today's record already existed, locally or
	// server-side. Informational, not a failure.
	KindAlreadyRecorded
	// KindNoMatch means the scan window closed without seeing the beacon.
	KindNoMatch
	// KindNotInSession means the class is not meeting right now.
	KindNotInSession
	// KindManualOnly means the class has no beacon binding; attendance is
	// taken by the teacher instead.
	KindManualOnly
	// KindAborted means the attempt was cancelled mid-scan.
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindRecorded:
		return "recorded"
	case KindAlreadyRecorded:
		return "already_recorded"
	case KindNoMatch:
		return "no_match"
	case KindNotInSession:
		return "not_in_session"
	case KindManualOnly:
		return "manual_only"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the terminal state of one attempt.
type Result struct {
	Kind     Kind
	Date     string
	BeaconID string
	RSSI     int
	// NextSlot is filled on KindNotInSession when another session still
	// starts today.
	NextSlot string
}

// Flow runs check-in attempts against a fixed radio, cache and backend.
type Flow struct {
	Radio        scan.Radio
	Guard        *guard.Guard
	ScanDuration time.Duration
	ScanOptions  scan.Options
	Poller       match.Poller
	Log          zerolog.Logger
}

// Attempt runs one attendance attempt for class. Radio and backend failures
// are returned as errors (scan.ErrRadioUnavailable, guard.ErrUnavailable);
// every other ending is a Result.
func (f *Flow) Attempt(ctx context.Context, class Class) (Result, error) {
	now := time.Now()
	date := guard.Today(class.Schedule.Location())
	log := f.Log.With().Str("class_id", class.ID).Str("date", date).Logger()

	if !schedule.InSession(class.Schedule, now) {
		res := Result{Kind: KindNotInSession, Date: date}
		if next, ok := schedule.NextSessionStart(class.Schedule, now); ok {
			res.NextSlot = next.Raw
		}
		log.Debug().Str("next_slot", res.NextSlot).Msg("class not in session")
		return res, nil
	}

	// Fast path before any radio work.
	if f.Guard.HasCheckedInToday(ctx, class.ID, date) {
		log.Info().Msg("already checked in today (local)")
		return Result{Kind: KindAlreadyRecorded, Date: date}, nil
	}

	if class.BeaconID == "" {
		log.Info().Msg("class has no beacon; manual check-in only")
		return Result{Kind: KindManualOnly, Date: date}, nil
	}

	sess := scan.NewSession(f.Radio, f.ScanOptions)
	if err := sess.Start(ctx, f.ScanDuration); err != nil {
		return Result{}, err
	}
	defer sess.Cancel()

	decision := f.Poller.Run(ctx, sess, match.Binding{BeaconID: class.BeaconID})
	log.Debug().Str("outcome", decision.Outcome.String()).Msg("scan finished")

	switch decision.Outcome {
	case match.OutcomeMatched:
	case match.OutcomeTimeout:
		return Result{Kind: KindNoMatch, Date: date}, nil
	case match.OutcomeAborted:
		return Result{Kind: KindAborted, Date: date}, nil
	default:
		return Result{Kind: KindManualOnly, Date: date}, nil
	}

	err := f.Guard.RecordIntent(ctx, guard.Intent{
		ClassID:  class.ID,
		Date:     date,
		Decision: decision,
	})
	switch {
	case err == nil:
		log.Info().Str("beacon_id", decision.BeaconID).Int("rssi", decision.RSSI).Msg("attendance recorded")
		return Result{Kind: KindRecorded, Date: date, BeaconID: decision.BeaconID, RSSI: decision.RSSI}, nil
	case errors.Is(err, guard.ErrAlreadyRecordedLocally):
		return Result{Kind: KindAlreadyRecorded, Date: date}, nil
	default:
		return Result{}, err
	}
}
