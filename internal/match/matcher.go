// Package match decides whether a scan window's discovered devices satisfy a
// class's beacon binding.
package match

import (
	"time"

	"classattend/internal/scan"
)

// Outcome is the matcher's verdict for one evaluation.
type Outcome int

const (
	// OutcomePending means no verdict yet; the caller keeps polling.
	OutcomePending Outcome = iota
	// OutcomeMatched means the class's beacon was seen.
	OutcomeMatched
	// OutcomeTimeout means the max wait elapsed without a match.
	OutcomeTimeout
	// OutcomeNoBinding means the class has no registered beacon. Such
	// classes never auto-match from a scan; check-in goes through the
	// teacher's manual path instead.
	OutcomeNoBinding
	// OutcomeAborted means the scan session was cancelled underneath the
	// matcher before a verdict was reached.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeMatched:
		return "matched"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNoBinding:
		return "no_binding"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome ends the attempt.
func (o Outcome) Terminal() bool { return o != OutcomePending }

// Binding is a class's registered beacon identifier. An empty BeaconID means
// the class has no beacon gating.
type Binding struct {
	BeaconID string
}

// Config tunes a matching run.
type Config struct {
	// MaxWait caps how long the matcher keeps polling. Independent of the
	// scan session's own window so the two can be tuned separately.
	MaxWait time.Duration
	// MinRSSI, when non-zero, rejects sightings weaker than this floor
	// (dBm, so e.g. -75). Zero keeps the source behavior: any sighting of
	// the right identifier counts regardless of signal strength.
	MinRSSI int
}

// DefaultMaxWait matches the 30s ceiling of the standard check-in flow.
const DefaultMaxWait = 30 * time.Second

// Decision carries the outcome plus the matched sighting when there is one.
type Decision struct {
	Outcome  Outcome
	BeaconID string
	RSSI     int
}

// Decide evaluates the discovered set against the binding. Pure: it reads
// its inputs and nothing else. The first device in first-seen order whose
// identifier equals the target wins.
func Decide(devices []scan.Advertisement, binding Binding, elapsed time.Duration, cfg Config) Decision {
	if binding.BeaconID == "" {
		return Decision{Outcome: OutcomeNoBinding}
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	for _, d := range devices {
		if d.ID != binding.BeaconID {
			continue
		}
		if cfg.MinRSSI != 0 && d.RSSI < cfg.MinRSSI {
			continue
		}
		return Decision{Outcome: OutcomeMatched, BeaconID: d.ID, RSSI: d.RSSI}
	}
	if elapsed >= maxWait {
		return Decision{Outcome: OutcomeTimeout}
	}
	return Decision{Outcome: OutcomePending}
}
