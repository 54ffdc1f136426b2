package match

import (
	"context"
	"time"

	"classattend/internal/scan"
)

// DefaultInterval is how often the poller re-evaluates an active scan.
const DefaultInterval = 2 * time.Second

// Poller drives Decide against a live scan session on a cooperative timer.
// It checks the session state before every decision rather than trusting its
// own clock, so a Cancel from the session's owner ends it on the next tick
// at the latest, and its ticker is always released on return.
type Poller struct {
	Interval time.Duration
	Config   Config
}

// Run polls until a terminal decision is reached and returns it. A scan
// session that ends naturally without a match yields OutcomeTimeout: no
// further sightings are possible. Cancellation of either the context or the
// session yields OutcomeAborted.
func (p *Poller) Run(ctx context.Context, sess *scan.Session, binding Binding) Decision {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	// A no-binding class needs no scanning at all.
	if d := Decide(nil, binding, 0, p.Config); d.Outcome == OutcomeNoBinding {
		return d
	}

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Decision{Outcome: OutcomeAborted}
		case <-ticker.C:
		}

		state := sess.State()
		d := Decide(sess.Devices(), binding, time.Since(start), p.Config)
		if d.Outcome.Terminal() {
			return d
		}

		switch state {
		case scan.StateScanning:
			// keep polling
		case scan.StateCancelled:
			return Decision{Outcome: OutcomeAborted}
		default:
			// Session ended with nothing matching; nothing more will
			// arrive, so pending collapses to timeout.
			return Decision{Outcome: OutcomeTimeout}
		}
	}
}
