package scan

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the lifecycle of a scan session.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateStopped
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrAlreadyScanning is returned by Start when the session is not in a
// startable state. Callers must Stop before restarting.
var ErrAlreadyScanning = errors.New("scan already in progress")

// DefaultDuration is the standard discovery window. The quick variant used
// by the rescan flow is 10s.
const (
	DefaultDuration = 30 * time.Second
	QuickDuration   = 10 * time.Second
)

// Options tune a session's policies.
type Options struct {
	// RequireName drops advertisements with an empty name. Some check-in
	// flows only trust named devices; the default accepts everything.
	RequireName bool
}

// Session manages one bounded BLE discovery window. Advertisements are
// deduplicated by identifier: iteration keeps first-seen order, repeated
// sightings overwrite the signal strength. All methods are safe for
// concurrent use and none of the observers block.
type Session struct {
	radio Radio
	opts  Options

	mu      sync.Mutex
	state   State
	gen     int
	cancel  context.CancelFunc
	order   []string
	devices map[string]Advertisement
}

// NewSession wraps a radio. The session starts Idle with no results.
func NewSession(radio Radio, opts Options) *Session {
	return &Session{
		radio:   radio,
		opts:    opts,
		state:   StateIdle,
		devices: make(map[string]Advertisement),
	}
}

// Start opens a discovery window that closes itself after duration. Previous
// results are cleared. Radio failures surface as ErrRadioUnavailable and
// leave the session in its prior state.
func (s *Session) Start(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultDuration
	}

	s.mu.Lock()
	switch s.state {
	case StateIdle, StateStopped, StateTimedOut:
	default:
		s.mu.Unlock()
		return ErrAlreadyScanning
	}
	s.mu.Unlock()

	ads, err := s.radio.Start(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.state = StateScanning
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.order = nil
	s.devices = make(map[string]Advertisement)
	s.mu.Unlock()

	go s.consume(runCtx, ads, gen, duration)
	return nil
}

func (s *Session) consume(ctx context.Context, ads <-chan Advertisement, gen int, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	for {
		select {
		case ad, ok := <-ads:
			if !ok {
				s.finish(gen, StateStopped)
				return
			}
			s.observe(gen, ad)
		case <-timer.C:
			if s.finish(gen, StateTimedOut) {
				s.radio.Stop()
			}
			return
		case <-ctx.Done():
			// Stop or Cancel already set the terminal state.
			return
		}
	}
}

// observe upserts one advertisement. Events arriving after the session left
// Scanning, or from a previous window, are dropped.
func (s *Session) observe(gen int, ad Advertisement) {
	if s.opts.RequireName && ad.Name == "" {
		return
	}
	if ad.SeenAt.IsZero() {
		ad.SeenAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScanning || s.gen != gen {
		return
	}
	if _, seen := s.devices[ad.ID]; !seen {
		s.order = append(s.order, ad.ID)
	}
	s.devices[ad.ID] = ad
}

// finish moves the session to a terminal state if the window is still the
// current one. Reports whether the transition happened.
func (s *Session) finish(gen int, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScanning || s.gen != gen {
		return false
	}
	s.state = to
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// Stop ends the window early. Idempotent: stopping a session that is not
// scanning is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.radio.Stop()
}

// Cancel abandons the session from any state, including mid-scan teardown
// from a UI dismissal. Safe to call repeatedly; no advertisements are
// accepted afterwards.
func (s *Session) Cancel() {
	s.mu.Lock()
	wasScanning := s.state == StateScanning
	s.state = StateCancelled
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if wasScanning {
		s.radio.Stop()
	}
}

// State returns the current lifecycle state without blocking.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Devices returns a snapshot of the discovered set in first-seen order.
func (s *Session) Devices() []Advertisement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Advertisement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.devices[id])
	}
	return out
}
