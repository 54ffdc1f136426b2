package scan

import (
	"context"
	"sync"
	"time"
)

// ScriptedAd is one advertisement emitted by a ReplayRadio after a delay
// relative to scan start.
type ScriptedAd struct {
	After time.Duration
	Ad    Advertisement
}

// ReplayRadio plays a fixed script of advertisements. It stands in for the
// platform Bluetooth stack in tests and in the demo agent, the same way the
// mobile client ships a mock manager with canned devices.
type ReplayRadio struct {
	script    []ScriptedAd
	available bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewReplayRadio builds a radio that emits script in order. available=false
// simulates a powered-off adapter.
func NewReplayRadio(script []ScriptedAd, available bool) *ReplayRadio {
	return &ReplayRadio{script: script, available: available}
}

// Start begins playback. Each scripted advertisement is delivered once its
// delay elapses; playback ends when the script is exhausted, Stop is called,
// or ctx is cancelled. The channel is closed either way.
func (r *ReplayRadio) Start(ctx context.Context) (<-chan Advertisement, error) {
	if !r.available {
		return nil, ErrRadioUnavailable
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	out := make(chan Advertisement)
	go func() {
		defer close(out)
		start := time.Now()
		for _, item := range r.script {
			wait := item.After - time.Since(start)
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-runCtx.Done():
					return
				}
			}
			ad := item.Ad
			if ad.SeenAt.IsZero() {
				ad.SeenAt = time.Now()
			}
			select {
			case out <- ad:
			case <-runCtx.Done():
				return
			}
		}
		<-runCtx.Done()
	}()
	return out, nil
}

// Stop halts playback and closes the advertisement channel.
func (r *ReplayRadio) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}
