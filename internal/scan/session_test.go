package scan

import (
	"context"
	"testing"
	"time"
)

type stubRadio struct {
	ch          chan Advertisement
	unavailable bool
}

func newStubRadio() *stubRadio {
	return &stubRadio{ch: make(chan Advertisement, 32)}
}

func (r *stubRadio) Start(ctx context.Context) (<-chan Advertisement, error) {
	if r.unavailable {
		return nil, ErrRadioUnavailable
	}
	return r.ch, nil
}

func (r *stubRadio) Stop() {}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never met")
}

func TestStartFailsWhenRadioUnavailable(t *testing.T) {
	radio := newStubRadio()
	radio.unavailable = true
	sess := NewSession(radio, Options{})

	if err := sess.Start(context.Background(), time.Second); err != ErrRadioUnavailable {
		t.Fatalf("expected ErrRadioUnavailable, got %v", err)
	}
	if sess.State() != StateIdle {
		t.Fatalf("failed start should leave session idle, got %v", sess.State())
	}
}

func TestDedupByIdentifier(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	radio.ch <- Advertisement{ID: "beacon-a", Name: "A", RSSI: -70}
	radio.ch <- Advertisement{ID: "beacon-b", Name: "B", RSSI: -60}
	radio.ch <- Advertisement{ID: "beacon-a", Name: "A", RSSI: -45}

	waitFor(t, func() bool {
		devices := sess.Devices()
		return len(devices) == 2 && devices[0].RSSI == -45
	})

	devices := sess.Devices()
	if devices[0].ID != "beacon-a" || devices[1].ID != "beacon-b" {
		t.Fatalf("expected first-seen order [beacon-a beacon-b], got %v", devices)
	}
}

func TestRequireNameFiltersUnnamed(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{RequireName: true})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	radio.ch <- Advertisement{ID: "anon", RSSI: -50}
	radio.ch <- Advertisement{ID: "named", Name: "LIB317", RSSI: -55}

	waitFor(t, func() bool { return len(sess.Devices()) == 1 })
	if sess.Devices()[0].ID != "named" {
		t.Fatalf("unnamed device should have been dropped")
	}
}

func TestStartWhileScanningRejected(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	if err := sess.Start(context.Background(), time.Minute); err != ErrAlreadyScanning {
		t.Fatalf("expected ErrAlreadyScanning, got %v", err)
	}
}

func TestStopIsIdempotentAndRestartClearsResults(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}

	radio.ch <- Advertisement{ID: "beacon-a", Name: "A", RSSI: -70}
	waitFor(t, func() bool { return len(sess.Devices()) == 1 })

	sess.Stop()
	sess.Stop()
	if sess.State() != StateStopped {
		t.Fatalf("expected stopped, got %v", sess.State())
	}

	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	defer sess.Cancel()
	if len(sess.Devices()) != 0 {
		t.Fatalf("restart must clear previous results")
	}
}

func TestCancelFromAnyStateAndNoEventsAfter(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{})

	// Idle session can be cancelled.
	sess.Cancel()
	if sess.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %v", sess.State())
	}
	if err := sess.Start(context.Background(), time.Minute); err != ErrAlreadyScanning {
		t.Fatalf("cancelled session must not restart, got %v", err)
	}

	radio2 := newStubRadio()
	sess2 := NewSession(radio2, Options{})
	if err := sess2.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	radio2.ch <- Advertisement{ID: "before", Name: "X", RSSI: -50}
	waitFor(t, func() bool { return len(sess2.Devices()) == 1 })

	sess2.Cancel()
	sess2.Cancel()
	if sess2.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %v", sess2.State())
	}

	// Anything arriving after cancellation is dropped.
	radio2.ch <- Advertisement{ID: "after", Name: "Y", RSSI: -50}
	time.Sleep(20 * time.Millisecond)
	if len(sess2.Devices()) != 1 {
		t.Fatalf("no events may be accepted after cancel")
	}
}

func TestAutoStopTimesOut(t *testing.T) {
	radio := newStubRadio()
	sess := NewSession(radio, Options{})
	if err := sess.Start(context.Background(), 15*time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool { return sess.State() == StateTimedOut })

	// A timed-out session may be restarted for a rescan.
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("restart after timeout: %v", err)
	}
	sess.Cancel()
}

func TestReplayRadioScript(t *testing.T) {
	radio := NewReplayRadio([]ScriptedAd{
		{After: 0, Ad: Advertisement{ID: "beacon-a", Name: "A", RSSI: -52}},
		{After: 5 * time.Millisecond, Ad: Advertisement{ID: "beacon-b", Name: "B", RSSI: -61}},
	}, true)
	sess := NewSession(radio, Options{})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	waitFor(t, func() bool { return len(sess.Devices()) == 2 })
}
