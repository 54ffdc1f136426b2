package match

import (
	"context"
	"testing"
	"time"

	"classattend/internal/scan"
)

func TestDecideMatched(t *testing.T) {
	devices := []scan.Advertisement{
		{ID: "other", Name: "X", RSSI: -40},
		{ID: "ABC123", Name: "LIB317", RSSI: -77},
	}
	d := Decide(devices, Binding{BeaconID: "ABC123"}, time.Second, Config{MaxWait: 30 * time.Second})
	if d.Outcome != OutcomeMatched || d.BeaconID != "ABC123" || d.RSSI != -77 {
		t.Fatalf("expected match on ABC123, got %+v", d)
	}
}

func TestDecidePendingThenTimeout(t *testing.T) {
	devices := []scan.Advertisement{{ID: "other", Name: "X", RSSI: -40}}
	cfg := Config{MaxWait: 30 * time.Second}

	if d := Decide(devices, Binding{BeaconID: "ABC123"}, 5*time.Second, cfg); d.Outcome != OutcomePending {
		t.Fatalf("expected pending before max wait, got %v", d.Outcome)
	}
	if d := Decide(devices, Binding{BeaconID: "ABC123"}, 30*time.Second, cfg); d.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout at max wait, got %v", d.Outcome)
	}
}

func TestDecideNoBinding(t *testing.T) {
	devices := []scan.Advertisement{{ID: "anything", Name: "X", RSSI: -40}}
	d := Decide(devices, Binding{}, 0, Config{})
	if d.Outcome != OutcomeNoBinding {
		t.Fatalf("beacon-less class must not auto-match, got %v", d.Outcome)
	}
}

func TestDecideWeakSignalStillCounts(t *testing.T) {
	// No implicit proximity threshold: a far, weak sighting matches.
	devices := []scan.Advertisement{{ID: "ABC123", Name: "LIB317", RSSI: -99}}
	if d := Decide(devices, Binding{BeaconID: "ABC123"}, 0, Config{}); d.Outcome != OutcomeMatched {
		t.Fatalf("weak signal should still match by default, got %v", d.Outcome)
	}

	// Unless a floor is configured.
	cfg := Config{MinRSSI: -80}
	if d := Decide(devices, Binding{BeaconID: "ABC123"}, 0, cfg); d.Outcome == OutcomeMatched {
		t.Fatalf("sighting below the configured floor must not match")
	}
}

func TestPollerMatches(t *testing.T) {
	replay := scan.NewReplayRadio([]scan.ScriptedAd{
		{After: 10 * time.Millisecond, Ad: scan.Advertisement{ID: "ABC123", Name: "LIB317", RSSI: -58}},
	}, true)
	sess := scan.NewSession(replay, scan.Options{})
	if err := sess.Start(context.Background(), time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	p := Poller{Interval: 5 * time.Millisecond, Config: Config{MaxWait: time.Second}}
	d := p.Run(context.Background(), sess, Binding{BeaconID: "ABC123"})
	if d.Outcome != OutcomeMatched || d.BeaconID != "ABC123" {
		t.Fatalf("expected match, got %+v", d)
	}
}

func TestPollerTimesOutWithoutMatch(t *testing.T) {
	replay := scan.NewReplayRadio([]scan.ScriptedAd{
		{After: 0, Ad: scan.Advertisement{ID: "unrelated", Name: "X", RSSI: -50}},
	}, true)
	sess := scan.NewSession(replay, scan.Options{})
	if err := sess.Start(context.Background(), time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Cancel()

	p := Poller{Interval: 5 * time.Millisecond, Config: Config{MaxWait: 40 * time.Millisecond}}
	d := p.Run(context.Background(), sess, Binding{BeaconID: "ABC123"})
	if d.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %v", d.Outcome)
	}
}

func TestPollerStopsWhenSessionEnds(t *testing.T) {
	// Session window closes long before the matcher's own max wait; the
	// poller must not keep running against a dead session.
	replay := scan.NewReplayRadio(nil, true)
	sess := scan.NewSession(replay, scan.Options{})
	if err := sess.Start(context.Background(), 15*time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}

	p := Poller{Interval: 5 * time.Millisecond, Config: Config{MaxWait: time.Hour}}
	done := make(chan Decision, 1)
	go func() { done <- p.Run(context.Background(), sess, Binding{BeaconID: "ABC123"}) }()

	select {
	case d := <-done:
		if d.Outcome != OutcomeTimeout {
			t.Fatalf("expected timeout after session end, got %v", d.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller leaked past session end")
	}
}

func TestPollerAbortsOnSessionCancel(t *testing.T) {
	replay := scan.NewReplayRadio(nil, true)
	sess := scan.NewSession(replay, scan.Options{})
	if err := sess.Start(context.Background(), time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}

	p := Poller{Interval: 5 * time.Millisecond, Config: Config{MaxWait: time.Hour}}
	done := make(chan Decision, 1)
	go func() { done <- p.Run(context.Background(), sess, Binding{BeaconID: "ABC123"}) }()

	time.Sleep(15 * time.Millisecond)
	sess.Cancel()

	select {
	case d := <-done:
		if d.Outcome != OutcomeAborted {
			t.Fatalf("expected aborted after cancel, got %v", d.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller kept polling a cancelled session")
	}
}

func TestPollerNoBindingShortCircuits(t *testing.T) {
	replay := scan.NewReplayRadio(nil, true)
	sess := scan.NewSession(replay, scan.Options{})

	p := Poller{Interval: time.Hour}
	d := p.Run(context.Background(), sess, Binding{})
	if d.Outcome != OutcomeNoBinding {
		t.Fatalf("expected no-binding without any polling, got %v", d.Outcome)
	}
}
