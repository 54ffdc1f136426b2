package schedule

import (
	"testing"
	"time"
)

func mondaySpec(slots ...string) Spec {
	return Spec{
		Days:     map[string][]string{"Monday": slots},
		Timezone: "UTC",
	}
}

// 2025-04-07 is a Monday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2025, 4, 7, hour, minute, 0, 0, time.UTC)
}

func TestInSessionInclusiveBounds(t *testing.T) {
	spec := mondaySpec("08:30-09:30")

	cases := []struct {
		at   time.Time
		want bool
	}{
		{mondayAt(8, 29), false},
		{mondayAt(8, 30), true},
		{mondayAt(9, 0), true},
		{mondayAt(9, 30), true},
		{mondayAt(9, 31), false},
		{mondayAt(8, 0), false},
	}
	for _, c := range cases {
		if got := InSession(spec, c.at); got != c.want {
			t.Fatalf("InSession at %s: got %v, want %v", c.at.Format("15:04"), got, c.want)
		}
	}

	// Tuesday has no slots at all.
	if InSession(spec, mondayAt(9, 0).AddDate(0, 0, 1)) {
		t.Fatalf("expected no session on a day with no slots")
	}
}

func TestNextSessionStart(t *testing.T) {
	spec := mondaySpec("08:30-09:30")

	next, ok := NextSessionStart(spec, mondayAt(8, 0))
	if !ok || next.Raw != "08:30-09:30" {
		t.Fatalf("expected 08:30-09:30 upcoming, got %v ok=%v", next.Raw, ok)
	}

	// Already inside the only slot: nothing further starts today.
	if _, ok := NextSessionStart(spec, mondayAt(9, 0)); ok {
		t.Fatalf("expected no next session while inside the only slot")
	}

	// Multiple slots keep list order; first future start wins.
	multi := mondaySpec("08:30-09:30", "13:00-14:00", "15:00-16:00")
	next, ok = NextSessionStart(multi, mondayAt(10, 0))
	if !ok || next.Raw != "13:00-14:00" {
		t.Fatalf("expected 13:00-14:00, got %v ok=%v", next.Raw, ok)
	}
}

func TestMalformedSlotsSkipped(t *testing.T) {
	spec := mondaySpec("garbage", "25:99-26:00", "09:30-08:30", "10:00-11:00")

	slots := TodaySlots(spec, mondayAt(10, 30))
	if len(slots) != 1 || slots[0].Raw != "10:00-11:00" {
		t.Fatalf("expected only the valid slot to survive, got %v", slots)
	}
	if !InSession(spec, mondayAt(10, 30)) {
		t.Fatalf("valid slot should still match")
	}
}

func TestWeekdayKeysNormalized(t *testing.T) {
	spec := Spec{
		Days:     map[string][]string{"monday": {"08:30-09:30"}},
		Timezone: "UTC",
	}
	if !InSession(spec, mondayAt(9, 0)) {
		t.Fatalf("lowercase weekday key should normalize to Monday")
	}
}

func TestTimezoneShiftsWeekday(t *testing.T) {
	// Monday 23:30 UTC is already Tuesday 08:30 in Tokyo.
	spec := Spec{
		Days:     map[string][]string{"Tuesday": {"08:00-09:00"}},
		Timezone: "Asia/Tokyo",
	}
	at := time.Date(2025, 4, 7, 23, 30, 0, 0, time.UTC)
	if !InSession(spec, at) {
		t.Fatalf("expected Tokyo Tuesday slot to match")
	}
}

func TestTermBounds(t *testing.T) {
	spec := mondaySpec("08:30-09:30")
	spec.StartDate = "2025-04-01"
	spec.EndDate = "2025-04-30"

	if !InSession(spec, mondayAt(9, 0)) {
		t.Fatalf("inside term should be in session")
	}

	spec.EndDate = "2025-04-01"
	if InSession(spec, mondayAt(9, 0)) {
		t.Fatalf("past the end date nothing is in session")
	}
	if _, ok := NextSessionStart(spec, mondayAt(8, 0)); ok {
		t.Fatalf("past the end date there is no next session")
	}
}
