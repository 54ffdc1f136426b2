package schedule

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Spec describes a class's weekly meeting pattern: weekday name mapped to
// ordered "HH:MM-HH:MM" ranges, plus the class's own IANA timezone and the
// calendar dates between which the schedule is valid.
type Spec struct {
	Days      map[string][]string `json:"days"`
	Timezone  string              `json:"timezone"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
}

// Slot is a parsed time range within a single day. Start and End are minutes
// from midnight in the spec's timezone.
type Slot struct {
	Raw   string
	Start int
	End   int
}

// Normalize capitalizes weekday keys ("monday" -> "Monday") so lookups work
// regardless of how the schedule was entered.
func (s Spec) Normalize() Spec {
	out := Spec{
		Days:      make(map[string][]string, len(s.Days)),
		Timezone:  s.Timezone,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
	}
	for day, slots := range s.Days {
		out.Days[capitalize(day)] = slots
	}
	return out
}

// Location resolves the spec's timezone, falling back to UTC when the
// identifier is missing or unknown.
func (s Spec) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TodaySlots returns the parsed slots for at's weekday in the spec timezone,
// preserving list order. Malformed ranges are skipped.
func TodaySlots(spec Spec, at time.Time) []Slot {
	spec = spec.Normalize()
	local := at.In(spec.Location())
	raw := spec.Days[local.Weekday().String()]

	var slots []Slot
	for _, r := range raw {
		slot, ok := parseSlot(r)
		if !ok {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

// InSession reports whether at falls within any of today's slots. Both the
// slot start and end minute count as in session. The schedule's start/end
// dates bound validity: outside them nothing is in session.
func InSession(spec Spec, at time.Time) bool {
	if !withinTerm(spec, at) {
		return false
	}
	local := at.In(spec.Location())
	minute := local.Hour()*60 + local.Minute()
	for _, slot := range TodaySlots(spec, at) {
		if minute >= slot.Start && minute <= slot.End {
			return true
		}
	}
	return false
}

// NextSessionStart returns the first of today's slots whose start is strictly
// after at, in list order. There is no cross-day lookahead; ok is false when
// no further slot starts today.
func NextSessionStart(spec Spec, at time.Time) (Slot, bool) {
	if !withinTerm(spec, at) {
		return Slot{}, false
	}
	local := at.In(spec.Location())
	minute := local.Hour()*60 + local.Minute()
	for _, slot := range TodaySlots(spec, at) {
		if slot.Start > minute {
			return slot, true
		}
	}
	return Slot{}, false
}

func withinTerm(spec Spec, at time.Time) bool {
	loc := spec.Location()
	day := at.In(loc).Format(dateLayout)
	if spec.StartDate != "" {
		if _, err := time.Parse(dateLayout, spec.StartDate); err == nil && day < spec.StartDate {
			return false
		}
	}
	if spec.EndDate != "" {
		if _, err := time.Parse(dateLayout, spec.EndDate); err == nil && day > spec.EndDate {
			return false
		}
	}
	return true
}

// parseSlot parses "HH:MM-HH:MM". Ranges with start >= end are rejected.
func parseSlot(raw string) (Slot, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return Slot{}, false
	}
	start, ok := parseClock(parts[0])
	if !ok {
		return Slot{}, false
	}
	end, ok := parseClock(parts[1])
	if !ok || start >= end {
		return Slot{}, false
	}
	return Slot{Raw: strings.TrimSpace(raw), Start: start, End: end}, true
}

func parseClock(raw string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
