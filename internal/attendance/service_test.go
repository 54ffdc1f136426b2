package attendance

import (
	"errors"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"present", "present", nil},
		{"absent", "absent", nil},
		{"Present", "", ErrInvalidStatus},
		{"late", "", ErrInvalidStatus},
		{"", "", ErrInvalidStatus},
	}
	for _, c := range cases {
		got, err := NormalizeStatus(c.in)
		if got != c.want || !errors.Is(err, c.err) {
			t.Fatalf("NormalizeStatus(%q) = %q, %v; want %q, %v", c.in, got, err, c.want, c.err)
		}
	}
}

func TestValidDate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"2025-04-07", true},
		{"2025-13-01", false},
		{"2025-02-30", false},
		{"07-04-2025", false},
		{"2025-4-7", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidDate(c.in); got != c.want {
			t.Fatalf("ValidDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestResolveDate(t *testing.T) {
	class := &Class{ID: "cls-1"}

	if _, err := resolveDate(class, "not-a-date"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	got, err := resolveDate(class, "2025-04-07")
	if err != nil || got != "2025-04-07" {
		t.Fatalf("explicit date should pass through, got %q, %v", got, err)
	}

	// Empty date resolves to today in the class timezone; shape check only.
	today, err := resolveDate(class, "")
	if err != nil {
		t.Fatalf("resolve today: %v", err)
	}
	if !ValidDate(today) {
		t.Fatalf("resolved date %q is not yyyy-MM-dd", today)
	}
}
