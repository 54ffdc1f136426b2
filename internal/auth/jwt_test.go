package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("stu-1", "student", "classattend", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "classattend")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "stu-1" || claims.Role != "student" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := Parse(pair.RefreshToken, "secret", "classattend"); err != nil {
		t.Fatalf("refresh token should parse with the same key: %v", err)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("stu-1", "student", "classattend", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", "classattend"); err == nil {
		t.Fatalf("wrong key must be rejected")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, err := Issue("stu-1", "student", "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "classattend"); err == nil {
		t.Fatalf("issuer mismatch must be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("stu-1", "student", "classattend", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "classattend"); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}
