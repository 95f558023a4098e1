package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "abcdefghijklmnopqrstuvwxyz123456"

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer(testSecret, "kabomba-auth", time.Minute)

	raw, err := iss.Issue(42)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := iss.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Subject != "42" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expected iat and exp claims")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Minute {
		t.Fatalf("expected 1m lifetime, got %v", got)
	}
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	raw, err := NewIssuer(testSecret, "kabomba-auth", time.Minute).Issue(7)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewIssuer("zyxwvutsrqponmlkjihgfedcba654321", "kabomba-auth", time.Minute).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := NewIssuer(testSecret, "someone-else", time.Minute).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer(testSecret, "kabomba-auth", time.Minute)
	raw, err := iss.Issue(7)
	if err != nil {
		t.Fatal(err)
	}

	iss.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := iss.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestParseRejectsTampered(t *testing.T) {
	iss := NewIssuer(testSecret, "kabomba-auth", time.Minute)
	raw, err := iss.Issue(7)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(raw, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := iss.Parse(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered signature to fail")
	}
}

func FuzzParseRobustness(f *testing.F) {
	iss := NewIssuer(testSecret, "kabomba-auth", time.Minute)
	valid, _ := iss.Issue(42)

	f.Add(valid)
	f.Add("")
	f.Add("not-a-jwt")
	f.Add("header.payload.signature")
	f.Add(strings.Repeat("a", 8192))

	f.Fuzz(func(t *testing.T, raw string) {
		if len(raw) > 16384 {
			raw = raw[:16384]
		}
		claims, err := iss.Parse(raw)
		if err == nil && (claims == nil || claims.UserID <= 0) {
			t.Fatalf("accepted token without a user: %+v", claims)
		}
	})
}
