package auth

import (
	"context"
	"testing"
	"time"
)

var issuerTestNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestIssuer(secret string, ttl time.Duration, now time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(secret),
		Issuer:        "inkstone-auth",
		Audience:      "inkstone-api",
		TokenTTL:      ttl,
		Clock:         func() time.Time { return now },
	})
}

func TestIssueBackendTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer("unit-secret", 15*time.Minute, issuerTestNow)

	token, expiresIn, err := issuer.IssueBackendToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("expected 900s expiry, got %d", expiresIn)
	}

	subject, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("expected subject user-123, got %q", subject)
	}
}

func TestIssueBackendTokenRequiresSubject(t *testing.T) {
	issuer := newTestIssuer("unit-secret", time.Minute, issuerTestNow)
	if _, _, err := issuer.IssueBackendToken(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer("unit-secret", time.Minute, issuerTestNow)
	token, _, err := issuer.IssueBackendToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := newTestIssuer("different-secret", time.Minute, issuerTestNow)
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected signature validation failure")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer("unit-secret", time.Minute, issuerTestNow)
	token, _, err := issuer.IssueBackendToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := newTestIssuer("unit-secret", time.Minute, issuerTestNow.Add(2*time.Minute))
	if _, err := later.ValidateToken(token); err == nil {
		t.Fatalf("expected expiry validation failure")
	}
}

func TestValidateTokenRejectsWrongAudience(t *testing.T) {
	issuer := newTestIssuer("unit-secret", time.Minute, issuerTestNow)
	token, _, err := issuer.IssueBackendToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("unit-secret"),
		Issuer:        "inkstone-auth",
		Audience:      "some-other-api",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issuerTestNow },
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected audience validation failure")
	}
}
