package auth

import (
	"testing"
	"time"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/errkind"
)

func TestNewIssuerRejectsEmptySecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); errkind.KindOf(err) != errkind.Contract {
		t.Fatalf("expected a contract error for an empty signing secret, got %v", err)
	}
}

func TestMintThenVerifyRoundTrips(t *testing.T) {
	issuer, err := NewIssuer("super-secret-signing-key", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := issuer.Mint("user-1", "admin")
	if err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error verifying: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "admin" {
		t.Fatalf("expected claims to round-trip subject and role, got %+v", claims)
	}
}

func TestVerifyRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	a, err := NewIssuer("secret-a", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewIssuer("secret-b", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := a.Mint("user-1", "admin")
	if err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}
	if _, err := b.Verify(token); errkind.KindOf(err) != errkind.Contract {
		t.Fatalf("expected a contract error verifying against a mismatched secret, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewIssuer("super-secret-signing-key", time.Nanosecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := issuer.Mint("user-1", "admin")
	if err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := issuer.Verify(token); errkind.KindOf(err) != errkind.Contract {
		t.Fatalf("expected a contract error verifying an expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	issuer, err := NewIssuer("super-secret-signing-key", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.Verify("not-a-jwt"); errkind.KindOf(err) != errkind.Contract {
		t.Fatalf("expected a contract error verifying a malformed token, got %v", err)
	}
}
