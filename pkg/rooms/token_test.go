package rooms

import (
	"strings"
	"testing"
	"time"
)

func TestTokenMintValidateRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("devkey", "devsecret")

	tok, expiresAt, err := issuer.Mint("lobby", "alice", map[string]any{"role": "guest"})
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if tok == "" {
		t.Fatalf("Mint() returned empty token")
	}
	if until := time.Until(expiresAt); until < 23*time.Hour || until > 25*time.Hour {
		t.Fatalf("expiry %v not ~24h out", expiresAt)
	}

	if !issuer.Validate(tok) {
		t.Fatalf("Validate() = false for freshly minted token")
	}

	identity, err := issuer.ParseIdentity(tok)
	if err != nil {
		t.Fatalf("ParseIdentity() error = %v", err)
	}
	if identity != "alice" {
		t.Fatalf("ParseIdentity() = %q, want %q", identity, "alice")
	}
}

func TestTokenValidateRejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("devkey", "devsecret")

	tok, _, err := issuer.Mint("lobby", "alice", nil)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if issuer.Validate(tampered) {
		t.Fatalf("Validate() = true for tampered token")
	}
}

func TestTokenValidateRejectsWrongSecret(t *testing.T) {
	tok, _, err := NewTokenIssuer("devkey", "devsecret").Mint("lobby", "alice", nil)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if NewTokenIssuer("devkey", "othersecret").Validate(tok) {
		t.Fatalf("Validate() = true with wrong secret")
	}
}
