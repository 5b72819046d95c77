package mem

import (
	"testing"
	"time"
)

func TestResetTokensSingleUse(t *testing.T) {
	store := NewResetTokens()
	store.Set("tok", "juan@example.com", time.Minute)

	if got := store.Consume("tok"); got != "juan@example.com" {
		t.Fatalf("Consume = %q", got)
	}
	if got := store.Consume("tok"); got != "" {
		t.Fatalf("token reused: %q", got)
	}
}

func TestResetTokensExpire(t *testing.T) {
	store := NewResetTokens()
	store.Set("tok", "juan@example.com", -time.Second)
	if got := store.Consume("tok"); got != "" {
		t.Fatalf("expired token accepted: %q", got)
	}
}
