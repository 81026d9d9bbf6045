package treasury

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/neopad/engine/internal/faults"
)

func newKeyHex(t *testing.T) (string, string) {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return hex.EncodeToString(priv.Bytes()), priv.PublicKey().Address()
}

func TestGuardAcceptsMatchingIdentity(t *testing.T) {
	keyHex, addr := newKeyHex(t)

	g, err := NewGuard(keyHex, addr)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if g.Address() != addr {
		t.Fatalf("address = %s, want %s", g.Address(), addr)
	}
}

func TestGuardRejectsMismatch(t *testing.T) {
	keyHex, _ := newKeyHex(t)
	_, otherAddr := newKeyHex(t)

	g, err := NewGuard(keyHex, otherAddr)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	err = g.Check()
	if !faults.Is(err, faults.ConfigurationDrift) {
		t.Fatalf("want ConfigurationDrift, got %v", err)
	}
	// The diagnostic names both public identities and never the key.
	msg := err.Error()
	if !strings.Contains(msg, otherAddr) || !strings.Contains(msg, g.Address()) {
		t.Fatalf("diagnostic should name both identities: %s", msg)
	}
	if strings.Contains(msg, keyHex) {
		t.Fatal("diagnostic must not contain key material")
	}
}

func TestGuardRejectsBadKey(t *testing.T) {
	if _, err := NewGuard("not-hex", "NAddr"); err == nil {
		t.Fatal("expected error for malformed key")
	}
	if _, err := NewGuard("", "NAddr"); err == nil {
		t.Fatal("expected error for empty key")
	}
	keyHex, _ := newKeyHex(t)
	if _, err := NewGuard(keyHex, ""); err == nil {
		t.Fatal("expected error for empty configured address")
	}
}
