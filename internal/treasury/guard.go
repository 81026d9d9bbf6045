// Package treasury holds the platform signing identity and the guard that
// refuses to move funds when configuration and key material disagree.
package treasury

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/neopad/engine/internal/faults"
)

// Guard pins the published treasury identity to the held signing key.
type Guard struct {
	priv       *keys.PrivateKey
	configured string
	derived    string
}

// NewGuard derives the public identity from the hex-encoded signing key.
// The key itself never leaves this package.
func NewGuard(signingKeyHex, configuredAddress string) (*Guard, error) {
	if configuredAddress == "" {
		return nil, fmt.Errorf("configured treasury address required")
	}

	priv, err := keys.NewPrivateKeyFromHex(signingKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse treasury signing key: %w", err)
	}

	return &Guard{
		priv:       priv,
		configured: configuredAddress,
		derived:    priv.PublicKey().Address(),
	}, nil
}

// Check compares the derived identity with the published one byte-for-byte.
// A mismatch is fatal configuration drift and must abort before any
// fund-moving call. Cheap, so executed per request and never cached.
func (g *Guard) Check() error {
	if g.derived != g.configured {
		return faults.Errorf(faults.ConfigurationDrift, "treasury.Check",
			"derived treasury identity %s does not match configured identity %s",
			g.derived, g.configured)
	}
	return nil
}

// Address returns the derived treasury address.
func (g *Guard) Address() string { return g.derived }

// PrivateKey exposes the signing key to the transaction assembler.
func (g *Guard) PrivateKey() *keys.PrivateKey { return g.priv }
