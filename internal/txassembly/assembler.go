// Package txassembly composes ordered, partially-authorized value-transfer
// envelopes. It never submits them; completion and submission are the
// caller's concern.
package txassembly

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"

	"github.com/neopad/engine/internal/faults"
)

// Assembler builds envelopes for one network.
type Assembler struct {
	network uint32
}

// New creates an assembler bound to a network magic.
func New(network uint32) *Assembler {
	return &Assembler{network: network}
}

// Request describes one envelope to assemble. Steps execute in the order
// given; the assembler validates but never reorders them.
type Request struct {
	Steps []Step
	// FeePayer is the account whose authorization the end user completes.
	// Exactly one fee-payer slot exists per envelope.
	FeePayer string
	// Authorities are platform-held keys whose slots are pre-authorized.
	Authorities []*keys.PrivateKey
	// CorrelationTag optionally links the envelope to an engine trade.
	CorrelationTag string
	// ValidUntil optionally bounds inclusion (ledger height).
	ValidUntil uint64
}

// Build validates the request, assembles the envelope, and pre-authorizes
// every platform slot. The fee-payer slot is left open for the user.
func (a *Assembler) Build(req Request) (*Envelope, error) {
	const op = "txassembly.Build"

	if len(req.Steps) == 0 {
		return nil, faults.Errorf(faults.Validation, op, "no steps")
	}
	if req.FeePayer == "" {
		return nil, faults.Errorf(faults.Validation, op, "fee payer required")
	}
	if _, err := address.StringToUint160(req.FeePayer); err != nil {
		return nil, faults.Errorf(faults.Validation, op, "invalid fee payer %q: %v", req.FeePayer, err)
	}

	for i, s := range req.Steps {
		if err := validateStep(s); err != nil {
			return nil, faults.E(faults.KindOf(err), op, fmt.Errorf("step %d (%s): %w", i, s.Kind, err))
		}
	}

	env := &Envelope{
		Network:        a.network,
		Nonce:          uuid.NewString(),
		ValidUntil:     req.ValidUntil,
		CorrelationTag: req.CorrelationTag,
		Steps:          append([]Step(nil), req.Steps...),
	}

	env.Signers = append(env.Signers, SignerSlot{Account: req.FeePayer, Role: RoleFeePayer})

	digest, err := env.Digest()
	if err != nil {
		return nil, faults.E(faults.Unknown, op, err)
	}

	for _, priv := range req.Authorities {
		pub := priv.PublicKey()
		env.Signers = append(env.Signers, SignerSlot{
			Account:   pub.Address(),
			Role:      RoleAuthority,
			PublicKey: hex.EncodeToString(pub.Bytes()),
			Signature: base64.StdEncoding.EncodeToString(priv.Sign(digest)),
		})
	}

	return env, nil
}

// validateStep enforces per-step invariants. An issuance or asset-transfer
// step without a resolved token descriptor is a not-ready condition: the
// dependent resource has not materialized, and nothing may be authorized
// against it.
func validateStep(s Step) error {
	switch s.Kind {
	case StepIssue, StepAssetTransfer:
		if s.Token == "" {
			return faults.Errorf(faults.NotReady, "", "issuance descriptor not resolved")
		}
		if s.Amount <= 0 {
			return faults.Errorf(faults.Validation, "", "amount must be positive, got %d", s.Amount)
		}
		if s.To == "" {
			return faults.Errorf(faults.Validation, "", "recipient required")
		}
	case StepTransfer, StepFeeTransfer:
		if s.Amount <= 0 {
			return faults.Errorf(faults.Validation, "", "amount must be positive, got %d", s.Amount)
		}
		if s.From == "" || s.To == "" {
			return faults.Errorf(faults.Validation, "", "transfer endpoints required")
		}
	case StepEnsureAccount:
		if s.To == "" {
			return faults.Errorf(faults.Validation, "", "account owner required")
		}
	case StepPriorityHint, StepMemo:
		// no payload constraints
	default:
		return faults.Errorf(faults.Validation, "", "unknown step kind %q", s.Kind)
	}
	return nil
}
