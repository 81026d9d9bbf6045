package txassembly

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// StepKind identifies one instruction in a transfer envelope.
type StepKind string

const (
	// StepPriorityHint asks the ledger to prioritize inclusion.
	StepPriorityHint StepKind = "priority_hint"
	// StepEnsureAccount idempotently materializes a holding account so a
	// later step can credit it.
	StepEnsureAccount StepKind = "ensure_account"
	// StepTransfer moves base currency.
	StepTransfer StepKind = "transfer"
	// StepFeeTransfer moves a fee disbursement in base currency.
	StepFeeTransfer StepKind = "fee_transfer"
	// StepIssue mints issuable-asset units to an account.
	StepIssue StepKind = "issue"
	// StepAssetTransfer moves issuable-asset units between accounts.
	StepAssetTransfer StepKind = "asset_transfer"
	// StepMemo carries an opaque correlation tag.
	StepMemo StepKind = "memo"
)

// Step is one ordered instruction. Later steps may depend on accounts
// created by earlier ones, so order is never rewritten after Build.
type Step struct {
	Kind   StepKind `json:"kind"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
	Token  string   `json:"token,omitempty"` // empty for base currency
	Amount int64    `json:"amount,omitempty"`
	Data   []byte   `json:"data,omitempty"`
}

// Role is the authorization role of a signer slot.
type Role string

const (
	// RoleFeePayer is the single slot the end user must complete.
	RoleFeePayer Role = "fee_payer"
	// RoleAuthority is a platform-held slot, pre-authorized at build time.
	RoleAuthority Role = "authority"
)

// SignerSlot is one required authorization. PublicKey and Signature are
// empty until the slot is signed.
type SignerSlot struct {
	Account   string `json:"account"`
	Role      Role   `json:"role"`
	PublicKey string `json:"public_key,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Signed reports whether the slot carries an authorization.
func (s SignerSlot) Signed() bool { return s.Signature != "" }

// Envelope is an ordered, partially-authorized multi-step value-transfer
// unit. The ledger executes it atomically or not at all.
type Envelope struct {
	Network        uint32       `json:"network"`
	Nonce          string       `json:"nonce"`
	ValidUntil     uint64       `json:"valid_until,omitempty"`
	CorrelationTag string       `json:"correlation_tag,omitempty"`
	Steps          []Step       `json:"steps"`
	Signers        []SignerSlot `json:"signers"`
}

// Digest is the signing payload: network magic, nonce, validity bound, and
// the canonical encoding of the step list. Signer slots are excluded so
// signatures do not invalidate each other.
func (e *Envelope) Digest() ([]byte, error) {
	steps, err := json.Marshal(e.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}

	h := sha256.New()
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[:4], e.Network)
	binary.LittleEndian.PutUint64(hdr[4:], e.ValidUntil)
	h.Write(hdr[:])
	h.Write([]byte(e.Nonce))
	h.Write(steps)
	return h.Sum(nil), nil
}

// FeePayer returns the single user-authorized slot.
func (e *Envelope) FeePayer() (SignerSlot, bool) {
	for _, s := range e.Signers {
		if s.Role == RoleFeePayer {
			return s, true
		}
	}
	return SignerSlot{}, false
}

// Serialize encodes the envelope for deferred completion and submission.
func (e *Envelope) Serialize() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Parse decodes a serialized envelope artifact.
func Parse(artifact string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(artifact)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &e, nil
}
