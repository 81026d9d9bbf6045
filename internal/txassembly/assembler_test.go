package txassembly

import (
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/neopad/engine/internal/faults"
)

func newKey(t *testing.T) *keys.PrivateKey {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func buySteps(payer, treasury, creator, token string) []Step {
	return []Step{
		{Kind: StepEnsureAccount, To: payer, Token: token},
		{Kind: StepTransfer, From: payer, To: treasury, Amount: 100_000_000},
		{Kind: StepFeeTransfer, From: payer, To: creator, Amount: 120},
		{Kind: StepFeeTransfer, From: payer, To: treasury, Amount: 180},
		{Kind: StepIssue, To: payer, Token: token, Amount: 1_000_000},
	}
}

func TestBuildPartiallyAuthorized(t *testing.T) {
	authority := newKey(t)
	user := newKey(t)
	payer := user.PublicKey().Address()
	treasury := authority.PublicKey().Address()

	a := New(42)
	env, err := a.Build(Request{
		Steps:       buySteps(payer, treasury, treasury, "0xtoken"),
		FeePayer:    payer,
		Authorities: []*keys.PrivateKey{authority},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	fp, ok := env.FeePayer()
	if !ok {
		t.Fatal("fee payer slot missing")
	}
	if fp.Signed() {
		t.Fatal("fee payer slot must be left for the user")
	}
	if fp.Account != payer {
		t.Fatalf("fee payer = %s, want %s", fp.Account, payer)
	}

	signed := 0
	for _, s := range env.Signers {
		if s.Role == RoleAuthority {
			if !s.Signed() {
				t.Fatalf("authority slot %s unsigned", s.Account)
			}
			signed++
		}
	}
	if signed != 1 {
		t.Fatalf("authority slots signed = %d, want 1", signed)
	}
}

func TestBuildExactlyOneFeePayer(t *testing.T) {
	user := newKey(t)
	env, err := New(42).Build(Request{
		Steps:    []Step{{Kind: StepMemo, Data: []byte("x")}},
		FeePayer: user.PublicKey().Address(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	count := 0
	for _, s := range env.Signers {
		if s.Role == RoleFeePayer {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("fee payer slots = %d, want exactly 1", count)
	}
}

func TestBuildSignatureVerifies(t *testing.T) {
	authority := newKey(t)
	user := newKey(t)

	env, err := New(7).Build(Request{
		Steps:       []Step{{Kind: StepIssue, To: user.PublicKey().Address(), Token: "0xt", Amount: 5}},
		FeePayer:    user.PublicKey().Address(),
		Authorities: []*keys.PrivateKey{authority},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	digest, err := env.Digest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	var slot SignerSlot
	for _, s := range env.Signers {
		if s.Role == RoleAuthority {
			slot = s
		}
	}
	sig, err := base64.StdEncoding.DecodeString(slot.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !authority.PublicKey().Verify(sig, hash.Sha256(digest).BytesBE()) {
		t.Fatal("authority signature does not verify against envelope digest")
	}
}

func TestBuildStepOrderIsStable(t *testing.T) {
	authority := newKey(t)
	user := newKey(t)
	payer := user.PublicKey().Address()
	treasury := authority.PublicKey().Address()
	steps := buySteps(payer, treasury, treasury, "0xtoken")

	a := New(42)
	req := Request{Steps: steps, FeePayer: payer, Authorities: []*keys.PrivateKey{authority}}

	first, err := a.Build(req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 10; i++ {
		env, err := a.Build(req)
		if err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		if !reflect.DeepEqual(env.Steps, first.Steps) {
			t.Fatalf("step order changed between identical builds")
		}
	}
}

func TestBuildUnresolvedDescriptorIsNotReady(t *testing.T) {
	user := newKey(t)
	_, err := New(42).Build(Request{
		Steps:    []Step{{Kind: StepIssue, To: "acct", Token: "", Amount: 5}},
		FeePayer: user.PublicKey().Address(),
	})
	if !faults.Is(err, faults.NotReady) {
		t.Fatalf("want NotReady for unresolved descriptor, got %v", err)
	}
}

func TestBuildValidation(t *testing.T) {
	user := newKey(t)
	payer := user.PublicKey().Address()
	a := New(42)

	cases := []struct {
		name string
		req  Request
	}{
		{"no steps", Request{FeePayer: payer}},
		{"no fee payer", Request{Steps: []Step{{Kind: StepMemo}}}},
		{"malformed fee payer", Request{Steps: []Step{{Kind: StepMemo}}, FeePayer: "not-an-address"}},
		{"negative transfer", Request{
			Steps:    []Step{{Kind: StepTransfer, From: "a", To: "b", Amount: -1}},
			FeePayer: payer,
		}},
		{"unknown kind", Request{
			Steps:    []Step{{Kind: StepKind("bogus")}},
			FeePayer: payer,
		}},
	}
	for _, tc := range cases {
		if _, err := a.Build(tc.req); !faults.Is(err, faults.Validation) {
			t.Fatalf("%s: want Validation, got %v", tc.name, err)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	authority := newKey(t)
	user := newKey(t)
	payer := user.PublicKey().Address()

	env, err := New(42).Build(Request{
		Steps:          buySteps(payer, authority.PublicKey().Address(), payer, "0xtoken"),
		FeePayer:       payer,
		Authorities:    []*keys.PrivateKey{authority},
		CorrelationTag: "trade-123",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	artifact, err := env.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	parsed, err := Parse(artifact)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(parsed, env) {
		t.Fatal("round trip mismatch")
	}
	if parsed.CorrelationTag != "trade-123" {
		t.Fatalf("correlation tag = %s", parsed.CorrelationTag)
	}
}
