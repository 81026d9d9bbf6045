// Package payment confirms claimed inbound payments against the ledger.
// Verification is the sole authorization gate for the pay-first,
// claim-tokens-after flow: any failure here means no issuance.
package payment

import (
	"context"
	"fmt"

	"github.com/neopad/engine/internal/chain"
	"github.com/neopad/engine/internal/faults"
	"github.com/neopad/engine/pkg/logger"
)

// ToleranceBps is how far below the expected amount a confirmed payment may
// land and still verify (rounding/timing slack).
const ToleranceBps = 9800 // accept >= 98%

// DeltaSource fetches confirmed balance deltas for a transaction reference.
// *chain.Client satisfies it.
type DeltaSource interface {
	BalanceDeltas(ctx context.Context, txHash string) (*chain.TransactionDeltas, error)
}

// Verifier checks that a referenced ledger transaction actually paid the
// treasury.
type Verifier struct {
	src DeltaSource
	log *logger.Logger
}

// NewVerifier creates a payment verifier.
func NewVerifier(src DeltaSource, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewDefault("payment-verifier")
	}
	return &Verifier{src: src, log: log}
}

// Verify confirms that the referenced transaction moved at least 98% of
// expectedMinorUnits from the payer to the recipient. It returns nil only
// when the payment is proven; every other outcome closes the gate.
func (v *Verifier) Verify(ctx context.Context, paymentReference, expectedPayer, expectedRecipient string, expectedMinorUnits int64) error {
	const op = "payment.Verify"

	if paymentReference == "" {
		return faults.Errorf(faults.Validation, op, "payment reference required")
	}
	if expectedMinorUnits <= 0 {
		return faults.Errorf(faults.Validation, op, "expected amount must be positive, got %d", expectedMinorUnits)
	}

	deltas, err := v.src.BalanceDeltas(ctx, paymentReference)
	if err != nil {
		return faults.E(faults.ExternalDependency, op, fmt.Errorf("fetch balance deltas for %s: %w", paymentReference, err))
	}

	if _, ok := deltas.Participant(expectedPayer); !ok {
		return faults.Errorf(faults.PaymentUnverified, op,
			"payer %s not a participant of %s", expectedPayer, paymentReference)
	}

	recipient, ok := deltas.Participant(expectedRecipient)
	if !ok {
		return faults.Errorf(faults.PaymentUnverified, op,
			"recipient %s not a participant of %s", expectedRecipient, paymentReference)
	}

	// Divide before multiplying; expected*bps can exceed int64 for large
	// payments. The remainder term keeps the result an exact floor.
	required := expectedMinorUnits/10000*ToleranceBps + expectedMinorUnits%10000*ToleranceBps/10000
	if got := recipient.Delta(); got < required {
		return faults.Errorf(faults.PaymentUnverified, op,
			"recipient delta %d below required %d (expected %d)", got, required, expectedMinorUnits)
	}

	v.log.WithField("reference", paymentReference).
		Infof("payment verified: %d minor units to %s", recipient.Delta(), expectedRecipient)
	return nil
}
