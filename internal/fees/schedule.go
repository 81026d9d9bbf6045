// Package fees computes trade fee totals and their rounding-exact split
// between the asset creator and the protocol.
package fees

import "github.com/neopad/engine/internal/domain/asset"

// Phase selects the fee table: pre-migration bonding curve trading or
// post-migration open trading.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// PhaseFor derives the phase from an asset's migration state and the
// authoritative issuance counter.
func PhaseFor(a asset.Asset, cumulativeIssuance, window int64) Phase {
	if a.Migrated || cumulativeIssuance >= window {
		return PhasePost
	}
	return PhasePre
}

// Tier maps a trade-size bracket to a total fee rate. UpTo is the inclusive
// upper bound in base minor units; zero means unbounded.
type Tier struct {
	UpTo     int64
	TotalBps int64
}

// Schedule is the injected fee table. It is read-only after construction.
type Schedule struct {
	preTiers        []Tier
	postBps         int64
	preCap          int64
	postCap         int64
	creatorShareBps int64 // creator's share of the total fee, bps of 10000
}

// NewSchedule builds a schedule with the standard four pre-phase size tiers
// and a flat post-phase rate. Caps and the creator share come from config.
func NewSchedule(preCap, postCap, creatorShareBps int64) *Schedule {
	return &Schedule{
		preTiers: []Tier{
			{UpTo: 50_000_000, TotalBps: 300},    // <= 0.5 base units
			{UpTo: 500_000_000, TotalBps: 250},   // <= 5
			{UpTo: 5_000_000_000, TotalBps: 200}, // <= 50
			{UpTo: 0, TotalBps: 150},
		},
		postBps:         100,
		preCap:          preCap,
		postCap:         postCap,
		creatorShareBps: creatorShareBps,
	}
}

// Quote is a computed fee split. CreatorShare + ProtocolShare == FeeTotal
// always holds exactly; the protocol side absorbs rounding.
type Quote struct {
	Phase         Phase
	TotalBps      int64
	CreatorBps    int64
	ProtocolBps   int64
	Cap           int64
	FeeTotal      int64
	CreatorShare  int64
	ProtocolShare int64
}

// Split optionally overrides the default creator/protocol bps partition.
// Both values are bps of the trade; they replace the derived partition when
// their sum is positive.
type Split struct {
	CreatorBps  int64
	ProtocolBps int64
}

// Compute returns the fee quote for a trade of the given size in base minor
// units. A zero or negative amount, or a zero-bps phase, yields a zero quote
// with no division performed.
func (s *Schedule) Compute(amountMinorUnits int64, phase Phase, override *Split) Quote {
	totalBps, cap := s.rateFor(amountMinorUnits, phase)

	creatorBps := totalBps * s.creatorShareBps / 10000
	protocolBps := totalBps - creatorBps
	if override != nil && override.CreatorBps+override.ProtocolBps > 0 {
		creatorBps = override.CreatorBps
		protocolBps = override.ProtocolBps
		totalBps = creatorBps + protocolBps
	}

	q := Quote{
		Phase:       phase,
		TotalBps:    totalBps,
		CreatorBps:  creatorBps,
		ProtocolBps: protocolBps,
		Cap:         cap,
	}

	if amountMinorUnits <= 0 || totalBps == 0 {
		return q
	}

	// Divide before multiplying; amount*bps can exceed int64 for large
	// trades. The remainder term keeps the result an exact floor.
	feeTotal := amountMinorUnits/10000*totalBps + amountMinorUnits%10000*totalBps/10000
	if feeTotal > cap {
		feeTotal = cap
	}

	q.FeeTotal = feeTotal
	q.CreatorShare = feeTotal * creatorBps / totalBps
	q.ProtocolShare = feeTotal - q.CreatorShare
	return q
}

func (s *Schedule) rateFor(amount int64, phase Phase) (bps, cap int64) {
	if phase == PhasePost {
		return s.postBps, s.postCap
	}
	for _, t := range s.preTiers {
		if t.UpTo == 0 || amount <= t.UpTo {
			return t.TotalBps, s.preCap
		}
	}
	return 0, s.preCap
}

// Disbursement is a single fee transfer, in execution order.
type Disbursement struct {
	Recipient string
	Amount    int64
}

// Disbursements renders the quote as the ordered transfer list handed to
// the transaction assembler. Zero-amount legs are dropped.
func (q Quote) Disbursements(creator, protocol string) []Disbursement {
	var out []Disbursement
	if q.CreatorShare > 0 {
		out = append(out, Disbursement{Recipient: creator, Amount: q.CreatorShare})
	}
	if q.ProtocolShare > 0 {
		out = append(out, Disbursement{Recipient: protocol, Amount: q.ProtocolShare})
	}
	return out
}
