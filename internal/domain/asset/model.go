// Package asset defines the launched-asset aggregate the engine prices and
// issues against.
package asset

import "time"

// CurveType selects the pricing function family.
type CurveType string

const (
	CurveLinear      CurveType = "linear"
	CurveExponential CurveType = "exponential"
	CurveRandomized  CurveType = "randomized"
)

// Valid reports whether the curve type is one the engine knows.
func (c CurveType) Valid() bool {
	switch c {
	case CurveLinear, CurveExponential, CurveRandomized:
		return true
	}
	return false
}

// Strength tunes how aggressively a curve moves. Valid values are 1..3.
type Strength int

// Valid reports whether the strength is in range.
func (s Strength) Valid() bool { return s >= 1 && s <= 3 }

// Asset is a tradable asset priced by a bonding curve until migration.
type Asset struct {
	ID       string
	Symbol   string
	Decimals int
	Curve    CurveType
	Strength Strength

	// TokenHash is the on-ledger issuance descriptor. Empty until the token
	// is lazily registered on the first buy.
	TokenHash string

	// CumulativeIssuance mirrors the on-ledger total supply for reporting.
	// Pricing never reads this field; the ledger counter is authoritative.
	CumulativeIssuance int64

	// Migrated flips once cumulative issuance crosses the issuance window
	// and never flips back.
	Migrated bool

	Creator string

	// Optional per-asset fee split overrides, bps of the total fee bps.
	// Zero means the scheduler default applies.
	CreatorBps  int64
	ProtocolBps int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
