// Package trade defines recorded buy/sell executions.
package trade

import "time"

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Status tracks a trade through its lifecycle.
type Status string

const (
	// StatusPending marks a claimed trade whose issuance has not settled.
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

// Trade records one execution against an asset's curve.
type Trade struct {
	ID           string
	AssetID      string
	Side         Side
	BaseAmount   int64 // base currency minor units
	TokenAmount  int64 // issuable asset minor units
	Counterparty string

	// PaymentReference is the inbound ledger transaction that funded a
	// post-payment buy. At most one trade may ever carry a given reference;
	// stores enforce this with a uniqueness constraint.
	PaymentReference string

	// SettlementTx is the issuance transaction hash once submitted.
	SettlementTx string

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
