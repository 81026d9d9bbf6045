// Package storage defines the persistence interfaces the engine reads and
// writes. Implementations live in the memory and postgres subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/domain/trade"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrPaymentReferenceClaimed is returned when a trade insert would reuse a
// payment reference. The uniqueness constraint is the engine's defense
// against double issuance for one payment.
var ErrPaymentReferenceClaimed = errors.New("payment reference already claimed")

// AssetStore persists launched assets.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
	UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	ListAssets(ctx context.Context) ([]asset.Asset, error)

	// SetTokenHash records the lazily created issuance descriptor. It only
	// writes when the column is still empty.
	SetTokenHash(ctx context.Context, id, tokenHash string) error

	// RecordIssuance advances the reporting mirror of cumulative issuance.
	RecordIssuance(ctx context.Context, id string, tokenAmount int64) error

	// MarkMigrated flips the one-way migration flag. Flipping an already
	// migrated asset is a no-op.
	MarkMigrated(ctx context.Context, id string) error
}

// TradeStore persists trade executions. CreateTrade enforces the
// payment-reference uniqueness constraint when the trade carries one.
type TradeStore interface {
	CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	UpdateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error)
	GetTrade(ctx context.Context, id string) (trade.Trade, error)
	ListTradesByAsset(ctx context.Context, assetID string) ([]trade.Trade, error)

	// ReleasePaymentClaim marks a pending trade failed and frees its
	// payment reference so a later confirmation of the same payment can
	// claim it again. Only safe when nothing reached the ledger.
	ReleasePaymentClaim(ctx context.Context, tradeID string) error
}
