// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/domain/trade"
	"github.com/neopad/engine/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema if it does not exist. The partial unique index
// on payment_reference is what makes payment claims race-safe; everything
// else is plain bookkeeping.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_assets (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			decimals INTEGER NOT NULL,
			curve TEXT NOT NULL,
			strength INTEGER NOT NULL,
			token_hash TEXT NOT NULL DEFAULT '',
			cumulative_issuance BIGINT NOT NULL DEFAULT 0,
			migrated BOOLEAN NOT NULL DEFAULT FALSE,
			creator TEXT NOT NULL,
			creator_bps BIGINT NOT NULL DEFAULT 0,
			protocol_bps BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS launch_trades (
			id TEXT PRIMARY KEY,
			asset_id TEXT NOT NULL REFERENCES launch_assets(id),
			side TEXT NOT NULL,
			base_amount BIGINT NOT NULL,
			token_amount BIGINT NOT NULL,
			counterparty TEXT NOT NULL,
			payment_reference TEXT NOT NULL DEFAULT '',
			settlement_tx TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS launch_trades_payment_reference_key
			ON launch_trades (payment_reference)
			WHERE payment_reference <> ''`,
		`CREATE INDEX IF NOT EXISTS launch_trades_asset_id_idx
			ON launch_trades (asset_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- AssetStore ---------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_assets (id, symbol, decimals, curve, strength, token_hash,
			cumulative_issuance, migrated, creator, creator_bps, protocol_bps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.Symbol, a.Decimals, string(a.Curve), int(a.Strength), a.TokenHash,
		a.CumulativeIssuance, a.Migrated, a.Creator, a.CreatorBps, a.ProtocolBps, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, decimals, curve, strength, token_hash,
			cumulative_issuance, migrated, creator, creator_bps, protocol_bps, created_at, updated_at
		FROM launch_assets
		WHERE id = $1
	`, id)
	return scanAsset(row)
}

func (s *Store) UpdateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	a.UpdatedAt = time.Now().UTC()

	// migrated = migrated OR $x keeps the flag one-way at the row level.
	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_assets
		SET symbol = $2, decimals = $3, curve = $4, strength = $5, token_hash = $6,
			cumulative_issuance = $7, migrated = migrated OR $8, creator = $9,
			creator_bps = $10, protocol_bps = $11, updated_at = $12
		WHERE id = $1
	`, a.ID, a.Symbol, a.Decimals, string(a.Curve), int(a.Strength), a.TokenHash,
		a.CumulativeIssuance, a.Migrated, a.Creator, a.CreatorBps, a.ProtocolBps, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Asset{}, storage.ErrNotFound
	}
	return s.GetAsset(ctx, a.ID)
}

func (s *Store) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, decimals, curve, strength, token_hash,
			cumulative_issuance, migrated, creator, creator_bps, protocol_bps, created_at, updated_at
		FROM launch_assets
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) SetTokenHash(ctx context.Context, id, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_assets
		SET token_hash = $2, updated_at = $3
		WHERE id = $1 AND token_hash = ''
	`, id, tokenHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Either the asset is unknown or the descriptor is already set; the
		// second case is the idempotent no-op callers expect.
		if _, err := s.GetAsset(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RecordIssuance(ctx context.Context, id string, tokenAmount int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_assets
		SET cumulative_issuance = cumulative_issuance + $2, updated_at = $3
		WHERE id = $1
	`, id, tokenAmount, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkMigrated(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_assets
		SET migrated = TRUE, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (asset.Asset, error) {
	var (
		a        asset.Asset
		curve    string
		strength int
	)
	err := row.Scan(&a.ID, &a.Symbol, &a.Decimals, &curve, &strength, &a.TokenHash,
		&a.CumulativeIssuance, &a.Migrated, &a.Creator, &a.CreatorBps, &a.ProtocolBps,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return asset.Asset{}, storage.ErrNotFound
		}
		return asset.Asset{}, err
	}
	a.Curve = asset.CurveType(curve)
	a.Strength = asset.Strength(strength)
	return a, nil
}

// --- TradeStore ----------------------------------------------------------------

func (s *Store) CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	// launch_trades carries a partial unique index on payment_reference
	// (WHERE payment_reference <> ''). The constraint, not application
	// logic, is what makes "issue at most once per payment" hold under
	// concurrent confirm calls.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_trades (id, asset_id, side, base_amount, token_amount,
			counterparty, payment_reference, settlement_tx, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.ID, t.AssetID, string(t.Side), t.BaseAmount, t.TokenAmount,
		t.Counterparty, t.PaymentReference, t.SettlementTx, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return trade.Trade{}, storage.ErrPaymentReferenceClaimed
		}
		return trade.Trade{}, err
	}
	return t, nil
}

func (s *Store) UpdateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_trades
		SET token_amount = $2, settlement_tx = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, t.ID, t.TokenAmount, t.SettlementTx, string(t.Status), t.UpdatedAt)
	if err != nil {
		return trade.Trade{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return trade.Trade{}, storage.ErrNotFound
	}
	return s.GetTrade(ctx, t.ID)
}

func (s *Store) ReleasePaymentClaim(ctx context.Context, tradeID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE launch_trades
		SET payment_reference = '', status = $2, updated_at = $3
		WHERE id = $1
	`, tradeID, string(trade.StatusFailed), time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetTrade(ctx context.Context, id string) (trade.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, side, base_amount, token_amount, counterparty,
			payment_reference, settlement_tx, status, created_at, updated_at
		FROM launch_trades
		WHERE id = $1
	`, id)
	return scanTrade(row)
}

func (s *Store) ListTradesByAsset(ctx context.Context, assetID string) ([]trade.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, side, base_amount, token_amount, counterparty,
			payment_reference, settlement_tx, status, created_at, updated_at
		FROM launch_trades
		WHERE asset_id = $1
		ORDER BY created_at
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTrade(row scanner) (trade.Trade, error) {
	var (
		t      trade.Trade
		side   string
		status string
	)
	err := row.Scan(&t.ID, &t.AssetID, &side, &t.BaseAmount, &t.TokenAmount,
		&t.Counterparty, &t.PaymentReference, &t.SettlementTx, &status,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.Trade{}, storage.ErrNotFound
		}
		return trade.Trade{}, err
	}
	t.Side = trade.Side(side)
	t.Status = trade.Status(status)
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
