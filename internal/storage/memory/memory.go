// Package memory provides an in-memory store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/domain/trade"
	"github.com/neopad/engine/internal/storage"
)

// Store implements storage.AssetStore and storage.TradeStore in memory.
type Store struct {
	mu       sync.RWMutex
	assets   map[string]asset.Asset
	trades   map[string]trade.Trade
	payments map[string]string // payment reference -> trade ID
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		assets:   make(map[string]asset.Asset),
		trades:   make(map[string]trade.Trade),
		payments: make(map[string]string),
	}
}

// --- AssetStore --------------------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) UpdateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assets[a.ID]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	// Migration is one-way.
	if existing.Migrated {
		a.Migrated = true
	}
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) ListAssets(_ context.Context) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]asset.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetTokenHash(_ context.Context, id, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return storage.ErrNotFound
	}
	if a.TokenHash != "" {
		return nil
	}
	a.TokenHash = tokenHash
	a.UpdatedAt = time.Now().UTC()
	s.assets[id] = a
	return nil
}

func (s *Store) RecordIssuance(_ context.Context, id string, tokenAmount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.CumulativeIssuance += tokenAmount
	a.UpdatedAt = time.Now().UTC()
	s.assets[id] = a
	return nil
}

func (s *Store) MarkMigrated(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return storage.ErrNotFound
	}
	if !a.Migrated {
		a.Migrated = true
		a.UpdatedAt = time.Now().UTC()
		s.assets[id] = a
	}
	return nil
}

// --- TradeStore ---------------------------------------------------------------

func (s *Store) CreateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.PaymentReference != "" {
		if _, claimed := s.payments[t.PaymentReference]; claimed {
			return trade.Trade{}, storage.ErrPaymentReferenceClaimed
		}
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.trades[t.ID] = t
	if t.PaymentReference != "" {
		s.payments[t.PaymentReference] = t.ID
	}
	return t, nil
}

func (s *Store) UpdateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.trades[t.ID]
	if !ok {
		return trade.Trade{}, storage.ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.PaymentReference = existing.PaymentReference
	t.UpdatedAt = time.Now().UTC()
	s.trades[t.ID] = t
	return t, nil
}

func (s *Store) ReleasePaymentClaim(_ context.Context, tradeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[tradeID]
	if !ok {
		return storage.ErrNotFound
	}
	if t.PaymentReference != "" {
		delete(s.payments, t.PaymentReference)
		t.PaymentReference = ""
	}
	t.Status = trade.StatusFailed
	t.UpdatedAt = time.Now().UTC()
	s.trades[tradeID] = t
	return nil
}

func (s *Store) GetTrade(_ context.Context, id string) (trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return trade.Trade{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTradesByAsset(_ context.Context, assetID string) ([]trade.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trade.Trade
	for _, t := range s.trades {
		if t.AssetID == assetID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
