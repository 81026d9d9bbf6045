package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/domain/trade"
	"github.com/neopad/engine/internal/storage"
)

func TestAssetLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.CreateAsset(ctx, asset.Asset{Symbol: "PAD", Curve: asset.CurveLinear, Strength: 2, Creator: "creator"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("id not assigned")
	}

	if err := s.SetTokenHash(ctx, a.ID, "0xtok"); err != nil {
		t.Fatalf("set token hash: %v", err)
	}
	// A second write must not overwrite the descriptor.
	if err := s.SetTokenHash(ctx, a.ID, "0xother"); err != nil {
		t.Fatalf("set token hash again: %v", err)
	}
	got, _ := s.GetAsset(ctx, a.ID)
	if got.TokenHash != "0xtok" {
		t.Fatalf("token hash overwritten: %s", got.TokenHash)
	}

	if err := s.RecordIssuance(ctx, a.ID, 500); err != nil {
		t.Fatalf("record issuance: %v", err)
	}
	got, _ = s.GetAsset(ctx, a.ID)
	if got.CumulativeIssuance != 500 {
		t.Fatalf("cumulative issuance = %d", got.CumulativeIssuance)
	}
}

func TestMigrationIsOneWay(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateAsset(ctx, asset.Asset{Symbol: "PAD"})
	if err := s.MarkMigrated(ctx, a.ID); err != nil {
		t.Fatalf("mark migrated: %v", err)
	}

	// An update that claims pre-migration state must not win.
	a.Migrated = false
	if _, err := s.UpdateAsset(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetAsset(ctx, a.ID)
	if !got.Migrated {
		t.Fatal("migration flag flipped back")
	}
}

func TestPaymentReferenceClaimedOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := trade.Trade{AssetID: "a1", Side: trade.SideBuy, PaymentReference: "0xpayment", Status: trade.StatusPending}
	if _, err := s.CreateTrade(ctx, first); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, err := s.CreateTrade(ctx, trade.Trade{AssetID: "a1", Side: trade.SideBuy, PaymentReference: "0xpayment"})
	if !errors.Is(err, storage.ErrPaymentReferenceClaimed) {
		t.Fatalf("want ErrPaymentReferenceClaimed, got %v", err)
	}

	// Trades without a reference are unconstrained.
	if _, err := s.CreateTrade(ctx, trade.Trade{AssetID: "a1", Side: trade.SideSell}); err != nil {
		t.Fatalf("unreferenced trade: %v", err)
	}
}

func TestUpdateTradePreservesReference(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, _ := s.CreateTrade(ctx, trade.Trade{AssetID: "a1", PaymentReference: "0xref", Status: trade.StatusPending})
	created.Status = trade.StatusSettled
	created.PaymentReference = "tampered"
	updated, err := s.UpdateTrade(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PaymentReference != "0xref" {
		t.Fatalf("payment reference mutated: %s", updated.PaymentReference)
	}
	if updated.Status != trade.StatusSettled {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestReleasePaymentClaimFreesReference(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, _ := s.CreateTrade(ctx, trade.Trade{AssetID: "a1", Side: trade.SideBuy, PaymentReference: "0xpayment", Status: trade.StatusPending})
	if err := s.ReleasePaymentClaim(ctx, created.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	released, _ := s.GetTrade(ctx, created.ID)
	if released.PaymentReference != "" || released.Status != trade.StatusFailed {
		t.Fatalf("released trade = %+v", released)
	}

	// The same reference can be claimed again.
	if _, err := s.CreateTrade(ctx, trade.Trade{AssetID: "a1", Side: trade.SideBuy, PaymentReference: "0xpayment", Status: trade.StatusPending}); err != nil {
		t.Fatalf("reclaim after release: %v", err)
	}

	if err := s.ReleasePaymentClaim(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("release unknown trade: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetAsset(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get asset: %v", err)
	}
	if _, err := s.GetTrade(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get trade: %v", err)
	}
	if err := s.MarkMigrated(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("mark migrated: %v", err)
	}
}
