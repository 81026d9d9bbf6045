package postgres

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/neopad/engine/internal/domain/trade"
	"github.com/neopad/engine/internal/storage"
)

func TestCreateTradeClaimsReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO launch_trades").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	created, err := s.CreateTrade(context.Background(), trade.Trade{
		AssetID:          "asset-1",
		Side:             trade.SideBuy,
		BaseAmount:       100,
		PaymentReference: "0xref",
		Status:           trade.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("id not assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateTradeDuplicateReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO launch_trades").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "launch_trades_payment_reference_key"})

	s := New(db)
	_, err = s.CreateTrade(context.Background(), trade.Trade{
		AssetID:          "asset-1",
		PaymentReference: "0xref",
	})
	if !errors.Is(err, storage.ErrPaymentReferenceClaimed) {
		t.Fatalf("want ErrPaymentReferenceClaimed, got %v", err)
	}
}

func TestReleasePaymentClaimClearsReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE launch_trades").
		WithArgs("trade-1", "failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	if err := s.ReleasePaymentClaim(context.Background(), "trade-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	mock.ExpectExec("UPDATE launch_trades").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.ReleasePaymentClaim(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMarkMigratedUnknownAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE launch_assets").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := New(db)
	if err := s.MarkMigrated(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetTradeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM launch_trades").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s := New(db)
	if _, err := s.GetTrade(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecordIssuanceIncrements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE launch_assets").
		WithArgs("asset-1", int64(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := New(db)
	if err := s.RecordIssuance(context.Background(), "asset-1", 500); err != nil {
		t.Fatalf("record issuance: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
