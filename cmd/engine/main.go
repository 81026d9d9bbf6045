// Package main runs the token launch engine: curve pricing, fee scheduling,
// payment verification, and atomic settlement assembly behind one HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/neopad/engine/internal/chain"
	"github.com/neopad/engine/internal/config"
	"github.com/neopad/engine/internal/curve"
	"github.com/neopad/engine/internal/fees"
	"github.com/neopad/engine/internal/httpapi"
	"github.com/neopad/engine/internal/httpserver"
	"github.com/neopad/engine/internal/payment"
	"github.com/neopad/engine/internal/storage"
	"github.com/neopad/engine/internal/storage/memory"
	"github.com/neopad/engine/internal/storage/postgres"
	"github.com/neopad/engine/internal/trading"
	"github.com/neopad/engine/internal/treasury"
	"github.com/neopad/engine/internal/txassembly"
	"github.com/neopad/engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env", "", "Path to .env file with overrides")
	flag.Parse()

	// Optional; a missing .env file is not an error.
	if *envFile != "" {
		_ = godotenv.Load(*envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Engine exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	guard, err := treasury.NewGuard(cfg.Treasury.SigningKey, cfg.Treasury.Address)
	if err != nil {
		return fmt.Errorf("treasury guard: %w", err)
	}
	// Refuse to start on identity drift rather than failing per request.
	if err := guard.Check(); err != nil {
		return err
	}

	ledger, err := chain.NewClient(chain.Config{
		RPCURL:    cfg.Ledger.RPCURL,
		NetworkID: cfg.Ledger.NetworkID,
		Timeout:   cfg.Ledger.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("ledger client: %w", err)
	}

	assets, trades, closeStore, err := openStores(cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := trading.NewService(trading.Deps{
		Assets:          assets,
		Trades:          trades,
		Curve:           curve.New(cfg.Curve.IssuanceWindow, cfg.Curve.SellSpreadBps),
		Fees:            fees.NewSchedule(cfg.Fees.PreCapMinorUnits, cfg.Fees.PostCapMinorUnits, cfg.Fees.CreatorShareBps),
		Guard:           guard,
		Assembler:       txassembly.New(ledger.NetworkID()),
		Ledger:          ledger,
		Payments:        payment.NewVerifier(ledger, log.Component("payment")),
		ProtocolAddress: cfg.Treasury.ProtocolAddress,
		WaitAttempts:    cfg.Ledger.WaitAttempts,
		WaitDelay:       cfg.Ledger.WaitDelay(),
		Log:             log.Component("trading"),
	})

	handler := httpapi.NewHandler(svc, log.Component("httpapi"))
	server := httpserver.New(cfg.Server, log.Component("httpserver"), handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// openStores selects the persistence backend. An empty DSN runs the engine
// on the in-memory store, which is enough for local development.
func openStores(cfg config.DatabaseConfig, log *logger.Logger) (storage.AssetStore, storage.TradeStore, func(), error) {
	if cfg.DSN == "" {
		log.Warn("No database DSN configured, using in-memory store")
		store := memory.New()
		return store, store, func() {}, nil
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := postgres.New(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info("Connected to postgres store")
	return store, store, func() { db.Close() }, nil
}
