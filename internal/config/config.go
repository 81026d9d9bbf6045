// Package config defines the explicit configuration object injected into
// every engine component. Nothing in the engine reads ambient process state
// after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the engine process.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Treasury TreasuryConfig `yaml:"treasury"`
	Curve    CurveConfig    `yaml:"curve"`
	Fees     FeeConfig      `yaml:"fees"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the relational store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DB_DRIVER"`
	DSN             string `yaml:"dsn" env:"DB_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds" env:"DB_CONN_MAX_LIFETIME"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// LedgerConfig points the engine at its ledger node.
type LedgerConfig struct {
	RPCURL         string `yaml:"rpc_url" env:"LEDGER_RPC_URL"`
	NetworkID      uint32 `yaml:"network_id" env:"LEDGER_NETWORK_ID"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LEDGER_TIMEOUT"`
	// Visibility waits for newly registered tokens: fixed delay, hard cap.
	WaitAttempts int `yaml:"wait_attempts" env:"LEDGER_WAIT_ATTEMPTS"`
	WaitDelayMS  int `yaml:"wait_delay_ms" env:"LEDGER_WAIT_DELAY_MS"`
}

// WaitDelay returns the fixed delay between visibility attempts.
func (c LedgerConfig) WaitDelay() time.Duration {
	return time.Duration(c.WaitDelayMS) * time.Millisecond
}

// Timeout returns the ledger RPC timeout.
func (c LedgerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TreasuryConfig holds the published platform identities and the held key.
type TreasuryConfig struct {
	// Address is the published treasury identity. It must match the address
	// derived from SigningKey or the process refuses to move funds.
	Address string `yaml:"address" env:"TREASURY_ADDRESS"`
	// SigningKey is the hex-encoded treasury private key. Never logged.
	SigningKey      string `yaml:"signing_key" env:"TREASURY_SIGNING_KEY"`
	ProtocolAddress string `yaml:"protocol_address" env:"PROTOCOL_FEE_ADDRESS"`
}

// CurveConfig tunes the pricing engine.
type CurveConfig struct {
	// IssuanceWindow is the cumulative-issuance threshold (token minor units)
	// marking migration from pre- to post-phase.
	IssuanceWindow int64 `yaml:"issuance_window" env:"CURVE_ISSUANCE_WINDOW"`
	// SellSpreadBps is applied against the seller on sell quotes.
	SellSpreadBps int64 `yaml:"sell_spread_bps" env:"CURVE_SELL_SPREAD_BPS"`
}

// FeeConfig tunes the fee scheduler. Tier boundaries are fixed; caps and the
// default creator share are deploy-time knobs.
type FeeConfig struct {
	PreCapMinorUnits  int64 `yaml:"pre_cap_minor_units" env:"FEE_PRE_CAP"`
	PostCapMinorUnits int64 `yaml:"post_cap_minor_units" env:"FEE_POST_CAP"`
	// CreatorShareBps is the creator's share of the total fee, in bps of the
	// fee itself (10000 = the whole fee).
	CreatorShareBps int64 `yaml:"creator_share_bps" env:"FEE_CREATOR_SHARE_BPS"`
}

// Default returns the baseline configuration. Load layers the YAML file and
// environment overrides on top of it, in that order.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8090},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Ledger: LedgerConfig{
			NetworkID:      894710606, // TestNet
			TimeoutSeconds: 30,
			WaitAttempts:   10,
			WaitDelayMS:    500,
		},
		Curve: CurveConfig{
			IssuanceWindow: 800_000_000_000_000, // 800M tokens at 6 decimals
			SellSpreadBps:  200,
		},
		Fees: FeeConfig{
			PreCapMinorUnits:  1_000_000_000, // 10 base units
			PostCapMinorUnits: 500_000_000,   // 5 base units
			CreatorShareBps:   4000,
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides. Validation happens once here; components receive
// the result by injection.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the engine depends on.
func (c *Config) Validate() error {
	if c.Treasury.Address == "" {
		return fmt.Errorf("treasury address is required")
	}
	if c.Treasury.SigningKey == "" {
		return fmt.Errorf("treasury signing key is required")
	}
	if c.Treasury.ProtocolAddress == "" {
		c.Treasury.ProtocolAddress = c.Treasury.Address
	}
	if c.Curve.IssuanceWindow <= 0 {
		return fmt.Errorf("issuance window must be positive, got %d", c.Curve.IssuanceWindow)
	}
	if c.Curve.SellSpreadBps < 0 || c.Curve.SellSpreadBps >= 10000 {
		return fmt.Errorf("sell spread bps out of range: %d", c.Curve.SellSpreadBps)
	}
	if c.Fees.CreatorShareBps < 0 || c.Fees.CreatorShareBps > 10000 {
		return fmt.Errorf("creator share bps out of range: %d", c.Fees.CreatorShareBps)
	}
	if c.Fees.PreCapMinorUnits < 0 || c.Fees.PostCapMinorUnits < 0 {
		return fmt.Errorf("fee caps must be non-negative")
	}
	if c.Ledger.WaitAttempts <= 0 {
		c.Ledger.WaitAttempts = 10
	}
	if c.Ledger.WaitDelayMS <= 0 {
		c.Ledger.WaitDelayMS = 500
	}
	return nil
}
