// Package trading orchestrates quotes, envelope assembly, and payment-backed
// settlement against the bonding curve.
package trading

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/neopad/engine/internal/curve"
	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/domain/trade"
	"github.com/neopad/engine/internal/faults"
	"github.com/neopad/engine/internal/fees"
	"github.com/neopad/engine/internal/metrics"
	"github.com/neopad/engine/internal/storage"
	"github.com/neopad/engine/internal/treasury"
	"github.com/neopad/engine/internal/txassembly"
	"github.com/neopad/engine/pkg/logger"
)

// BaseDecimals is the minor-unit precision of the base currency.
const BaseDecimals = 8

const baseMinorPerUnit = 100_000_000

// envelopeValidityBlocks bounds inclusion for envelopes whose caller did not
// pin a deadline.
const envelopeValidityBlocks = 240

// Ledger is the subset of chain operations the orchestrator needs.
type Ledger interface {
	GetBlockCount(ctx context.Context) (uint64, error)
	TokenTotalSupply(ctx context.Context, tokenHash string) (int64, error)
	RegisterToken(ctx context.Context, symbol string, decimals int, owner string) (string, error)
	WaitForToken(ctx context.Context, tokenHash string, attempts int, delay time.Duration) error
	EnsureHoldingAccount(ctx context.Context, owner, tokenHash string) error
	SubmitEnvelope(ctx context.Context, artifact string) (string, error)
}

// PaymentVerifier checks that an inbound payment actually moved funds.
type PaymentVerifier interface {
	Verify(ctx context.Context, paymentReference, expectedPayer, expectedRecipient string, expectedMinorUnits int64) error
}

// Deps carries the orchestrator's collaborators. All fields are required
// unless noted.
type Deps struct {
	Assets    storage.AssetStore
	Trades    storage.TradeStore
	Curve     *curve.Engine
	Fees      *fees.Schedule
	Guard     *treasury.Guard
	Assembler *txassembly.Assembler
	Ledger    Ledger
	Payments  PaymentVerifier

	// ProtocolAddress receives the protocol's fee share.
	ProtocolAddress string

	// WaitAttempts and WaitDelay bound the poll for a freshly registered
	// token to become visible.
	WaitAttempts int
	WaitDelay    time.Duration

	Log *logger.Logger
}

// Service executes the engine's trade operations.
type Service struct {
	assets    storage.AssetStore
	trades    storage.TradeStore
	curve     *curve.Engine
	fees      *fees.Schedule
	guard     *treasury.Guard
	assembler *txassembly.Assembler
	ledger    Ledger
	payments  PaymentVerifier

	protocolAddress string
	waitAttempts    int
	waitDelay       time.Duration

	log *logger.Logger
}

// NewService wires the orchestrator.
func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault("trading")
	}
	if d.WaitAttempts <= 0 {
		d.WaitAttempts = 10
	}
	if d.WaitDelay <= 0 {
		d.WaitDelay = 500 * time.Millisecond
	}
	return &Service{
		assets:          d.Assets,
		trades:          d.Trades,
		curve:           d.Curve,
		fees:            d.Fees,
		guard:           d.Guard,
		assembler:       d.Assembler,
		ledger:          d.Ledger,
		payments:        d.Payments,
		protocolAddress: d.ProtocolAddress,
		waitAttempts:    d.WaitAttempts,
		waitDelay:       d.WaitDelay,
		log:             log,
	}
}

// RegisterAssetRequest describes a new launch.
type RegisterAssetRequest struct {
	Symbol      string
	Decimals    int
	Curve       asset.CurveType
	Strength    asset.Strength
	Creator     string
	CreatorBps  int64
	ProtocolBps int64
}

// RegisterAsset records a launch. The on-ledger token is created lazily on
// the first buy, not here.
func (s *Service) RegisterAsset(ctx context.Context, req RegisterAssetRequest) (asset.Asset, error) {
	const op = "trading.RegisterAsset"

	if req.Symbol == "" {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "symbol required")
	}
	if req.Decimals < 0 || req.Decimals > 18 {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "decimals out of range: %d", req.Decimals)
	}
	if !req.Curve.Valid() {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "unknown curve type %q", req.Curve)
	}
	if !req.Strength.Valid() {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "strength out of range: %d", req.Strength)
	}
	if req.Creator == "" {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "creator required")
	}
	if req.CreatorBps < 0 || req.ProtocolBps < 0 || req.CreatorBps+req.ProtocolBps > 10000 {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "fee split override out of range")
	}

	created, err := s.assets.CreateAsset(ctx, asset.Asset{
		Symbol:      req.Symbol,
		Decimals:    req.Decimals,
		Curve:       req.Curve,
		Strength:    req.Strength,
		Creator:     req.Creator,
		CreatorBps:  req.CreatorBps,
		ProtocolBps: req.ProtocolBps,
	})
	if err != nil {
		return asset.Asset{}, faults.E(faults.Unknown, op, err)
	}

	s.log.WithField("asset_id", created.ID).WithField("symbol", created.Symbol).Info("Asset registered")
	return created, nil
}

// QuoteResult is a priced trade before assembly.
type QuoteResult struct {
	AssetID         string     `json:"asset_id"`
	Side            trade.Side `json:"side"`
	BaseAmountMinor int64      `json:"base_amount_minor"`
	TokenAmount     int64      `json:"token_amount"`
	Rate            int64      `json:"rate"`
	Progress        float64    `json:"progress"`
	Phase           fees.Phase `json:"phase"`
	Fees            fees.Quote `json:"fees"`
}

// QuoteBuy prices a buy of baseAmount base-currency units.
func (s *Service) QuoteBuy(ctx context.Context, assetID string, baseAmount float64) (QuoteResult, error) {
	res, err := s.quote(ctx, assetID, trade.SideBuy, baseAmount)
	metrics.RecordQuote(string(trade.SideBuy), outcome(err))
	return res, err
}

// QuoteSell prices a sell that pays out baseAmount base-currency units,
// returning the token amount the seller must surrender.
func (s *Service) QuoteSell(ctx context.Context, assetID string, baseAmount float64) (QuoteResult, error) {
	res, err := s.quote(ctx, assetID, trade.SideSell, baseAmount)
	metrics.RecordQuote(string(trade.SideSell), outcome(err))
	return res, err
}

func (s *Service) quote(ctx context.Context, assetID string, side trade.Side, baseAmount float64) (QuoteResult, error) {
	const op = "trading.Quote"

	baseMinor, err := toMinor(baseAmount)
	if err != nil {
		return QuoteResult{}, faults.E(faults.Validation, op, err)
	}

	a, err := s.getAsset(ctx, op, assetID)
	if err != nil {
		return QuoteResult{}, err
	}

	supply, err := s.issuedSupply(ctx, a)
	if err != nil {
		return QuoteResult{}, faults.E(faults.ExternalDependency, op, err)
	}

	params := curve.Params{
		AssetID:            a.ID,
		Curve:              a.Curve,
		Strength:           a.Strength,
		CumulativeIssuance: supply,
	}

	var tokenAmount int64
	if side == trade.SideSell {
		tokenAmount = s.curve.QuoteSell(params, baseAmount)
	} else {
		tokenAmount = s.curve.QuoteBuy(params, baseAmount)
	}
	if tokenAmount <= 0 {
		return QuoteResult{}, faults.Errorf(faults.Validation, op, "amount %v yields no tokens", baseAmount)
	}

	phase := fees.PhaseFor(a, supply, s.curve.Window())
	feeQuote := s.fees.Compute(baseMinor, phase, splitOverride(a))

	return QuoteResult{
		AssetID:         a.ID,
		Side:            side,
		BaseAmountMinor: baseMinor,
		TokenAmount:     tokenAmount,
		Rate:            s.curve.Rate(params),
		Progress:        s.curve.Progress(supply),
		Phase:           phase,
		Fees:            feeQuote,
	}, nil
}

// BuildRequest describes an envelope to assemble for the counterparty.
type BuildRequest struct {
	AssetID      string
	Counterparty string
	BaseAmount   float64
	ValidUntil   uint64
}

// BuildResult carries the assembled artifact and its pricing.
type BuildResult struct {
	TradeID  string      `json:"trade_id"`
	Artifact string      `json:"artifact"`
	Quote    QuoteResult `json:"quote"`
}

// BuildBuy assembles a partially-authorized buy envelope. The treasury slot
// is pre-signed; the buyer completes the fee-payer slot and submits. The
// issuance token is registered on the ledger lazily here if this is the
// asset's first buy.
func (s *Service) BuildBuy(ctx context.Context, req BuildRequest) (BuildResult, error) {
	res, err := s.buildBuy(ctx, req)
	metrics.RecordBuild(string(trade.SideBuy), outcome(err))
	return res, err
}

func (s *Service) buildBuy(ctx context.Context, req BuildRequest) (BuildResult, error) {
	const op = "trading.BuildBuy"

	// Identity drift check comes before anything that touches funds or the
	// ledger's mutable state.
	if err := s.guard.Check(); err != nil {
		return BuildResult{}, err
	}
	if req.Counterparty == "" {
		return BuildResult{}, faults.Errorf(faults.Validation, op, "counterparty required")
	}

	a, err := s.getAsset(ctx, op, req.AssetID)
	if err != nil {
		return BuildResult{}, err
	}

	if a.TokenHash == "" {
		a, err = s.materializeToken(ctx, a)
		if err != nil {
			return BuildResult{}, err
		}
	}

	q, err := s.quote(ctx, a.ID, trade.SideBuy, req.BaseAmount)
	if err != nil {
		return BuildResult{}, err
	}

	pending, err := s.trades.CreateTrade(ctx, trade.Trade{
		AssetID:      a.ID,
		Side:         trade.SideBuy,
		BaseAmount:   q.BaseAmountMinor,
		TokenAmount:  q.TokenAmount,
		Counterparty: req.Counterparty,
		Status:       trade.StatusPending,
	})
	if err != nil {
		return BuildResult{}, faults.E(faults.Unknown, op, err)
	}

	steps := []txassembly.Step{
		{Kind: txassembly.StepEnsureAccount, To: req.Counterparty, Token: a.TokenHash},
		{Kind: txassembly.StepTransfer, From: req.Counterparty, To: s.guard.Address(), Amount: q.BaseAmountMinor - q.Fees.FeeTotal},
	}
	for _, d := range q.Fees.Disbursements(a.Creator, s.protocolAddress) {
		steps = append(steps, txassembly.Step{Kind: txassembly.StepFeeTransfer, From: req.Counterparty, To: d.Recipient, Amount: d.Amount})
	}
	steps = append(steps, txassembly.Step{Kind: txassembly.StepIssue, To: req.Counterparty, Token: a.TokenHash, Amount: q.TokenAmount})

	validUntil, err := s.envelopeValidUntil(ctx, op, req.ValidUntil)
	if err != nil {
		return BuildResult{}, err
	}

	env, err := s.assembler.Build(txassembly.Request{
		Steps:          steps,
		FeePayer:       req.Counterparty,
		Authorities:    []*keys.PrivateKey{s.guard.PrivateKey()},
		CorrelationTag: pending.ID,
		ValidUntil:     validUntil,
	})
	if err != nil {
		return BuildResult{}, err
	}

	artifact, err := env.Serialize()
	if err != nil {
		return BuildResult{}, faults.E(faults.Unknown, op, err)
	}

	s.log.WithField("asset_id", a.ID).WithField("trade_id", pending.ID).
		WithField("token_amount", q.TokenAmount).Info("Buy envelope assembled")

	return BuildResult{TradeID: pending.ID, Artifact: artifact, Quote: q}, nil
}

// BuildSell assembles a partially-authorized sell envelope. The seller
// surrenders tokens to the treasury and is paid out of the reserve, net of
// fees. The treasury slot is pre-signed; the seller completes the fee-payer
// slot.
func (s *Service) BuildSell(ctx context.Context, req BuildRequest) (BuildResult, error) {
	res, err := s.buildSell(ctx, req)
	metrics.RecordBuild(string(trade.SideSell), outcome(err))
	return res, err
}

func (s *Service) buildSell(ctx context.Context, req BuildRequest) (BuildResult, error) {
	const op = "trading.BuildSell"

	if err := s.guard.Check(); err != nil {
		return BuildResult{}, err
	}
	if req.Counterparty == "" {
		return BuildResult{}, faults.Errorf(faults.Validation, op, "counterparty required")
	}

	a, err := s.getAsset(ctx, op, req.AssetID)
	if err != nil {
		return BuildResult{}, err
	}
	if a.TokenHash == "" {
		return BuildResult{}, faults.Errorf(faults.NotReady, op, "asset %s has no issuance token yet", a.ID)
	}

	q, err := s.quote(ctx, a.ID, trade.SideSell, req.BaseAmount)
	if err != nil {
		return BuildResult{}, err
	}

	pending, err := s.trades.CreateTrade(ctx, trade.Trade{
		AssetID:      a.ID,
		Side:         trade.SideSell,
		BaseAmount:   q.BaseAmountMinor,
		TokenAmount:  q.TokenAmount,
		Counterparty: req.Counterparty,
		Status:       trade.StatusPending,
	})
	if err != nil {
		return BuildResult{}, faults.E(faults.Unknown, op, err)
	}

	steps := []txassembly.Step{
		{Kind: txassembly.StepAssetTransfer, From: req.Counterparty, To: s.guard.Address(), Token: a.TokenHash, Amount: q.TokenAmount},
		{Kind: txassembly.StepTransfer, From: s.guard.Address(), To: req.Counterparty, Amount: q.BaseAmountMinor - q.Fees.FeeTotal},
	}
	for _, d := range q.Fees.Disbursements(a.Creator, s.protocolAddress) {
		steps = append(steps, txassembly.Step{Kind: txassembly.StepFeeTransfer, From: s.guard.Address(), To: d.Recipient, Amount: d.Amount})
	}

	validUntil, err := s.envelopeValidUntil(ctx, op, req.ValidUntil)
	if err != nil {
		return BuildResult{}, err
	}

	env, err := s.assembler.Build(txassembly.Request{
		Steps:          steps,
		FeePayer:       req.Counterparty,
		Authorities:    []*keys.PrivateKey{s.guard.PrivateKey()},
		CorrelationTag: pending.ID,
		ValidUntil:     validUntil,
	})
	if err != nil {
		return BuildResult{}, err
	}

	artifact, err := env.Serialize()
	if err != nil {
		return BuildResult{}, faults.E(faults.Unknown, op, err)
	}

	s.log.WithField("asset_id", a.ID).WithField("trade_id", pending.ID).
		WithField("token_amount", q.TokenAmount).Info("Sell envelope assembled")

	return BuildResult{TradeID: pending.ID, Artifact: artifact, Quote: q}, nil
}

// ConfirmBuyRequest settles a buy that was funded by a direct base-currency
// payment to the treasury.
type ConfirmBuyRequest struct {
	AssetID          string
	Payer            string
	PaymentReference string
	BaseAmount       float64
	ValidUntil       uint64
}

// ConfirmResult reports a settlement.
type ConfirmResult struct {
	TradeID      string `json:"trade_id"`
	TxHash       string `json:"tx_hash"`
	IssuedAmount int64  `json:"issued_amount"`

	// Recorded is false when settlement succeeded but the reporting mirror
	// could not be updated. The ledger remains authoritative either way.
	Recorded bool `json:"recorded"`
}

// ConfirmBuy verifies the referenced payment, claims the reference, and
// submits a fully authorized issuance envelope. The reference is claimed
// before anything is issued so a second confirmation of the same payment
// fails on the uniqueness constraint instead of double-issuing. A failure
// before submission releases the claim so the payment can be retried.
func (s *Service) ConfirmBuy(ctx context.Context, req ConfirmBuyRequest) (ConfirmResult, error) {
	start := time.Now()
	res, err := s.confirmBuy(ctx, req)
	metrics.RecordConfirmation(outcome(err), time.Since(start))
	return res, err
}

func (s *Service) confirmBuy(ctx context.Context, req ConfirmBuyRequest) (ConfirmResult, error) {
	const op = "trading.ConfirmBuy"

	if err := s.guard.Check(); err != nil {
		return ConfirmResult{}, err
	}
	if req.Payer == "" {
		return ConfirmResult{}, faults.Errorf(faults.Validation, op, "payer required")
	}
	if req.PaymentReference == "" {
		return ConfirmResult{}, faults.Errorf(faults.Validation, op, "payment reference required")
	}

	baseMinor, err := toMinor(req.BaseAmount)
	if err != nil {
		return ConfirmResult{}, faults.E(faults.Validation, op, err)
	}

	a, err := s.getAsset(ctx, op, req.AssetID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if a.TokenHash == "" {
		return ConfirmResult{}, faults.Errorf(faults.NotReady, op, "asset %s has no issuance token yet", a.ID)
	}

	// Payment verification is the sole authorization gate and runs before
	// anything else touches the ledger.
	if err := s.payments.Verify(ctx, req.PaymentReference, req.Payer, s.guard.Address(), baseMinor); err != nil {
		return ConfirmResult{}, err
	}

	q, err := s.quote(ctx, a.ID, trade.SideBuy, req.BaseAmount)
	if err != nil {
		return ConfirmResult{}, err
	}

	// Claim the payment reference before issuing. The store's uniqueness
	// constraint makes the claim race-safe across replicas.
	claimed, err := s.trades.CreateTrade(ctx, trade.Trade{
		AssetID:          a.ID,
		Side:             trade.SideBuy,
		BaseAmount:       q.BaseAmountMinor,
		TokenAmount:      q.TokenAmount,
		Counterparty:     req.Payer,
		PaymentReference: req.PaymentReference,
		Status:           trade.StatusPending,
	})
	if err != nil {
		if errors.Is(err, storage.ErrPaymentReferenceClaimed) {
			return ConfirmResult{}, faults.Errorf(faults.Validation, op, "payment %s already settled a trade", req.PaymentReference)
		}
		return ConfirmResult{}, faults.E(faults.Unknown, op, err)
	}

	if err := s.ledger.EnsureHoldingAccount(ctx, req.Payer, a.TokenHash); err != nil {
		s.releaseClaim(ctx, claimed)
		return ConfirmResult{}, faults.E(faults.ExternalDependency, op, err)
	}

	// Settlement envelopes carry a priority hint: the payment already
	// cleared, so slow inclusion only widens the quote-to-issue gap.
	steps := []txassembly.Step{{Kind: txassembly.StepPriorityHint}}
	for _, d := range q.Fees.Disbursements(a.Creator, s.protocolAddress) {
		steps = append(steps, txassembly.Step{Kind: txassembly.StepFeeTransfer, From: s.guard.Address(), To: d.Recipient, Amount: d.Amount})
	}
	steps = append(steps,
		txassembly.Step{Kind: txassembly.StepIssue, To: req.Payer, Token: a.TokenHash, Amount: q.TokenAmount},
		txassembly.Step{Kind: txassembly.StepMemo, Data: []byte(req.PaymentReference)},
	)

	validUntil, err := s.envelopeValidUntil(ctx, op, req.ValidUntil)
	if err != nil {
		s.releaseClaim(ctx, claimed)
		return ConfirmResult{}, err
	}

	env, err := s.assembler.Build(txassembly.Request{
		Steps:          steps,
		FeePayer:       s.guard.Address(),
		Authorities:    []*keys.PrivateKey{s.guard.PrivateKey()},
		CorrelationTag: claimed.ID,
		ValidUntil:     validUntil,
	})
	if err != nil {
		s.releaseClaim(ctx, claimed)
		return ConfirmResult{}, err
	}
	if err := s.signFeePayer(env); err != nil {
		s.releaseClaim(ctx, claimed)
		return ConfirmResult{}, faults.E(faults.Unknown, op, err)
	}

	artifact, err := env.Serialize()
	if err != nil {
		s.releaseClaim(ctx, claimed)
		return ConfirmResult{}, faults.E(faults.Unknown, op, err)
	}

	// Past this point the envelope may have reached the ledger even when the
	// submit call errors, so the claim stays and the trade is only marked
	// failed. Releasing here could double-issue on an ambiguous failure.
	txHash, err := s.ledger.SubmitEnvelope(ctx, artifact)
	if err != nil {
		s.failTrade(ctx, claimed)
		return ConfirmResult{}, faults.E(faults.ExternalDependency, op, err)
	}

	// Settlement is done on the ledger. Everything below is reporting; a
	// failure here is logged, not surfaced as a trade failure.
	recorded := true

	claimed.Status = trade.StatusSettled
	claimed.SettlementTx = txHash
	if _, err := s.trades.UpdateTrade(ctx, claimed); err != nil {
		recorded = false
		s.log.WithError(err).WithField("trade_id", claimed.ID).Warn("Settled trade record not updated")
	}
	if err := s.assets.RecordIssuance(ctx, a.ID, q.TokenAmount); err != nil {
		recorded = false
		s.log.WithError(err).WithField("asset_id", a.ID).Warn("Issuance mirror not updated")
	}

	supply, err := s.ledger.TokenTotalSupply(ctx, a.TokenHash)
	if err != nil {
		s.log.WithError(err).WithField("asset_id", a.ID).Warn("Post-settlement supply check failed")
	} else if supply >= s.curve.Window() && !a.Migrated {
		if err := s.assets.MarkMigrated(ctx, a.ID); err != nil {
			recorded = false
			s.log.WithError(err).WithField("asset_id", a.ID).Warn("Migration flag not recorded")
		} else {
			s.log.WithField("asset_id", a.ID).WithField("supply", supply).Info("Asset migrated off the curve")
		}
	}

	s.log.WithField("trade_id", claimed.ID).WithField("tx", txHash).
		WithField("issued", q.TokenAmount).Info("Buy settled")

	return ConfirmResult{
		TradeID:      claimed.ID,
		TxHash:       txHash,
		IssuedAmount: q.TokenAmount,
		Recorded:     recorded,
	}, nil
}

// GetAsset returns one launched asset.
func (s *Service) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	return s.getAsset(ctx, "trading.GetAsset", id)
}

// ListAssets returns every launched asset.
func (s *Service) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	out, err := s.assets.ListAssets(ctx)
	if err != nil {
		return nil, faults.E(faults.Unknown, "trading.ListAssets", err)
	}
	return out, nil
}

// ListTrades returns the recorded executions for an asset.
func (s *Service) ListTrades(ctx context.Context, assetID string) ([]trade.Trade, error) {
	out, err := s.trades.ListTradesByAsset(ctx, assetID)
	if err != nil {
		return nil, faults.E(faults.Unknown, "trading.ListTrades", err)
	}
	return out, nil
}

// materializeToken registers the issuance token for an asset's first buy,
// waits for it to become visible, and records the hash. A token that never
// becomes visible leaves the asset untouched and the buy not ready.
func (s *Service) materializeToken(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	const op = "trading.materializeToken"

	hash, err := s.ledger.RegisterToken(ctx, a.Symbol, a.Decimals, s.guard.Address())
	if err != nil {
		return asset.Asset{}, faults.E(faults.ExternalDependency, op, err)
	}
	if err := s.ledger.WaitForToken(ctx, hash, s.waitAttempts, s.waitDelay); err != nil {
		return asset.Asset{}, faults.E(faults.NotReady, op, err)
	}
	if err := s.assets.SetTokenHash(ctx, a.ID, hash); err != nil {
		return asset.Asset{}, faults.E(faults.Unknown, op, err)
	}

	s.log.WithField("asset_id", a.ID).WithField("token", hash).Info("Issuance token registered")

	a.TokenHash = hash
	return a, nil
}

// issuedSupply returns the authoritative issuance counter. Pricing reads
// the ledger, never the stored mirror; an asset with no token yet has
// issued nothing.
func (s *Service) issuedSupply(ctx context.Context, a asset.Asset) (int64, error) {
	if a.TokenHash == "" {
		return 0, nil
	}
	return s.ledger.TokenTotalSupply(ctx, a.TokenHash)
}

// signFeePayer completes the fee-payer slot with the treasury key. Used for
// settlement envelopes the engine submits itself.
func (s *Service) signFeePayer(env *txassembly.Envelope) error {
	digest, err := env.Digest()
	if err != nil {
		return err
	}
	priv := s.guard.PrivateKey()
	pub := priv.PublicKey()
	for i := range env.Signers {
		if env.Signers[i].Role == txassembly.RoleFeePayer {
			env.Signers[i].PublicKey = hex.EncodeToString(pub.Bytes())
			env.Signers[i].Signature = base64.StdEncoding.EncodeToString(priv.Sign(digest))
			return nil
		}
	}
	return fmt.Errorf("envelope has no fee-payer slot")
}

func (s *Service) failTrade(ctx context.Context, t trade.Trade) {
	t.Status = trade.StatusFailed
	if _, err := s.trades.UpdateTrade(ctx, t); err != nil {
		s.log.WithError(err).WithField("trade_id", t.ID).Warn("Trade not marked failed")
	}
}

// releaseClaim frees a claimed payment reference after a failure that
// provably submitted nothing. The payment stays verified on the ledger and
// can settle through a retried confirmation.
func (s *Service) releaseClaim(ctx context.Context, t trade.Trade) {
	if err := s.trades.ReleasePaymentClaim(ctx, t.ID); err != nil {
		s.log.WithError(err).WithField("trade_id", t.ID).Warn("Payment claim not released")
	}
}

// envelopeValidUntil resolves the inclusion deadline, reading the current
// ledger height when the caller did not pin one.
func (s *Service) envelopeValidUntil(ctx context.Context, op string, requested uint64) (uint64, error) {
	if requested > 0 {
		return requested, nil
	}
	height, err := s.ledger.GetBlockCount(ctx)
	if err != nil {
		return 0, faults.E(faults.ExternalDependency, op, err)
	}
	return height + envelopeValidityBlocks, nil
}

func (s *Service) getAsset(ctx context.Context, op, id string) (asset.Asset, error) {
	if id == "" {
		return asset.Asset{}, faults.Errorf(faults.Validation, op, "asset id required")
	}
	a, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return asset.Asset{}, faults.Errorf(faults.Validation, op, "unknown asset %s", id)
		}
		return asset.Asset{}, faults.E(faults.Unknown, op, err)
	}
	return a, nil
}

func splitOverride(a asset.Asset) *fees.Split {
	if a.CreatorBps+a.ProtocolBps <= 0 {
		return nil
	}
	return &fees.Split{CreatorBps: a.CreatorBps, ProtocolBps: a.ProtocolBps}
}

// toMinor converts a base-currency amount to minor units.
func toMinor(baseAmount float64) (int64, error) {
	if math.IsNaN(baseAmount) || math.IsInf(baseAmount, 0) || baseAmount <= 0 {
		return 0, fmt.Errorf("invalid base amount %v", baseAmount)
	}
	minor := int64(math.Round(baseAmount * baseMinorPerUnit))
	if minor <= 0 {
		return 0, fmt.Errorf("base amount %v below minor-unit resolution", baseAmount)
	}
	return minor, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
