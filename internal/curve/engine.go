// Package curve implements bonding-curve exchange-rate and quote
// computation. Everything here is pure: the same inputs always produce the
// same quote, including the randomized curve.
package curve

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/neopad/engine/internal/domain/asset"
)

// BaseRate is the number of token minor units issued per 1.0 base unit at
// zero progress.
const BaseRate int64 = 1_000_000

// Rates clamp to [2%, 300%] of BaseRate.
const (
	MinRate int64 = BaseRate * 2 / 100
	MaxRate int64 = BaseRate * 3
)

// Params identifies the pricing state of an asset at quote time.
// CumulativeIssuance must come from the authoritative on-ledger counter.
type Params struct {
	AssetID            string
	Curve              asset.CurveType
	Strength           asset.Strength
	CumulativeIssuance int64
}

// Engine computes exchange rates and quotes. It holds only read-only
// configuration and is safe for concurrent use.
type Engine struct {
	window        int64
	sellSpreadBps int64
}

// New creates a pricing engine. window is the issuance window in token
// minor units; sellSpreadBps is charged against the seller on sell quotes.
func New(window, sellSpreadBps int64) *Engine {
	if window <= 0 {
		window = 1
	}
	return &Engine{window: window, sellSpreadBps: sellSpreadBps}
}

// Window returns the issuance window the engine prices against.
func (e *Engine) Window() int64 { return e.window }

// Progress maps cumulative issuance onto [0, 1].
func (e *Engine) Progress(cumulativeIssuance int64) float64 {
	if cumulativeIssuance <= 0 {
		return 0
	}
	p := float64(cumulativeIssuance) / float64(e.window)
	if p > 1 {
		return 1
	}
	return p
}

// Rate returns the current exchange rate in token minor units per base unit,
// clamped to [MinRate, MaxRate].
func (e *Engine) Rate(p Params) int64 {
	progress := e.Progress(p.CumulativeIssuance)
	strength := p.Strength
	if !strength.Valid() {
		strength = 2
	}

	var rate float64
	switch p.Curve {
	case asset.CurveExponential:
		rate = float64(BaseRate) * (1 - math.Pow(progress, exponent(strength)))
	case asset.CurveRandomized:
		base := float64(BaseRate) * (1 - progress*steepness(strength))
		rng := newSeededRand(p.AssetID, p.CumulativeIssuance, strength)
		rate = base * volatility(rng) * eventMultiplier(rng)
	default: // linear
		rate = float64(BaseRate) * (1 - progress*steepness(strength))
	}

	return clampRate(int64(math.Floor(rate)))
}

// QuoteBuy returns the token minor units issued for baseAmount base units.
// Non-finite or non-positive amounts quote zero; quotes are never negative.
func (e *Engine) QuoteBuy(p Params, baseAmount float64) int64 {
	if !validAmount(baseAmount) {
		return 0
	}
	quoted := int64(math.Floor(baseAmount * float64(e.Rate(p))))
	if quoted < 0 {
		return 0
	}
	return quoted
}

// QuoteSell returns the token minor units a seller must surrender to receive
// baseAmount base units. It prices at the same progress as QuoteBuy with the
// configured spread applied against the seller, so the round trip can never
// pay out more than was paid in.
func (e *Engine) QuoteSell(p Params, baseAmount float64) int64 {
	if !validAmount(baseAmount) {
		return 0
	}
	raw := baseAmount * float64(e.Rate(p))
	required := int64(math.Floor(raw * float64(10000+e.sellSpreadBps) / 10000))
	if required < 0 {
		return 0
	}
	return required
}

func validAmount(a float64) bool {
	return !math.IsNaN(a) && !math.IsInf(a, 0) && a > 0
}

func clampRate(r int64) int64 {
	if r < MinRate {
		return MinRate
	}
	if r > MaxRate {
		return MaxRate
	}
	return r
}

// steepness is the linear decay factor per strength level.
func steepness(s asset.Strength) float64 {
	switch s {
	case 1:
		return 0.25
	case 3:
		return 0.75
	default:
		return 0.50
	}
}

// exponent shapes the exponential curve per strength level.
func exponent(s asset.Strength) float64 {
	switch s {
	case 1:
		return 0.60
	case 3:
		return 1.80
	default:
		return 1.00
	}
}

// newSeededRand derives a deterministic PRNG from the pricing state so
// repeated quotes at identical state never flicker.
func newSeededRand(assetID string, cumulativeIssuance int64, strength asset.Strength) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(assetID))
	var buf [9]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(cumulativeIssuance) >> (8 * i))
	}
	buf[8] = byte(strength)
	h.Write(buf[:])
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// volatility draws a bounded multiplier in [0.75, 1.25].
func volatility(rng *rand.Rand) float64 {
	return 0.75 + rng.Float64()*0.5
}

// eventMultiplier injects rare bounded jumps: ~1.5% surge, ~1.5% crash.
func eventMultiplier(rng *rand.Rand) float64 {
	roll := rng.Float64()
	switch {
	case roll < 0.015:
		return 2.5
	case roll > 0.985:
		return 0.4
	default:
		return 1.0
	}
}
