package quote

import (
	"main/internal/schema"
)

// Config defines the ladder geometry for the quoted instrument.
type Config struct {
	Levels int `json:"levels"`
	// BaseSpread is the half-spread at level 0, in price units.
	BaseSpread schema.Price `json:"baseSpread"`
	// LevelIncrement is added to the half-spread per level, in price units.
	LevelIncrement schema.Price `json:"levelIncrement"`
	// VolSpreadGainBps widens the half-spread by gain*volBps/10000 bps of
	// itself; zero disables volatility widening.
	VolSpreadGainBps int64 `json:"volSpreadGainBps"`
	// BaseSize is the level-0 quote size.
	BaseSize schema.Quantity `json:"baseSize"`
	// SizeMultiplierBps scales the size per level (10000 = constant).
	SizeMultiplierBps int64 `json:"sizeMultiplierBps"`
	// MaxPerLevel caps any single level's size; zero means uncapped.
	MaxPerLevel schema.Quantity `json:"maxPerLevel"`
	// MaxAggregate caps the summed size per side; zero means uncapped.
	MaxAggregate schema.Quantity `json:"maxAggregate"`
}

// Context carries the per-cycle inputs for ladder construction. Scale
// fields are multipliers in basis points (10000 = unchanged) driven by
// the risk drawdown controls.
type Context struct {
	FairValue      schema.Price
	VolBps         int64
	Levels         int
	SpreadScaleBps int64
	SizeScaleBps   int64
}

// Engine builds target ladders around an adjusted fair value.
type Engine struct {
	cfg  Config
	tick schema.Price
}

// NewEngine creates a quote engine for the given tick size.
func NewEngine(cfg Config, tick schema.Price) *Engine {
	if cfg.Levels <= 0 {
		cfg.Levels = 1
	}
	if cfg.SizeMultiplierBps <= 0 {
		cfg.SizeMultiplierBps = 10_000
	}
	if tick <= 0 {
		tick = 1
	}
	return &Engine{cfg: cfg, tick: tick}
}

// BuildLadder computes the desired quoting state for one cycle. The
// returned ladder never crosses itself: when spread math would produce
// best bid >= best ask, the narrower side is widened until it holds.
func (e *Engine) BuildLadder(ctx Context) schema.TargetLadder {
	if ctx.FairValue <= 0 {
		return schema.TargetLadder{}
	}
	levels := ctx.Levels
	if levels <= 0 {
		levels = e.cfg.Levels
	}
	spreadScale := ctx.SpreadScaleBps
	if spreadScale <= 0 {
		spreadScale = 10_000
	}
	sizeScale := ctx.SizeScaleBps
	if sizeScale < 0 {
		sizeScale = 0
	}
	if ctx.SizeScaleBps == 0 {
		sizeScale = 10_000
	}

	fv := int64(ctx.FairValue)
	volScale := 10_000 + ctx.VolBps*e.cfg.VolSpreadGainBps/10_000
	size := int64(e.cfg.BaseSize)

	var bids, asks []schema.QuoteLevel
	for i := 0; i < levels; i++ {
		half := int64(e.cfg.BaseSpread) + int64(i)*int64(e.cfg.LevelIncrement)
		half = half * volScale / 10_000
		half = half * spreadScale / 10_000
		if half < 0 {
			half = 0
		}

		qty := schema.Quantity(size * sizeScale / 10_000)
		if e.cfg.MaxPerLevel > 0 && qty > e.cfg.MaxPerLevel {
			qty = e.cfg.MaxPerLevel
		}
		size = size * e.cfg.SizeMultiplierBps / 10_000

		if qty <= 0 {
			continue
		}

		bidPx := roundDown(fv-half, int64(e.tick))
		askPx := roundUp(fv+half, int64(e.tick))
		if bidPx > 0 {
			bids = appendLevel(bids, schema.QuoteLevel{
				Side: schema.OrderSideBid, Level: uint16(i), Price: schema.Price(bidPx), Size: qty,
			}, e.cfg.MaxPerLevel)
		}
		asks = appendLevel(asks, schema.QuoteLevel{
			Side: schema.OrderSideAsk, Level: uint16(i), Price: schema.Price(askPx), Size: qty,
		}, e.cfg.MaxPerLevel)
	}

	bids = capAggregate(bids, e.cfg.MaxAggregate)
	asks = capAggregate(asks, e.cfg.MaxAggregate)
	bids, asks = uncross(bids, asks, ctx.FairValue, e.tick)

	return schema.TargetLadder{Bids: bids, Asks: asks}
}

// appendLevel adds a level, merging into the previous one when tick
// rounding produced the same price. Merged sizes still honor the
// per-level cap.
func appendLevel(side []schema.QuoteLevel, lvl schema.QuoteLevel, maxPerLevel schema.Quantity) []schema.QuoteLevel {
	if n := len(side); n > 0 && side[n-1].Price == lvl.Price {
		merged := side[n-1].Size + lvl.Size
		if maxPerLevel > 0 && merged > maxPerLevel {
			merged = maxPerLevel
		}
		side[n-1].Size = merged
		return side
	}
	return append(side, lvl)
}

// capAggregate truncates level sizes so the side total stays within the
// aggregate ceiling, dropping levels that truncate to zero.
func capAggregate(side []schema.QuoteLevel, maxAggregate schema.Quantity) []schema.QuoteLevel {
	if maxAggregate <= 0 {
		return side
	}
	var sum schema.Quantity
	out := side[:0]
	for _, lvl := range side {
		room := maxAggregate - sum
		if room <= 0 {
			break
		}
		if lvl.Size > room {
			lvl.Size = room
		}
		sum += lvl.Size
		out = append(out, lvl)
	}
	return out
}

// uncross widens the side nearer to fair value until best bid < best ask.
func uncross(bids, asks []schema.QuoteLevel, fv, tick schema.Price) ([]schema.QuoteLevel, []schema.QuoteLevel) {
	if len(bids) == 0 || len(asks) == 0 {
		return bids, asks
	}
	bestBid, bestAsk := bids[0].Price, asks[0].Price
	if bestBid < bestAsk {
		return bids, asks
	}
	gap := bestBid - bestAsk + tick
	bidDist := fv - bestBid
	askDist := bestAsk - fv
	if bidDist < askDist {
		for i := range bids {
			bids[i].Price -= gap
		}
		out := bids[:0]
		for _, lvl := range bids {
			if lvl.Price > 0 {
				out = append(out, lvl)
			}
		}
		return out, asks
	}
	for i := range asks {
		asks[i].Price += gap
	}
	return bids, asks
}

func roundDown(v, tick int64) int64 {
	if v <= 0 {
		return 0
	}
	return v - v%tick
}

func roundUp(v, tick int64) int64 {
	if v <= 0 {
		return tick
	}
	if rem := v % tick; rem != 0 {
		return v + tick - rem
	}
	return v
}
