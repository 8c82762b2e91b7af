package mdg

import (
	"fmt"
	"math/rand"
	"time"

	"main/internal/schema"
)

// Config controls the synthetic component walk.
type Config struct {
	Seed int64 `json:"seed"`
	// BasePrice seeds every component mid.
	BasePrice schema.Price `json:"basePrice"`
	// StepBps bounds the per-tick random move of each component mid.
	StepBps int64 `json:"stepBps"`
	// Spread is the synthetic half-spread applied around each mid.
	Spread schema.Price `json:"spread"`
	// BaseSize is the displayed size per book side.
	BaseSize schema.Quantity `json:"baseSize"`
}

// Generator produces synthetic market snapshots for a basket, one random
// walk per component. It drives the simulated exchange in paper mode and
// tests.
type Generator struct {
	basket *schema.Basket
	cfg    Config
	rng    *rand.Rand
	mids   []int64
}

// NewGenerator creates a generator for all components in the basket.
func NewGenerator(basket *schema.Basket, cfg Config) (*Generator, error) {
	if basket == nil || basket.ComponentCount() == 0 {
		return nil, fmt.Errorf("basket has no components")
	}
	if cfg.BasePrice <= 0 {
		return nil, fmt.Errorf("base price must be > 0")
	}
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 1
	}
	if cfg.Spread < 0 {
		cfg.Spread = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	mids := make([]int64, basket.ComponentCount())
	for i := range mids {
		mids[i] = int64(cfg.BasePrice)
	}
	return &Generator{
		basket: basket,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		mids:   mids,
	}, nil
}

// Next walks every component and returns the snapshot for time now.
func (g *Generator) Next(now time.Time) schema.MarketSnapshot {
	components := g.basket.Components()
	snap := schema.MarketSnapshot{
		TsEvent:    now.UnixNano(),
		Components: make([]schema.ComponentQuote, 0, len(components)),
	}
	for i, c := range components {
		if g.cfg.StepBps > 0 {
			step := g.rng.Int63n(2*g.cfg.StepBps+1) - g.cfg.StepBps
			g.mids[i] += g.mids[i] * step / 10_000
			if g.mids[i] < int64(g.cfg.Spread)+1 {
				g.mids[i] = int64(g.cfg.Spread) + 1
			}
		}
		mid := schema.Price(g.mids[i])
		snap.Components = append(snap.Components, schema.ComponentQuote{
			SymbolID:  c.ID,
			BidPrice:  mid - g.cfg.Spread,
			BidSize:   g.cfg.BaseSize,
			AskPrice:  mid + g.cfg.Spread,
			AskSize:   g.cfg.BaseSize,
			LastPrice: mid,
		})
	}
	return snap
}
