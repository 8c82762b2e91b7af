package marketmodel

import (
	"main/internal/schema"
)

// Config controls fair value and volatility estimation.
type Config struct {
	// WindowSize is the number of most recent fair-value deltas kept for
	// the volatility estimate.
	WindowSize int `json:"windowSize"`
	// DefaultVolBps is used until the window holds WindowSize samples.
	DefaultVolBps int64 `json:"defaultVolBps"`
}

// FairValue is the model output for one tick. Stale marks a tick where no
// component price was available; callers must not quote on a stale value.
type FairValue struct {
	Price   schema.Price
	VolBps  int64
	TsEvent int64
	Stale   bool
}

// Model computes the basket's synthetic fair value and a rolling
// volatility estimate. It owns the FairValue; consumers read the returned
// copy and never mutate model state.
type Model struct {
	basket *schema.Basket
	cfg    Config

	last    schema.Price
	hasLast bool

	deltas []int64
	next   int
	count  int
}

// New creates a model for the given basket.
func New(basket *schema.Basket, cfg Config) *Model {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 32
	}
	if cfg.DefaultVolBps < 0 {
		cfg.DefaultVolBps = 0
	}
	return &Model{
		basket: basket,
		cfg:    cfg,
		deltas: make([]int64, cfg.WindowSize),
	}
}

// Update consumes a snapshot and returns the new fair value estimate.
// When no component price is usable the result is marked stale and the
// volatility window is left untouched.
func (m *Model) Update(snap schema.MarketSnapshot) FairValue {
	var weighted, weightSum int64
	for _, q := range snap.Components {
		comp, ok := m.basket.Component(q.SymbolID)
		if !ok {
			continue
		}
		mid, ok := componentMid(q)
		if !ok {
			continue
		}
		weighted += comp.WeightBps * int64(mid)
		weightSum += comp.WeightBps
	}
	if weightSum == 0 {
		return FairValue{TsEvent: snap.TsEvent, Stale: true, VolBps: m.vol()}
	}

	// Renormalize by live weight so a missing component does not drag the
	// fair value toward zero.
	fv := schema.Price(weighted / weightSum)
	m.observe(fv)
	return FairValue{Price: fv, VolBps: m.vol(), TsEvent: snap.TsEvent}
}

// componentMid returns the mid price for one component quote. Both book
// sides are required for a mid; otherwise the last trade is used.
func componentMid(q schema.ComponentQuote) (schema.Price, bool) {
	if q.BidPrice > 0 && q.AskPrice > 0 {
		return (q.BidPrice + q.AskPrice) / 2, true
	}
	if q.LastPrice > 0 {
		return q.LastPrice, true
	}
	return 0, false
}

func (m *Model) observe(fv schema.Price) {
	if m.hasLast && m.last > 0 {
		deltaBps := (int64(fv) - int64(m.last)) * 10_000 / int64(m.last)
		m.deltas[m.next] = deltaBps
		m.next = (m.next + 1) % len(m.deltas)
		if m.count < len(m.deltas) {
			m.count++
		}
	}
	m.last = fv
	m.hasLast = true
}

// vol returns a standard-deviation-like scalar over the delta window, in
// basis points. Falls back to the configured default until the window is
// full.
func (m *Model) vol() int64 {
	if m.count < len(m.deltas) {
		return m.cfg.DefaultVolBps
	}
	var mean int64
	for i := 0; i < m.count; i++ {
		mean += m.deltas[i]
	}
	mean /= int64(m.count)

	var sq int64
	for i := 0; i < m.count; i++ {
		d := m.deltas[i] - mean
		sq += d * d
	}
	return isqrt(sq / int64(m.count))
}

func isqrt(v int64) int64 {
	if v <= 0 {
		return 0
	}
	x := v
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + v/x) / 2
	}
	return x
}
