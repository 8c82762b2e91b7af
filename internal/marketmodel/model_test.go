package marketmodel

import (
	"testing"

	"main/internal/schema"
)

func testBasket(t *testing.T) *schema.Basket {
	t.Helper()
	b, err := schema.NewBasket("XYZ", 5, schema.ScaleSpec{PriceScale: 2})
	if err != nil {
		t.Fatalf("new basket, err: %v", err)
	}
	for _, c := range []struct {
		name   string
		weight int64
	}{
		{"ABC", 5000},
		{"DEF", 3000},
		{"GHI", 2000},
	} {
		if _, err := b.AddComponent(c.name, c.weight); err != nil {
			t.Fatalf("add component %s, err: %v", c.name, err)
		}
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate basket, err: %v", err)
	}
	return b
}

func twoSided(id schema.SymbolID, mid schema.Price) schema.ComponentQuote {
	return schema.ComponentQuote{
		SymbolID: id,
		BidPrice: mid - 5,
		BidSize:  100,
		AskPrice: mid + 5,
		AskSize:  100,
	}
}

func TestUpdateWeightedFairValue(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 8})

	fv := m.Update(schema.MarketSnapshot{
		TsEvent: 42,
		Components: []schema.ComponentQuote{
			twoSided(1, 10_000),
			twoSided(2, 20_000),
			twoSided(3, 30_000),
		},
	})
	if fv.Stale {
		t.Fatalf("unexpected stale tick")
	}
	// 0.5*10000 + 0.3*20000 + 0.2*30000
	if fv.Price != 17_000 {
		t.Fatalf("fair value = %d, want 17000", fv.Price)
	}
	if fv.TsEvent != 42 {
		t.Fatalf("ts = %d, want 42", fv.TsEvent)
	}
}

func TestUpdateRenormalizesMissingComponent(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 8})

	// Third component has no usable price; the remaining weights are
	// renormalized instead of dragging the fair value toward zero.
	fv := m.Update(schema.MarketSnapshot{
		Components: []schema.ComponentQuote{
			twoSided(1, 10_000),
			twoSided(2, 20_000),
			{SymbolID: 3},
		},
	})
	if fv.Stale {
		t.Fatalf("unexpected stale tick")
	}
	if want := schema.Price((5000*10_000 + 3000*20_000) / 8000); fv.Price != want {
		t.Fatalf("fair value = %d, want %d", fv.Price, want)
	}
}

func TestUpdateLastTradeFallback(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 8})

	// One-sided book: the mid is unusable, the last trade is not.
	fv := m.Update(schema.MarketSnapshot{
		Components: []schema.ComponentQuote{
			{SymbolID: 1, BidPrice: 9_990, LastPrice: 10_000},
			twoSided(2, 10_000),
			twoSided(3, 10_000),
		},
	})
	if fv.Stale || fv.Price != 10_000 {
		t.Fatalf("fair value = %d (stale=%v), want 10000", fv.Price, fv.Stale)
	}
}

func TestUpdateStaleWhenNoComponentUsable(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 8, DefaultVolBps: 7})

	fv := m.Update(schema.MarketSnapshot{
		TsEvent:    9,
		Components: []schema.ComponentQuote{{SymbolID: 1}, {SymbolID: 2}, {SymbolID: 3}},
	})
	if !fv.Stale {
		t.Fatalf("expected stale tick")
	}
	if fv.Price != 0 || fv.VolBps != 7 || fv.TsEvent != 9 {
		t.Fatalf("stale result = %+v", fv)
	}

	// A usable tick after a stale one recovers immediately.
	fv = m.Update(schema.MarketSnapshot{Components: []schema.ComponentQuote{twoSided(1, 10_000)}})
	if fv.Stale || fv.Price != 10_000 {
		t.Fatalf("post-stale fair value = %+v", fv)
	}
}

func TestVolDefaultUntilWindowFull(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 4, DefaultVolBps: 7})

	snap := schema.MarketSnapshot{Components: []schema.ComponentQuote{
		twoSided(1, 10_000), twoSided(2, 10_000), twoSided(3, 10_000),
	}}
	// The first update has no prior value, so four more are needed to
	// fill the delta window.
	for i := 0; i < 4; i++ {
		if fv := m.Update(snap); fv.VolBps != 7 {
			t.Fatalf("update %d: vol = %d, want default 7", i, fv.VolBps)
		}
	}
	if fv := m.Update(snap); fv.VolBps != 0 {
		t.Fatalf("full window on constant prices: vol = %d, want 0", fv.VolBps)
	}
}

func TestVolReflectsMovement(t *testing.T) {
	m := New(testBasket(t), Config{WindowSize: 2, DefaultVolBps: 7})

	mids := []schema.Price{10_000, 10_100, 10_000, 10_100}
	var last FairValue
	for _, mid := range mids {
		last = m.Update(schema.MarketSnapshot{Components: []schema.ComponentQuote{
			twoSided(1, mid), twoSided(2, mid), twoSided(3, mid),
		}})
	}
	if last.VolBps <= 0 {
		t.Fatalf("vol = %d, want > 0 on a moving fair value", last.VolBps)
	}
}
