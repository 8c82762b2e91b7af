package mdg

import (
	"testing"
	"time"

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
	}{{"ABC", 5000}, {"DEF", 3000}, {"GHI", 2000}} {
		if _, err := b.AddComponent(c.name, c.weight); err != nil {
			t.Fatalf("add component, err: %v", err)
		}
	}
	return b
}

func TestGeneratorValidation(t *testing.T) {
	empty, err := schema.NewBasket("XYZ", 5, schema.ScaleSpec{})
	if err != nil {
		t.Fatalf("new basket, err: %v", err)
	}
	if _, err := NewGenerator(empty, Config{BasePrice: 10_000}); err == nil {
		t.Fatalf("expected error for empty basket")
	}
	if _, err := NewGenerator(testBasket(t), Config{}); err == nil {
		t.Fatalf("expected error for zero base price")
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	cfg := Config{Seed: 42, BasePrice: 10_000, StepBps: 3, Spread: 5, BaseSize: 100}
	a, err := NewGenerator(testBasket(t), cfg)
	if err != nil {
		t.Fatalf("new generator, err: %v", err)
	}
	b, err := NewGenerator(testBasket(t), cfg)
	if err != nil {
		t.Fatalf("new generator, err: %v", err)
	}

	now := time.Unix(10, 0)
	for i := 0; i < 10; i++ {
		now = now.Add(time.Millisecond)
		snapA, snapB := a.Next(now), b.Next(now)
		for j := range snapA.Components {
			if snapA.Components[j] != snapB.Components[j] {
				t.Fatalf("tick %d: walks diverge at component %d", i, j)
			}
		}
	}
}

func TestGeneratorQuoteShape(t *testing.T) {
	g, err := NewGenerator(testBasket(t), Config{Seed: 7, BasePrice: 10_000, StepBps: 3, Spread: 5, BaseSize: 100})
	if err != nil {
		t.Fatalf("new generator, err: %v", err)
	}

	now := time.Unix(10, 0)
	for i := 0; i < 50; i++ {
		now = now.Add(time.Millisecond)
		snap := g.Next(now)
		if snap.TsEvent != now.UnixNano() {
			t.Fatalf("tick %d: ts = %d, want %d", i, snap.TsEvent, now.UnixNano())
		}
		if len(snap.Components) != 3 {
			t.Fatalf("tick %d: components = %d, want 3", i, len(snap.Components))
		}
		for _, q := range snap.Components {
			if q.BidPrice <= 0 || q.BidPrice >= q.AskPrice {
				t.Fatalf("tick %d: bad book %d/%d", i, q.BidPrice, q.AskPrice)
			}
			if q.LastPrice != (q.BidPrice+q.AskPrice)/2 {
				t.Fatalf("tick %d: last %d not at mid", i, q.LastPrice)
			}
			if q.BidSize != 100 || q.AskSize != 100 {
				t.Fatalf("tick %d: sizes %d/%d", i, q.BidSize, q.AskSize)
			}
		}
	}
}
