package schema

import (
	"testing"
)

func TestBasketValidation(t *testing.T) {
	if _, err := NewBasket("", 5, ScaleSpec{}); err == nil {
		t.Fatalf("expected error for empty etf name")
	}
	if _, err := NewBasket("XYZ", 0, ScaleSpec{}); err == nil {
		t.Fatalf("expected error for zero tick size")
	}

	b, err := NewBasket("XYZ", 5, ScaleSpec{PriceScale: 2})
	if err != nil {
		t.Fatalf("new basket, err: %v", err)
	}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for empty basket")
	}
	if _, err := b.AddComponent("XYZ", 5_000); err == nil {
		t.Fatalf("expected error for component named after the etf")
	}
	if _, err := b.AddComponent("ABC", 0); err == nil {
		t.Fatalf("expected error for zero weight")
	}

	if _, err := b.AddComponent("ABC", 6_000); err != nil {
		t.Fatalf("add component, err: %v", err)
	}
	if _, err := b.AddComponent("ABC", 1_000); err == nil {
		t.Fatalf("expected error for duplicate component")
	}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error for weights under %d bps", WeightDenominator)
	}
	if _, err := b.AddComponent("DEF", 4_000); err != nil {
		t.Fatalf("add component, err: %v", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate, err: %v", err)
	}
}

func TestBasketLookups(t *testing.T) {
	b, err := NewBasket("XYZ", 5, ScaleSpec{PriceScale: 2})
	if err != nil {
		t.Fatalf("new basket, err: %v", err)
	}
	abc, err := b.AddComponent("ABC", 6_000)
	if err != nil {
		t.Fatalf("add component, err: %v", err)
	}
	def, err := b.AddComponent("DEF", 4_000)
	if err != nil {
		t.Fatalf("add component, err: %v", err)
	}

	if id, ok := b.ComponentIDByName("DEF"); !ok || id != def {
		t.Fatalf("lookup DEF = %d, %v", id, ok)
	}
	if _, ok := b.ComponentIDByName("GHI"); ok {
		t.Fatalf("lookup of unknown component succeeded")
	}
	c, ok := b.Component(abc)
	if !ok || c.Name != "ABC" || c.WeightBps != 6_000 {
		t.Fatalf("component = %+v, %v", c, ok)
	}
	if _, ok := b.Component(9); ok {
		t.Fatalf("out-of-range id resolved")
	}
}

func TestTargetLadderExposure(t *testing.T) {
	ladder := TargetLadder{
		Bids: []QuoteLevel{
			{Side: OrderSideBid, Price: 9_990, Size: 10},
			{Side: OrderSideBid, Price: 9_985, Size: 15},
		},
		Asks: []QuoteLevel{
			{Side: OrderSideAsk, Price: 10_010, Size: 20},
		},
	}
	if ladder.Empty() {
		t.Fatalf("ladder reported empty")
	}
	if ladder.Levels() != 3 {
		t.Fatalf("levels = %d, want 3", ladder.Levels())
	}
	if ladder.BidExposure() != 25 || ladder.AskExposure() != 20 {
		t.Fatalf("exposure = %d/%d, want 25/20", ladder.BidExposure(), ladder.AskExposure())
	}
	if !(TargetLadder{}).Empty() {
		t.Fatalf("zero ladder not empty")
	}
}
