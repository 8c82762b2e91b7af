package risk

import (
	"testing"
	"time"

	"main/internal/schema"
)

func testConfig() Config {
	return Config{
		LongCap:            50,
		ShortCap:           50,
		SkewSensitivityBps: 50,
		RateQuota:          10,
		RateWindow:         time.Second,
		DrawdownSoftBps:    100,
		DrawdownHardBps:    300,
	}
}

func buy(qty schema.Quantity, price schema.Price) schema.Fill {
	return schema.Fill{OrderID: 1, Side: schema.OrderSideBid, Price: price, Qty: qty}
}

func sell(qty schema.Quantity, price schema.Price) schema.Fill {
	return schema.Fill{OrderID: 2, Side: schema.OrderSideAsk, Price: price, Qty: qty}
}

func TestOnFillVwapAndRealized(t *testing.T) {
	e := NewEngine(testConfig())

	e.OnFill(buy(10, 10_000))
	e.OnFill(buy(10, 10_100))
	if e.Position() != 20 || e.Vwap() != 10_050 {
		t.Fatalf("after builds: position=%d vwap=%d, want 20 @ 10050", e.Position(), e.Vwap())
	}

	// Partial close realizes against vwap and leaves the basis untouched.
	e.OnFill(sell(5, 10_200))
	if e.Position() != 15 || e.Vwap() != 10_050 {
		t.Fatalf("after partial close: position=%d vwap=%d, want 15 @ 10050", e.Position(), e.Vwap())
	}
	if e.Realized() != 5*(10_200-10_050) {
		t.Fatalf("realized = %d, want 750", e.Realized())
	}

	// Closing flat realizes the remainder and resets the basis.
	e.OnFill(sell(15, 10_000))
	if e.Position() != 0 {
		t.Fatalf("position = %d, want 0", e.Position())
	}
	if e.Realized() != 750+15*(10_000-10_050) {
		t.Fatalf("realized = %d, want 0", e.Realized())
	}
}

func TestOnFillFlip(t *testing.T) {
	e := NewEngine(testConfig())

	e.OnFill(buy(5, 10_000))
	e.OnFill(sell(8, 9_900))

	if e.Position() != -3 {
		t.Fatalf("position = %d, want -3", e.Position())
	}
	// The long 5 closed at a 100 loss; the residual short opened at the
	// fill price.
	if e.Realized() != -500 {
		t.Fatalf("realized = %d, want -500", e.Realized())
	}
	if e.Vwap() != 9_900 {
		t.Fatalf("vwap = %d, want 9900", e.Vwap())
	}
}

func TestCanQuoteInventoryCaps(t *testing.T) {
	e := NewEngine(testConfig())
	now := int64(10 * time.Second)

	bidHeavy := schema.TargetLadder{Bids: []schema.QuoteLevel{
		{Side: schema.OrderSideBid, Price: 9_990, Size: 60},
	}}
	if d := e.CanQuote(bidHeavy, 1, now); d.Allowed() || d.Reason != schema.RiskReasonLongCap {
		t.Fatalf("decision = %+v, want long cap denial", d)
	}

	askHeavy := schema.TargetLadder{Asks: []schema.QuoteLevel{
		{Side: schema.OrderSideAsk, Price: 10_010, Size: 60},
	}}
	if d := e.CanQuote(askHeavy, 1, now); d.Allowed() || d.Reason != schema.RiskReasonShortCap {
		t.Fatalf("decision = %+v, want short cap denial", d)
	}

	fits := schema.TargetLadder{
		Bids: []schema.QuoteLevel{{Side: schema.OrderSideBid, Price: 9_990, Size: 40}},
		Asks: []schema.QuoteLevel{{Side: schema.OrderSideAsk, Price: 10_010, Size: 40}},
	}
	if d := e.CanQuote(fits, 2, now); !d.Allowed() {
		t.Fatalf("decision = %+v, want allow", d)
	}
}

func TestCanQuoteRateBudget(t *testing.T) {
	cfg := testConfig()
	cfg.RateQuota = 2
	e := NewEngine(cfg)
	now := int64(10 * time.Second)

	ladder := schema.TargetLadder{Bids: []schema.QuoteLevel{
		{Side: schema.OrderSideBid, Price: 9_990, Size: 10},
	}}
	if d := e.CanQuote(ladder, 3, now); d.Allowed() || d.Reason != schema.RiskReasonRateBudget {
		t.Fatalf("decision = %+v, want rate budget denial", d)
	}
	// Exactly at capacity is still admitted.
	if d := e.CanQuote(ladder, 2, now); !d.Allowed() {
		t.Fatalf("decision = %+v, want allow at exact capacity", d)
	}
}

func TestAdmitOrderCountsLiveExposure(t *testing.T) {
	e := NewEngine(testConfig())

	if d := e.AdmitOrder(schema.OrderSideBid, 10, 45); d.Allowed() || d.Reason != schema.RiskReasonLongCap {
		t.Fatalf("decision = %+v, want long cap denial", d)
	}
	if d := e.AdmitOrder(schema.OrderSideBid, 5, 45); !d.Allowed() {
		t.Fatalf("decision = %+v, want allow", d)
	}
	if d := e.AdmitOrder(schema.OrderSideAsk, 10, 45); d.Allowed() || d.Reason != schema.RiskReasonShortCap {
		t.Fatalf("decision = %+v, want short cap denial", d)
	}
}

func TestSkew(t *testing.T) {
	e := NewEngine(testConfig())
	fv := schema.Price(10_000)

	if got := e.Skew(fv, 0); got != fv {
		t.Fatalf("flat skew = %d, want %d", got, fv)
	}
	// Long inventory shifts the midpoint down, short shifts it up.
	if got := e.Skew(fv, 25); got != 9_975 {
		t.Fatalf("half-cap long skew = %d, want 9975", got)
	}
	if got := e.Skew(fv, 50); got != 9_950 {
		t.Fatalf("full-cap long skew = %d, want 9950", got)
	}
	if got := e.Skew(fv, -50); got != 10_050 {
		t.Fatalf("full-cap short skew = %d, want 10050", got)
	}
	// Positions past the cap saturate instead of growing the offset.
	if got := e.Skew(fv, 500); got != 9_950 {
		t.Fatalf("oversized skew = %d, want saturated 9950", got)
	}
}

func TestDrawdownAdjust(t *testing.T) {
	e := NewEngine(testConfig())

	// Fresh session with no mark yet: multipliers are neutral.
	if spread, size, hard := e.DrawdownAdjust(); spread != 10_000 || size != 10_000 || hard {
		t.Fatalf("fresh adjust = (%d, %d, %v)", spread, size, hard)
	}

	// Seed a high-watermark, then realize a 200 bps loss: halfway
	// between the soft and hard stops.
	e.Restore(0, 0, 1_000_000)
	e.Mark(10_000)
	e.OnFill(buy(1, 100_000))
	e.OnFill(sell(1, 80_000))
	e.Mark(10_000)

	if dd := e.DrawdownBps(); dd != 200 {
		t.Fatalf("drawdown = %d bps, want 200", dd)
	}
	spread, size, hard := e.DrawdownAdjust()
	if hard {
		t.Fatalf("unexpected hard stop at 200 bps")
	}
	if spread != 13_750 || size != 8_250 {
		t.Fatalf("adjust = (%d, %d), want (13750, 8250)", spread, size)
	}
}

func TestDrawdownHardStop(t *testing.T) {
	e := NewEngine(testConfig())
	now := int64(10 * time.Second)

	e.OnFill(buy(10, 10_000))
	e.Mark(11_000)
	e.Mark(9_000)

	spread, size, hard := e.DrawdownAdjust()
	if !hard || spread != 20_000 || size != 0 {
		t.Fatalf("adjust = (%d, %d, %v), want hard stop", spread, size, hard)
	}
	ladder := schema.TargetLadder{Bids: []schema.QuoteLevel{
		{Side: schema.OrderSideBid, Price: 9_990, Size: 10},
	}}
	if d := e.CanQuote(ladder, 1, now); d.Allowed() || d.Reason != schema.RiskReasonHardStop {
		t.Fatalf("decision = %+v, want hard stop denial", d)
	}
}

func TestUpdateLimitsKeepsPositionRestartsBudget(t *testing.T) {
	cfg := testConfig()
	cfg.RateQuota = 1
	e := NewEngine(cfg)
	now := int64(10 * time.Second)

	e.OnFill(buy(10, 10_000))
	if !e.RecordAction(schema.ActionSubmit, now) {
		t.Fatalf("first action must fit the budget")
	}
	if e.RecordAction(schema.ActionSubmit, now) {
		t.Fatalf("budget must be exhausted")
	}

	cfg.LongCap = 80
	e.UpdateLimits(cfg)
	if e.Position() != 10 || e.Vwap() != 10_000 {
		t.Fatalf("position lost across limit update: %d @ %d", e.Position(), e.Vwap())
	}
	if e.Budget().Remaining(now) != 1 {
		t.Fatalf("rate window must restart empty after a limit update")
	}
}

func TestRestoreReseedsHighWater(t *testing.T) {
	e := NewEngine(testConfig())
	e.Restore(10, 10_000, 500)

	if e.Position() != 10 || e.Vwap() != 10_000 || e.Realized() != 500 {
		t.Fatalf("restored state = %d @ %d realized %d", e.Position(), e.Vwap(), e.Realized())
	}
	// The first mark of the new session seeds the watermark even when
	// equity is negative; there is no phantom drawdown from the prior run.
	e.Mark(9_000)
	if e.Unrealized() != -10_000 {
		t.Fatalf("unrealized = %d, want -10000", e.Unrealized())
	}
	if dd := e.DrawdownBps(); dd != 0 {
		t.Fatalf("drawdown = %d bps, want 0 right after restore", dd)
	}
}
