package quote

import (
	"testing"

	"main/internal/schema"
)

func testConfig() Config {
	return Config{
		Levels:         3,
		BaseSpread:     10,
		LevelIncrement: 5,
		BaseSize:       10,
	}
}

func TestBuildLadderSymmetric(t *testing.T) {
	e := NewEngine(testConfig(), 5)

	ladder := e.BuildLadder(Context{FairValue: 10_000})
	wantBids := []schema.Price{9_990, 9_985, 9_980}
	wantAsks := []schema.Price{10_010, 10_015, 10_020}

	if len(ladder.Bids) != 3 || len(ladder.Asks) != 3 {
		t.Fatalf("ladder = %d bids / %d asks, want 3/3", len(ladder.Bids), len(ladder.Asks))
	}
	for i := range wantBids {
		if ladder.Bids[i].Price != wantBids[i] {
			t.Fatalf("bid %d = %d, want %d", i, ladder.Bids[i].Price, wantBids[i])
		}
		if ladder.Asks[i].Price != wantAsks[i] {
			t.Fatalf("ask %d = %d, want %d", i, ladder.Asks[i].Price, wantAsks[i])
		}
		if ladder.Bids[i].Size != 10 || ladder.Asks[i].Size != 10 {
			t.Fatalf("level %d sizes = %d/%d, want 10/10", i, ladder.Bids[i].Size, ladder.Asks[i].Size)
		}
	}
	if ladder.Bids[0].Price >= ladder.Asks[0].Price {
		t.Fatalf("ladder crosses itself: %d >= %d", ladder.Bids[0].Price, ladder.Asks[0].Price)
	}
}

func TestBuildLadderVolatilityWidens(t *testing.T) {
	cfg := testConfig()
	cfg.VolSpreadGainBps = 10_000
	e := NewEngine(cfg, 5)

	// volScale 1.5x: the level-0 half-spread grows from 10 to 15.
	ladder := e.BuildLadder(Context{FairValue: 10_000, VolBps: 5_000})
	if ladder.Bids[0].Price != 9_985 {
		t.Fatalf("best bid = %d, want 9985", ladder.Bids[0].Price)
	}
	if ladder.Asks[0].Price != 10_015 {
		t.Fatalf("best ask = %d, want 10015", ladder.Asks[0].Price)
	}
}

func TestBuildLadderDrawdownScales(t *testing.T) {
	e := NewEngine(testConfig(), 5)

	ladder := e.BuildLadder(Context{FairValue: 10_000, SpreadScaleBps: 20_000, SizeScaleBps: 5_000})
	if ladder.Bids[0].Price != 9_980 || ladder.Asks[0].Price != 10_020 {
		t.Fatalf("scaled spread = %d/%d, want 9980/10020", ladder.Bids[0].Price, ladder.Asks[0].Price)
	}
	if ladder.Bids[0].Size != 5 {
		t.Fatalf("scaled size = %d, want 5", ladder.Bids[0].Size)
	}
}

func TestBuildLadderMergesTickCollapsedLevels(t *testing.T) {
	// With a coarse tick all three half-spreads round to the same price;
	// the sizes merge into one level per side.
	e := NewEngine(testConfig(), 100)

	ladder := e.BuildLadder(Context{FairValue: 10_000})
	if len(ladder.Bids) != 1 || len(ladder.Asks) != 1 {
		t.Fatalf("ladder = %d bids / %d asks, want 1/1", len(ladder.Bids), len(ladder.Asks))
	}
	if ladder.Bids[0].Price != 9_900 || ladder.Bids[0].Size != 30 {
		t.Fatalf("bid = %d x %d, want 9900 x 30", ladder.Bids[0].Price, ladder.Bids[0].Size)
	}
	if ladder.Asks[0].Price != 10_100 || ladder.Asks[0].Size != 30 {
		t.Fatalf("ask = %d x %d, want 10100 x 30", ladder.Asks[0].Price, ladder.Asks[0].Size)
	}
}

func TestBuildLadderAggregateCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAggregate = 25
	e := NewEngine(cfg, 5)

	ladder := e.BuildLadder(Context{FairValue: 10_000})
	var sum schema.Quantity
	for _, lvl := range ladder.Bids {
		sum += lvl.Size
	}
	if sum != 25 {
		t.Fatalf("bid exposure = %d, want capped at 25", sum)
	}
	if len(ladder.Bids) != 3 || ladder.Bids[2].Size != 5 {
		t.Fatalf("last level size = %+v, want truncated to 5", ladder.Bids)
	}
}

func TestBuildLadderNeverCrosses(t *testing.T) {
	// A zero base spread rounds bid and ask onto the same tick; uncross
	// must widen one side by at least a tick.
	cfg := testConfig()
	cfg.Levels = 1
	cfg.BaseSpread = 0
	cfg.LevelIncrement = 0
	e := NewEngine(cfg, 5)

	ladder := e.BuildLadder(Context{FairValue: 10_000})
	if len(ladder.Bids) == 0 || len(ladder.Asks) == 0 {
		t.Fatalf("ladder unexpectedly empty: %+v", ladder)
	}
	if ladder.Bids[0].Price >= ladder.Asks[0].Price {
		t.Fatalf("ladder crosses itself: %d >= %d", ladder.Bids[0].Price, ladder.Asks[0].Price)
	}
}

func TestBuildLadderEmptyOnBadFairValue(t *testing.T) {
	e := NewEngine(testConfig(), 5)
	if ladder := e.BuildLadder(Context{FairValue: 0}); !ladder.Empty() {
		t.Fatalf("ladder = %+v, want empty on zero fair value", ladder)
	}
}
