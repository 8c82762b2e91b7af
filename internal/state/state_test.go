package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
)

func fill(side schema.OrderSide, qty schema.Quantity, price schema.Price) schema.Fill {
	return schema.Fill{OrderID: 1, Side: side, Price: price, Qty: qty}
}

func TestTrackerMatchesRiskAccounting(t *testing.T) {
	// Recovery replays fills through the tracker; its arithmetic must
	// agree with the live engine fill for fill, flips included.
	fills := []schema.Fill{
		fill(schema.OrderSideBid, 10, 10_000),
		fill(schema.OrderSideBid, 10, 10_100),
		fill(schema.OrderSideAsk, 5, 10_200),
		fill(schema.OrderSideAsk, 25, 9_900),
		fill(schema.OrderSideBid, 12, 9_950),
		fill(schema.OrderSideAsk, 2, 10_050),
	}

	tracker := NewTracker()
	engine := risk.NewEngine(risk.Config{LongCap: 1_000, ShortCap: 1_000})
	for i, f := range fills {
		tracker.ApplyFill(f)
		engine.OnFill(f)
		if tracker.Position() != engine.Position() {
			t.Fatalf("fill %d: position %d != engine %d", i, tracker.Position(), engine.Position())
		}
		if tracker.Vwap() != engine.Vwap() {
			t.Fatalf("fill %d: vwap %d != engine %d", i, tracker.Vwap(), engine.Vwap())
		}
		if tracker.Realized() != engine.Realized() {
			t.Fatalf("fill %d: realized %d != engine %d", i, tracker.Realized(), engine.Realized())
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tracker := NewTracker()
	tracker.ApplyFill(fill(schema.OrderSideBid, 10, 10_000))

	path := filepath.Join(t.TempDir(), "position.json")
	if err := WriteSnapshot(path, tracker.Snapshot(42, 99)); err != nil {
		t.Fatalf("write snapshot, err: %v", err)
	}
	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot, err: %v", err)
	}
	if snap.LastSeq != 42 || snap.LastEventTs != 99 {
		t.Fatalf("snapshot metadata = %+v", snap)
	}

	restored := NewTracker()
	restored.ApplySnapshot(snap)
	if restored.Position() != 10 || restored.Vwap() != 10_000 || restored.Realized() != 0 {
		t.Fatalf("restored = %d @ %d realized %d", restored.Position(), restored.Vwap(), restored.Realized())
	}
}

func journalFills(t *testing.T, dir string, fills map[uint64]schema.Fill) {
	t.Helper()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("new writer, err: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start writer, err: %v", err)
	}
	for seq := uint64(1); seq <= uint64(len(fills)); seq++ {
		f := fills[seq]
		header := schema.NewHeader(schema.EventFill, 2, seq, int64(seq)*int64(time.Millisecond), int64(seq)*int64(time.Millisecond))
		if err := w.Append(header, codec.EncodeFill(nil, f)); err != nil {
			t.Fatalf("append seq=%d, err: %v", seq, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer, err: %v", err)
	}
}

func TestRecoverReplaysJournalTail(t *testing.T) {
	dir := t.TempDir()
	journalFills(t, dir, map[uint64]schema.Fill{
		1: fill(schema.OrderSideBid, 10, 10_000),
		2: fill(schema.OrderSideBid, 10, 10_100),
		3: fill(schema.OrderSideAsk, 5, 10_200),
		4: fill(schema.OrderSideAsk, 5, 10_300),
	})

	// A snapshot taken after seq 2: only fills 3 and 4 replay on top.
	seeded := NewTracker()
	seeded.ApplyFill(fill(schema.OrderSideBid, 10, 10_000))
	seeded.ApplyFill(fill(schema.OrderSideBid, 10, 10_100))
	snapPath := filepath.Join(dir, "position.json")
	if err := WriteSnapshot(snapPath, seeded.Snapshot(2, 2*int64(time.Millisecond))); err != nil {
		t.Fatalf("write snapshot, err: %v", err)
	}

	res, err := Recover(context.Background(), RecoverConfig{JournalDir: dir, SnapshotPath: snapPath})
	if err != nil {
		t.Fatalf("recover, err: %v", err)
	}
	if res.LastSeq != 4 {
		t.Fatalf("last seq = %d, want 4", res.LastSeq)
	}
	if res.Tracker.Position() != 10 {
		t.Fatalf("position = %d, want 10", res.Tracker.Position())
	}
	// 5 @ 10200 and 5 @ 10300 closed against the 10050 weighted basis.
	if want := schema.Notional(5*(10_200-10_050) + 5*(10_300-10_050)); res.Tracker.Realized() != want {
		t.Fatalf("realized = %d, want %d", res.Tracker.Realized(), want)
	}
}

func TestRecoverWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	journalFills(t, dir, map[uint64]schema.Fill{
		1: fill(schema.OrderSideBid, 10, 10_000),
		2: fill(schema.OrderSideAsk, 10, 10_100),
	})

	res, err := Recover(context.Background(), RecoverConfig{JournalDir: dir})
	if err != nil {
		t.Fatalf("recover, err: %v", err)
	}
	if res.Tracker.Position() != 0 || res.Tracker.Realized() != 1_000 {
		t.Fatalf("recovered = %d realized %d, want flat with 1000", res.Tracker.Position(), res.Tracker.Realized())
	}
	if res.LastSeq != 2 {
		t.Fatalf("last seq = %d, want 2", res.LastSeq)
	}
}

func TestRecoverEmptyJournalDir(t *testing.T) {
	res, err := Recover(context.Background(), RecoverConfig{JournalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("recover, err: %v", err)
	}
	if res.Tracker.Position() != 0 || res.LastSeq != 0 {
		t.Fatalf("recovered = %+v, want empty state", res)
	}
}
