package obs

import (
	"testing"
	"time"

	"main/internal/schema"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveEvent(schema.NewHeader(schema.EventMarketData, 1, 1, 100, 150))
	m.ObserveEvent(schema.NewHeader(schema.EventMarketData, 1, 2, 200, 260))
	m.ObserveEvent(schema.NewHeader(schema.EventFill, 2, 3, 300, 330))
	m.IncRiskReason(schema.RiskReasonLongCap)
	m.IncAction(schema.ActionSubmit)
	m.IncAction(schema.ActionCancel)
	m.IncStaleTick()
	m.IncPulled()
	m.IncQueueDrop()

	snap := m.Snapshot()
	if snap.EventCounts[schema.EventMarketData] != 2 || snap.EventCounts[schema.EventFill] != 1 {
		t.Fatalf("event counts = %+v", snap.EventCounts)
	}
	if snap.RiskReasonCounts[schema.RiskReasonLongCap] != 1 {
		t.Fatalf("risk reason counts = %+v", snap.RiskReasonCounts)
	}
	if snap.ActionCounts[schema.ActionSubmit] != 1 || snap.ActionCounts[schema.ActionCancel] != 1 {
		t.Fatalf("action counts = %+v", snap.ActionCounts)
	}
	if snap.StaleTicks != 1 || snap.PulledEntries != 1 || snap.QueueDrops != 1 {
		t.Fatalf("counters = %+v", snap)
	}
	if snap.EventLatency.Count != 3 || snap.EventLatency.Min != 30 || snap.EventLatency.Max != 60 {
		t.Fatalf("event latency = %+v", snap.EventLatency)
	}
}

func TestLatencyStats(t *testing.T) {
	var s LatencyStats
	for _, d := range []time.Duration{40, 10, 30} {
		s.Observe(d)
	}
	snap := s.Snapshot()
	if snap.Count != 3 || snap.Min != 10 || snap.Max != 40 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Avg != (40+10+30)/3 {
		t.Fatalf("avg = %v", snap.Avg)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveEvent(schema.EventHeader{})
	m.IncStaleTick()
	m.ObserveCycle(time.Millisecond)
}
