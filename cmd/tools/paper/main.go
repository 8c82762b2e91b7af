package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/marketmodel"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
)

// The paper tool replays a recorded journal's market data through the full
// quoting stack against a deterministic in-memory matcher and writes the
// resulting session to an output journal. Same input, same output, every
// run.

const (
	sourceReplay  uint16 = 1
	sourceMatcher uint16 = 2
	sourcePaper   uint16 = 3
)

func main() {
	inputDir := flag.String("input-dir", "testdata/journal", "Input journal directory")
	inputPrefix := flag.String("input-prefix", "", "Input journal file prefix (default: session)")
	outputDir := flag.String("output-dir", "testdata/journal_paper", "Output journal directory")
	outputPrefix := flag.String("output-prefix", "paper", "Output journal file prefix")
	configPath := flag.String("config", "", "Path to JSON config")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	replay, err := recorder.NewReplay(recorder.ReplayConfig{
		Dir:             *inputDir,
		FilePrefix:      *inputPrefix,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("replay init failed: %v", err)
	}

	outCfg := loaded.Journal
	outCfg.Dir = *outputDir
	outCfg.FilePrefix = *outputPrefix
	writer, err := recorder.NewWriter(outCfg)
	if err != nil {
		log.Fatalf("writer init failed: %v", err)
	}
	ctx := context.Background()
	if err := writer.Start(ctx); err != nil {
		log.Fatalf("writer start failed: %v", err)
	}

	session := newPaperSession(loaded, writer)
	if err := replay.Run(ctx, session.handleFrame); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("writer close failed: %v", err)
	}
	session.report()
}

type paperSession struct {
	basket  *schema.Basket
	engine  *risk.Engine
	strat   *strategy.Strategy
	matcher *matcher
	writer  *recorder.Writer
	metrics *obs.Metrics

	seq     uint64
	mdCount int
	fillQty int64
}

func newPaperSession(loaded ops.Loaded, writer *recorder.Writer) *paperSession {
	model := marketmodel.New(loaded.Basket, loaded.Market)
	engine := risk.NewEngine(loaded.Risk)
	quotes := quote.NewEngine(loaded.Quote, loaded.Basket.TickSize())
	metrics := obs.NewMetrics()
	m := &matcher{
		tick:   loaded.Basket.TickSize(),
		orders: make(map[uint64]*paperOrder),
	}
	s := &paperSession{
		basket:  loaded.Basket,
		engine:  engine,
		matcher: m,
		writer:  writer,
		metrics: metrics,
	}
	reconciler := og.NewReconciler(loaded.Orders, engine, m)
	s.strat = strategy.New(loaded.Strategy, model, engine, quotes, reconciler, metrics, s)
	return s
}

// handleFrame replays one journal frame. Only market data drives the
// session; everything else in the input is skipped.
func (s *paperSession) handleFrame(header schema.EventHeader, payload []byte) error {
	if header.Type != schema.EventMarketData {
		return nil
	}
	snap, ok := codec.DecodeMarketSnapshot(payload)
	if !ok {
		return fmt.Errorf("decode market snapshot at seq %d", header.Seq)
	}
	s.mdCount++
	now := header.TsEvent
	if now == 0 {
		now = time.Now().UTC().UnixNano()
	}

	s.journal(schema.EventMarketData, sourceReplay, now, payload)
	s.matcher.setMid(impliedMid(s.basket, snap))
	s.dispatch(schema.EventMarketData, payload, now)

	// Orders placed this tick rest until the next one; acks and fills
	// already pending are delivered now.
	for _, ack := range s.matcher.drainAcks() {
		encoded := codec.EncodeOrderAck(nil, ack)
		s.journal(schema.EventOrderAck, sourceMatcher, now, encoded)
		s.dispatch(schema.EventOrderAck, encoded, now)
	}
	for _, fill := range s.matcher.sweep() {
		s.fillQty += int64(fill.Qty)
		encoded := codec.EncodeFill(nil, fill)
		s.journal(schema.EventFill, sourceMatcher, now, encoded)
		s.dispatch(schema.EventFill, encoded, now)
	}
	for _, ack := range s.matcher.drainAcks() {
		encoded := codec.EncodeOrderAck(nil, ack)
		s.journal(schema.EventOrderAck, sourceMatcher, now, encoded)
		s.dispatch(schema.EventOrderAck, encoded, now)
	}
	return nil
}

func (s *paperSession) dispatch(eventType schema.EventType, payload []byte, now int64) {
	s.seq++
	h := schema.NewHeader(eventType, sourceMatcher, s.seq, now, now)
	s.strat.HandleEvent(bus.Event{Header: h, Payload: payload})
}

func (s *paperSession) journal(eventType schema.EventType, source uint16, now int64, payload []byte) {
	s.seq++
	h := schema.NewHeader(eventType, source, s.seq, now, now)
	if err := s.writer.Append(h, payload); err != nil && err != recorder.ErrQueueFull {
		log.Printf("journal append failed: %v", err)
	}
}

// Observer hooks journal the strategy's own output.

func (s *paperSession) OnAction(now int64, action og.Action) {
	s.journal(schema.EventOrderIntent, sourcePaper, now, codec.EncodeOrderIntent(nil, action.Intent))
}

func (s *paperSession) OnDecision(now int64, decision schema.RiskDecision) {
	s.journal(schema.EventRiskDecision, sourcePaper, now, codec.EncodeRiskDecision(nil, decision))
}

func (s *paperSession) OnFillApplied(int64, schema.Fill, schema.Quantity, schema.Notional) {}

func (s *paperSession) report() {
	ms := s.metrics.Snapshot()
	log.Printf("paper session: ticks=%d filled_qty=%d position=%d realized=%d actions=%v risk=%v pulled=%d",
		s.mdCount, s.fillQty, s.engine.Position(), s.engine.Realized(),
		ms.ActionCounts, ms.RiskReasonCounts, ms.PulledEntries)
}

func impliedMid(basket *schema.Basket, snap schema.MarketSnapshot) schema.Price {
	var sum, weight int64
	for _, q := range snap.Components {
		if q.BidPrice <= 0 || q.AskPrice <= 0 {
			continue
		}
		c, ok := basket.Component(q.SymbolID)
		if !ok {
			continue
		}
		sum += (int64(q.BidPrice) + int64(q.AskPrice)) / 2 * c.WeightBps
		weight += c.WeightBps
	}
	if weight == 0 {
		return 0
	}
	return schema.Price(sum / weight)
}

type paperOrder struct {
	side   schema.OrderSide
	price  schema.Price
	leaves schema.Quantity
}

// matcher is a synchronous maker-only book. Send queues an ack, sweep
// fills whatever the current mid has traded through.
type matcher struct {
	tick   schema.Price
	mid    schema.Price
	orders map[uint64]*paperOrder
	acks   []schema.OrderAck
}

func (m *matcher) setMid(mid schema.Price) {
	if mid > 0 {
		m.mid = mid
	}
}

func (m *matcher) Send(intent schema.OrderIntent) error {
	switch intent.Kind {
	case schema.ActionSubmit:
		if m.crosses(intent.Side, intent.Price) {
			m.reject(intent, schema.OrderAckReasonWouldCross)
			return nil
		}
		m.orders[intent.OrderID] = &paperOrder{
			side:   intent.Side,
			price:  intent.Price,
			leaves: intent.Qty,
		}
		m.ack(intent.OrderID, schema.OrderAckStatusAcked, intent.Price, intent.Qty)
	case schema.ActionAmend:
		o, ok := m.orders[intent.OrderID]
		if !ok {
			m.reject(intent, schema.OrderAckReasonUnknownOrder)
			return nil
		}
		if m.crosses(o.side, intent.Price) {
			m.reject(intent, schema.OrderAckReasonWouldCross)
			return nil
		}
		o.price, o.leaves = intent.Price, intent.Qty
		m.ack(intent.OrderID, schema.OrderAckStatusAcked, o.price, o.leaves)
	case schema.ActionCancel:
		o, ok := m.orders[intent.OrderID]
		if !ok {
			m.reject(intent, schema.OrderAckReasonUnknownOrder)
			return nil
		}
		delete(m.orders, intent.OrderID)
		m.ack(intent.OrderID, schema.OrderAckStatusCanceled, o.price, o.leaves)
	}
	return nil
}

func (m *matcher) crosses(side schema.OrderSide, price schema.Price) bool {
	if m.mid <= 0 {
		return false
	}
	if side == schema.OrderSideBid {
		return price >= m.mid+m.tick
	}
	return price <= m.mid-m.tick
}

func (m *matcher) sweep() []schema.Fill {
	if m.mid <= 0 {
		return nil
	}
	ids := make([]uint64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var fills []schema.Fill
	for _, id := range ids {
		o := m.orders[id]
		crossed := (o.side == schema.OrderSideBid && m.mid <= o.price) ||
			(o.side == schema.OrderSideAsk && m.mid >= o.price)
		if !crossed {
			continue
		}
		fills = append(fills, schema.Fill{
			OrderID: id,
			Side:    o.side,
			Price:   o.price,
			Qty:     o.leaves,
		})
		m.ack(id, schema.OrderAckStatusFilled, o.price, o.leaves)
		delete(m.orders, id)
	}
	return fills
}

func (m *matcher) ack(orderID uint64, status schema.OrderAckStatus, price schema.Price, qty schema.Quantity) {
	leaves := qty
	if status == schema.OrderAckStatusFilled || status == schema.OrderAckStatusCanceled {
		leaves = 0
	}
	m.acks = append(m.acks, schema.OrderAck{
		OrderID:   orderID,
		Status:    status,
		Price:     price,
		Qty:       qty,
		LeavesQty: leaves,
	})
}

func (m *matcher) reject(intent schema.OrderIntent, reason schema.OrderAckReason) {
	m.acks = append(m.acks, schema.OrderAck{
		OrderID: intent.OrderID,
		Status:  schema.OrderAckStatusRejected,
		Reason:  reason,
		Price:   intent.Price,
		Qty:     intent.Qty,
	})
}

func (m *matcher) drainAcks() []schema.OrderAck {
	acks := m.acks
	m.acks = nil
	return acks
}
