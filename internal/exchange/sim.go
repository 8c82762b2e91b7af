package exchange

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/mdg"
	"main/internal/schema"
)

// SimConfig controls the in-process simulated exchange.
type SimConfig struct {
	// TickInterval is the cadence of synthetic snapshots.
	TickInterval time.Duration `json:"tickInterval"`
	// RateQuota and RateWindow mirror the venue-side action limiter.
	// Actions beyond the quota are rejected with a rate limit reason.
	RateQuota  int           `json:"rateQuota"`
	RateWindow time.Duration `json:"rateWindow"`
	// QueueDepth sizes the ack/fill/snapshot channels.
	QueueDepth int `json:"queueDepth"`
	// Generator seeds the synthetic component walk.
	Generator mdg.Config `json:"generator"`
}

func (c *SimConfig) normalize() {
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Millisecond
	}
	if c.RateQuota <= 0 {
		c.RateQuota = 95
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Second
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 1 << 10
	}
}

type simOrder struct {
	id     uint64
	side   schema.OrderSide
	price  schema.Price
	leaves schema.Quantity
}

// Sim is an in-process exchange for paper sessions and tests. It implements
// both Feed and Gateway: snapshots come from a synthetic component walk, and
// resting orders fill when the implied basket mid trades through their price.
// Only passive orders are accepted; an order that would cross the implied
// book is rejected.
type Sim struct {
	cfg    SimConfig
	basket *schema.Basket
	gen    *mdg.Generator

	mu     sync.Mutex
	orders map[uint64]*simOrder
	stamps []int64
	etfBid schema.Price
	etfAsk schema.Price

	snaps chan schema.MarketSnapshot
	acks  chan schema.OrderAck
	fills chan schema.Fill

	closeOnce sync.Once
	done      chan struct{}
}

// NewSim creates a simulated exchange over the basket.
func NewSim(basket *schema.Basket, cfg SimConfig) (*Sim, error) {
	cfg.normalize()
	gen, err := mdg.NewGenerator(basket, cfg.Generator)
	if err != nil {
		return nil, errors.Wrap(err, "create generator")
	}
	return &Sim{
		cfg:    cfg,
		basket: basket,
		gen:    gen,
		orders: make(map[uint64]*simOrder),
		snaps:  make(chan schema.MarketSnapshot, cfg.QueueDepth),
		acks:   make(chan schema.OrderAck, cfg.QueueDepth),
		fills:  make(chan schema.Fill, cfg.QueueDepth),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the synthetic tick loop. It returns immediately.
func (s *Sim) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

func (s *Sim) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case now := <-ticker.C:
			s.step(now)
		}
	}
}

// Step advances the simulation by one tick. Exposed for deterministic tests;
// the Start loop calls it on every tick.
func (s *Sim) Step(now time.Time) {
	s.step(now)
}

func (s *Sim) step(now time.Time) {
	snap := s.gen.Next(now)
	mid, ok := s.impliedMid(snap)

	s.mu.Lock()
	if ok {
		tick := s.basket.TickSize()
		s.etfBid = mid - tick
		s.etfAsk = mid + tick
		s.matchLocked(mid)
	}
	s.mu.Unlock()

	select {
	case s.snaps <- snap:
	default:
		logs.Warn("sim snapshot queue full, dropping tick")
	}
}

// impliedMid computes the weighted basket mid from the snapshot.
func (s *Sim) impliedMid(snap schema.MarketSnapshot) (schema.Price, bool) {
	var sum, weight int64
	for _, q := range snap.Components {
		if q.BidPrice <= 0 || q.AskPrice <= 0 {
			continue
		}
		c, ok := s.basket.Component(q.SymbolID)
		if !ok {
			continue
		}
		mid := (int64(q.BidPrice) + int64(q.AskPrice)) / 2
		sum += mid * c.WeightBps
		weight += c.WeightBps
	}
	if weight == 0 {
		return 0, false
	}
	return schema.Price(sum / weight), true
}

// matchLocked fills resting orders the implied mid has traded through.
func (s *Sim) matchLocked(mid schema.Price) {
	ids := make([]uint64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o := s.orders[id]
		crossed := (o.side == schema.OrderSideBid && mid <= o.price) ||
			(o.side == schema.OrderSideAsk && mid >= o.price)
		if !crossed {
			continue
		}
		qty := o.leaves
		delete(s.orders, id)
		s.emitFill(schema.Fill{
			OrderID: id,
			Side:    o.side,
			Price:   o.price,
			Qty:     qty,
		})
		s.emitAck(schema.OrderAck{
			OrderID: id,
			Status:  schema.OrderAckStatusFilled,
			Price:   o.price,
			Qty:     qty,
		})
	}
}

// Send handles one order action. The outcome arrives asynchronously on the
// ack channel, mirroring the wire gateway.
func (s *Sim) Send(intent schema.OrderIntent) error {
	now := time.Now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.admitLocked(now) {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonRateLimit))
		return nil
	}

	switch intent.Kind {
	case schema.ActionSubmit:
		s.submitLocked(intent)
	case schema.ActionAmend:
		s.amendLocked(intent)
	case schema.ActionCancel:
		s.cancelLocked(intent)
	default:
		s.emitAck(rejectAck(intent, schema.OrderAckReasonExchangeReject))
	}
	return nil
}

// admitLocked applies the venue-side sliding window limiter.
func (s *Sim) admitLocked(now int64) bool {
	cutoff := now - s.cfg.RateWindow.Nanoseconds()
	kept := s.stamps[:0]
	for _, ts := range s.stamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	s.stamps = kept
	if len(s.stamps) >= s.cfg.RateQuota {
		return false
	}
	s.stamps = append(s.stamps, now)
	return true
}

func (s *Sim) submitLocked(intent schema.OrderIntent) {
	if intent.Qty <= 0 {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonInvalidQty))
		return
	}
	if intent.Price <= 0 || int64(intent.Price)%int64(s.basket.TickSize()) != 0 {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonInvalidPrice))
		return
	}
	if s.wouldCrossLocked(intent.Side, intent.Price) {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonWouldCross))
		return
	}
	if _, exists := s.orders[intent.OrderID]; exists {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonExchangeReject))
		return
	}
	s.orders[intent.OrderID] = &simOrder{
		id:     intent.OrderID,
		side:   intent.Side,
		price:  intent.Price,
		leaves: intent.Qty,
	}
	s.emitAck(schema.OrderAck{
		OrderID:   intent.OrderID,
		Status:    schema.OrderAckStatusAcked,
		Price:     intent.Price,
		Qty:       intent.Qty,
		LeavesQty: intent.Qty,
	})
}

func (s *Sim) amendLocked(intent schema.OrderIntent) {
	o, ok := s.orders[intent.OrderID]
	if !ok {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonUnknownOrder))
		return
	}
	if intent.Qty <= 0 {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonInvalidQty))
		return
	}
	if intent.Price <= 0 || int64(intent.Price)%int64(s.basket.TickSize()) != 0 {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonInvalidPrice))
		return
	}
	if s.wouldCrossLocked(o.side, intent.Price) {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonWouldCross))
		return
	}
	o.price = intent.Price
	o.leaves = intent.Qty
	s.emitAck(schema.OrderAck{
		OrderID:   intent.OrderID,
		Status:    schema.OrderAckStatusAcked,
		Price:     o.price,
		Qty:       o.leaves,
		LeavesQty: o.leaves,
	})
}

func (s *Sim) cancelLocked(intent schema.OrderIntent) {
	o, ok := s.orders[intent.OrderID]
	if !ok {
		s.emitAck(rejectAck(intent, schema.OrderAckReasonUnknownOrder))
		return
	}
	delete(s.orders, intent.OrderID)
	s.emitAck(schema.OrderAck{
		OrderID: intent.OrderID,
		Status:  schema.OrderAckStatusCanceled,
		Price:   o.price,
		Qty:     o.leaves,
	})
}

// wouldCrossLocked enforces maker-only admission against the implied book.
func (s *Sim) wouldCrossLocked(side schema.OrderSide, price schema.Price) bool {
	if s.etfBid == 0 && s.etfAsk == 0 {
		return false
	}
	if side == schema.OrderSideBid {
		return price >= s.etfAsk
	}
	return price <= s.etfBid
}

func rejectAck(intent schema.OrderIntent, reason schema.OrderAckReason) schema.OrderAck {
	return schema.OrderAck{
		OrderID: intent.OrderID,
		Status:  schema.OrderAckStatusRejected,
		Reason:  reason,
		Price:   intent.Price,
		Qty:     intent.Qty,
	}
}

func (s *Sim) emitAck(ack schema.OrderAck) {
	select {
	case s.acks <- ack:
	default:
		logs.Warn("sim ack queue full, dropping ack")
	}
}

func (s *Sim) emitFill(fill schema.Fill) {
	select {
	case s.fills <- fill:
	default:
		logs.Warn("sim fill queue full, dropping fill")
	}
}

// ObserveSnapshots delivers synthetic snapshots until the context ends.
func (s *Sim) ObserveSnapshots(ctx context.Context, handler SnapshotHandler) (unsubscribe func()) {
	sub, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-s.done:
				return
			case snap := <-s.snaps:
				handler(snap)
			}
		}
	}()
	return cancel
}

// ObserveAcks delivers acknowledgements until the context ends.
func (s *Sim) ObserveAcks(ctx context.Context, handler AckHandler) (unsubscribe func()) {
	sub, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-s.done:
				return
			case ack := <-s.acks:
				handler(ack)
			}
		}
	}()
	return cancel
}

// ObserveFills delivers fills until the context ends.
func (s *Sim) ObserveFills(ctx context.Context, handler FillHandler) (unsubscribe func()) {
	sub, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-s.done:
				return
			case fill := <-s.fills:
				handler(fill)
			}
		}
	}()
	return cancel
}

// LiveOrders reports the number of resting orders. Test helper.
func (s *Sim) LiveOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Close stops the tick loop and all observers.
func (s *Sim) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
