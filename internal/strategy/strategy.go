package strategy

import (
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/marketmodel"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/quote"
	"main/internal/risk"
	"main/internal/schema"
)

// Config controls the orchestration policy around the core components.
type Config struct {
	// ReskewThreshold is the inventory move, in quantity units, past which
	// a fill triggers an immediate reconciliation instead of waiting for
	// the next tick.
	ReskewThreshold schema.Quantity `json:"reskewThreshold"`
	// PulledAfterDenials is the number of consecutive denied cycles or
	// rate-limit rejects before quoting is pulled.
	PulledAfterDenials int `json:"pulledAfterDenials"`
	// PulledRecovery is how long quoting stays suspended after a pull
	// before a resume is attempted.
	PulledRecovery time.Duration `json:"pulledRecovery"`
}

// Observer receives the decisions and actions the strategy produces, for
// recording and journaling. All methods are called from the single event
// goroutine.
type Observer interface {
	OnAction(now int64, action og.Action)
	OnDecision(now int64, decision schema.RiskDecision)
	OnFillApplied(now int64, fill schema.Fill, position schema.Quantity, realized schema.Notional)
}

// Strategy wires the event loop: market ticks flow through the market
// model, risk skew and the quote engine into the reconciler; fills and
// acks update risk and order state. It is the single consumer of the
// event bus, so no component state is mutated concurrently.
type Strategy struct {
	cfg      Config
	model    *marketmodel.Model
	risk     *risk.Engine
	quotes   *quote.Engine
	orders   *og.Reconciler
	metrics  *obs.Metrics
	observer Observer

	pulled        bool
	pulledSince   int64
	denialStreak  int
	lastQuotedPos schema.Quantity
	lastFair      marketmodel.FairValue
	haveFair      bool
}

// New creates a strategy around the given components. observer may be nil.
func New(cfg Config, model *marketmodel.Model, riskEngine *risk.Engine, quotes *quote.Engine, orders *og.Reconciler, metrics *obs.Metrics, observer Observer) *Strategy {
	if cfg.PulledAfterDenials <= 0 {
		cfg.PulledAfterDenials = 5
	}
	if cfg.PulledRecovery <= 0 {
		cfg.PulledRecovery = time.Second
	}
	return &Strategy{
		cfg:      cfg,
		model:    model,
		risk:     riskEngine,
		quotes:   quotes,
		orders:   orders,
		metrics:  metrics,
		observer: observer,
	}
}

// Pulled reports whether quoting is currently suspended.
func (s *Strategy) Pulled() bool {
	return s.pulled
}

// HandleEvent is the single dispatch point for the serialized event
// stream. Unknown or undecodable events are counted and skipped; nothing
// here may stop the loop.
func (s *Strategy) HandleEvent(e bus.Event) {
	s.metrics.ObserveEvent(e.Header)
	now := e.Header.TsRecv
	if now == 0 {
		now = time.Now().UTC().UnixNano()
	}

	switch e.Header.Type {
	case schema.EventMarketData:
		snap, ok := codec.DecodeMarketSnapshot(e.Payload)
		if !ok {
			logs.Warnf("drop undecodable market snapshot seq=%d", e.Header.Seq)
			return
		}
		s.onTick(snap, now)
	case schema.EventFill:
		fill, ok := codec.DecodeFill(e.Payload)
		if !ok {
			logs.Warnf("drop undecodable fill seq=%d", e.Header.Seq)
			return
		}
		s.onFill(fill, now)
	case schema.EventOrderAck:
		ack, ok := codec.DecodeOrderAck(e.Payload)
		if !ok {
			logs.Warnf("drop undecodable order ack seq=%d", e.Header.Seq)
			return
		}
		s.onAck(ack, now)
	default:
		logs.Warnf("drop event with unknown type %d seq=%d", e.Header.Type, e.Header.Seq)
	}
}

func (s *Strategy) onTick(snap schema.MarketSnapshot, now int64) {
	started := time.Now()
	defer func() { s.metrics.ObserveCycle(time.Since(started)) }()

	fair := s.model.Update(snap)
	if fair.Stale {
		// No component prices this tick: suspend quoting for the cycle.
		s.metrics.IncStaleTick()
		return
	}
	s.lastFair = fair
	s.haveFair = true
	s.risk.Mark(fair.Price)

	if s.pulled {
		s.drainPulled(now)
		return
	}

	spreadScale, sizeScale, hardStop := s.risk.DrawdownAdjust()
	if hardStop {
		s.enterPulled(now, schema.RiskReasonHardStop)
		return
	}
	s.quoteCycle(fair, spreadScale, sizeScale, now)
}

// quoteCycle builds and reconciles one ladder. A cap or budget denial on
// the whole ladder does not abort the cycle: the reconciler re-checks per
// action so the admissible subset still converges.
func (s *Strategy) quoteCycle(fair marketmodel.FairValue, spreadScale, sizeScale int64, now int64) {
	adjusted := s.risk.Skew(fair.Price, s.risk.Position())
	ladder := s.quotes.BuildLadder(quote.Context{
		FairValue:      adjusted,
		VolBps:         fair.VolBps,
		SpreadScaleBps: spreadScale,
		SizeScaleBps:   sizeScale,
	})
	if ladder.Empty() {
		return
	}

	decision := s.risk.CanQuote(ladder, ladder.Levels(), now)
	if s.observer != nil {
		s.observer.OnDecision(now, decision)
	}
	if !decision.Allowed() {
		s.metrics.IncRiskReason(decision.Reason)
		if decision.Reason == schema.RiskReasonHardStop {
			s.enterPulled(now, decision.Reason)
			return
		}
		s.denialStreak++
		if s.denialStreak >= s.cfg.PulledAfterDenials {
			s.enterPulled(now, decision.Reason)
			return
		}
	} else {
		s.denialStreak = 0
	}

	reconcileStart := time.Now()
	actions := s.orders.Reconcile(ladder, now)
	s.metrics.ObserveReconcile(time.Since(reconcileStart))
	for _, action := range actions {
		s.metrics.IncAction(action.Kind)
		if s.observer != nil {
			s.observer.OnAction(now, action)
		}
	}
	s.lastQuotedPos = s.risk.Position()
}

func (s *Strategy) onFill(fill schema.Fill, now int64) {
	if err := s.orders.OnFill(fill); err != nil {
		// Fills for unknown orders can arrive after a restart; inventory
		// still moves.
		logs.Warnf("fill for order %d, err: %+v", fill.OrderID, err)
	}
	s.risk.OnFill(fill)
	if s.observer != nil {
		s.observer.OnFillApplied(now, fill, s.risk.Position(), s.risk.Realized())
	}

	if s.pulled || !s.haveFair {
		return
	}
	moved := s.risk.Position() - s.lastQuotedPos
	if moved < 0 {
		moved = -moved
	}
	if s.cfg.ReskewThreshold > 0 && moved >= s.cfg.ReskewThreshold {
		spreadScale, sizeScale, hardStop := s.risk.DrawdownAdjust()
		if hardStop {
			s.enterPulled(now, schema.RiskReasonHardStop)
			return
		}
		s.quoteCycle(s.lastFair, spreadScale, sizeScale, now)
	}
}

func (s *Strategy) onAck(ack schema.OrderAck, now int64) {
	if err := s.orders.OnAck(ack); err != nil {
		logs.Warnf("ack for order %d status=%d, err: %+v", ack.OrderID, ack.Status, err)
		return
	}
	switch ack.Status {
	case schema.OrderAckStatusRejected:
		if ack.Reason == schema.OrderAckReasonRateLimit {
			s.denialStreak++
			if !s.pulled && s.denialStreak >= s.cfg.PulledAfterDenials {
				s.enterPulled(now, schema.RiskReasonRateBudget)
			}
		}
	case schema.OrderAckStatusAcked:
		s.denialStreak = 0
	}
}

// enterPulled cancels all resting orders and suspends quoting. The
// cancel-all starts synchronously; remaining cancels drain on later ticks
// as the rate budget allows, and no quote is built until the book is
// empty and the recovery window has passed.
func (s *Strategy) enterPulled(now int64, reason schema.RiskReason) {
	if s.pulled {
		return
	}
	s.pulled = true
	s.pulledSince = now
	s.metrics.IncPulled()
	logs.Warnf("quoting pulled, reason=%d position=%d", reason, s.risk.Position())
	s.recordCancels(now, s.orders.CancelAll(now))
}

func (s *Strategy) drainPulled(now int64) {
	if s.orders.LiveCount() > 0 {
		s.recordCancels(now, s.orders.CancelAll(now))
		return
	}
	if now-s.pulledSince < int64(s.cfg.PulledRecovery) {
		return
	}
	if _, _, hardStop := s.risk.DrawdownAdjust(); hardStop {
		return
	}
	s.pulled = false
	s.denialStreak = 0
	logs.Info("quoting resumed")
}

func (s *Strategy) recordCancels(now int64, actions []og.Action) {
	for _, action := range actions {
		s.metrics.IncAction(action.Kind)
		if s.observer != nil {
			s.observer.OnAction(now, action)
		}
	}
}
