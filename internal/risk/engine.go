package risk

import (
	"time"

	"main/internal/schema"
)

// Config defines inventory and throttling limits for one instrument.
type Config struct {
	LongCap            schema.Quantity `json:"longCap"`
	ShortCap           schema.Quantity `json:"shortCap"`
	SkewSensitivityBps int64           `json:"skewSensitivityBps"`
	RateQuota          int             `json:"rateQuota"`
	RateWindow         time.Duration   `json:"rateWindow"`
	DrawdownSoftBps    int64           `json:"drawdownSoftBps"`
	DrawdownHardBps    int64           `json:"drawdownHardBps"`
}

// Engine owns position, exposure and rate-limit state. Position changes
// only through OnFill; order submission never mutates it speculatively.
type Engine struct {
	cfg    Config
	budget *RateBudget

	position schema.Quantity
	vwap     schema.Price
	realized schema.Notional

	unrealized schema.Notional
	highWater  schema.Notional
	marked     bool
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	if cfg.LongCap < 0 {
		cfg.LongCap = -cfg.LongCap
	}
	if cfg.ShortCap < 0 {
		cfg.ShortCap = -cfg.ShortCap
	}
	return &Engine{
		cfg:    cfg,
		budget: NewRateBudget(cfg.RateQuota, cfg.RateWindow),
	}
}

// UpdateLimits swaps in new static limits from a reloaded config while
// keeping position and PnL state. The rate window restarts empty. Must be
// called from the event goroutine.
func (e *Engine) UpdateLimits(cfg Config) {
	if cfg.LongCap < 0 {
		cfg.LongCap = -cfg.LongCap
	}
	if cfg.ShortCap < 0 {
		cfg.ShortCap = -cfg.ShortCap
	}
	e.cfg = cfg
	e.budget = NewRateBudget(cfg.RateQuota, cfg.RateWindow)
}

// Restore seeds position and PnL state from a recovered session. It must
// run before the first fill or mark of the new session.
func (e *Engine) Restore(position schema.Quantity, vwap schema.Price, realized schema.Notional) {
	e.position = position
	e.vwap = vwap
	e.realized = realized
	e.unrealized = 0
	e.marked = false
}

// Vwap returns the volume weighted entry price of the open position.
func (e *Engine) Vwap() schema.Price {
	return e.vwap
}

// Position returns current signed inventory.
func (e *Engine) Position() schema.Quantity {
	return e.position
}

// Realized returns realized PnL at basket scale.
func (e *Engine) Realized() schema.Notional {
	return e.realized
}

// Unrealized returns the last marked unrealized PnL.
func (e *Engine) Unrealized() schema.Notional {
	return e.unrealized
}

// Budget exposes the rate budget for observers.
func (e *Engine) Budget() *RateBudget {
	return e.budget
}

// CanQuote admits a candidate ladder. It hypothetically fills every
// candidate order and denies when the projected inventory breaches a cap,
// or when the rate budget lacks capacity for the required action count.
func (e *Engine) CanQuote(ladder schema.TargetLadder, actions int, now int64) schema.RiskDecision {
	decision := schema.RiskDecision{
		Action:      schema.RiskActionAllow,
		Reason:      schema.RiskReasonNone,
		Actions:     uint32(actions),
		CurrentPos:  e.position,
		ProjectedUp: e.position + ladder.BidExposure(),
		ProjectedDn: e.position - ladder.AskExposure(),
		LongCap:     e.cfg.LongCap,
		ShortCap:    e.cfg.ShortCap,
	}

	if e.hardStopped() {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonHardStop
		return decision
	}
	if decision.ProjectedUp > e.cfg.LongCap {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonLongCap
		return decision
	}
	if decision.ProjectedDn < -e.cfg.ShortCap {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonShortCap
		return decision
	}
	if actions > 0 && e.budget.Remaining(now) < actions {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonRateBudget
		return decision
	}
	return decision
}

// AdmitOrder checks a single candidate order against the caps given the
// current live exposure on its side. Used during reconciliation where
// orders are admitted one by one.
func (e *Engine) AdmitOrder(side schema.OrderSide, qty schema.Quantity, liveSideQty schema.Quantity) schema.RiskDecision {
	decision := schema.RiskDecision{
		Action:     schema.RiskActionAllow,
		Reason:     schema.RiskReasonNone,
		Actions:    1,
		CurrentPos: e.position,
		LongCap:    e.cfg.LongCap,
		ShortCap:   e.cfg.ShortCap,
	}
	switch side {
	case schema.OrderSideBid:
		decision.ProjectedUp = e.position + liveSideQty + qty
		if decision.ProjectedUp > e.cfg.LongCap {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonLongCap
		}
	case schema.OrderSideAsk:
		decision.ProjectedDn = e.position - liveSideQty - qty
		if decision.ProjectedDn < -e.cfg.ShortCap {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonShortCap
		}
	default:
		decision.Action = schema.RiskActionDeny
	}
	return decision
}

// RecordAction consumes one unit of rate budget for a submit, cancel or
// amend. A false return means the action must be deferred to a later
// cycle; nothing is recorded.
func (e *Engine) RecordAction(kind schema.ActionKind, now int64) bool {
	if kind == schema.ActionUnknown {
		return false
	}
	return e.budget.TryRecord(now)
}

// OnFill updates position, cost basis and realized PnL. This is the only
// path that changes Position.
func (e *Engine) OnFill(fill schema.Fill) {
	signed := int64(fill.Qty)
	if fill.Side == schema.OrderSideAsk {
		signed = -signed
	}
	pre := int64(e.position)
	price := int64(fill.Price)

	switch {
	case pre > 0 && signed < 0:
		closing := min64(pre, -signed)
		e.realized += schema.Notional(closing * (price - int64(e.vwap)))
	case pre < 0 && signed > 0:
		closing := min64(-pre, signed)
		e.realized += schema.Notional(closing * (int64(e.vwap) - price))
	}

	next := pre + signed
	switch {
	case pre == 0 || sameSign(pre, signed):
		total := abs64(pre) + abs64(signed)
		if total > 0 {
			e.vwap = schema.Price((int64(e.vwap)*abs64(pre) + price*abs64(signed)) / total)
		}
	case next == 0:
		e.vwap = fill.Price
	case sameSign(next, signed):
		// Position flipped; the residual opened at the fill price.
		e.vwap = fill.Price
	}
	e.position = schema.Quantity(next)
}

// Mark recomputes unrealized PnL against the given mid and advances the
// equity high-watermark.
func (e *Engine) Mark(mid schema.Price) {
	if mid <= 0 {
		return
	}
	e.unrealized = schema.Notional(int64(e.position) * (int64(mid) - int64(e.vwap)))
	equity := e.realized + e.unrealized
	if !e.marked || equity > e.highWater {
		e.highWater = equity
	}
	e.marked = true
}

// Skew shifts the effective quoting midpoint opposite to inventory sign.
// Magnitude is proportional to |position| relative to the cap on that
// side, zero at zero inventory, and saturates at the cap.
func (e *Engine) Skew(fv schema.Price, position schema.Quantity) schema.Price {
	if position == 0 || fv <= 0 || e.cfg.SkewSensitivityBps == 0 {
		return fv
	}
	cap := e.cfg.LongCap
	if position < 0 {
		cap = e.cfg.ShortCap
	}
	if cap <= 0 {
		return fv
	}
	pos := int64(position)
	if pos > int64(cap) {
		pos = int64(cap)
	}
	if pos < -int64(cap) {
		pos = -int64(cap)
	}
	offset := int64(fv) * e.cfg.SkewSensitivityBps * pos / (int64(cap) * 10_000)
	return fv - schema.Price(offset)
}

// DrawdownBps returns the current drawdown from the equity high-watermark
// in basis points.
func (e *Engine) DrawdownBps() int64 {
	if !e.marked || e.highWater <= 0 {
		return 0
	}
	equity := e.realized + e.unrealized
	drop := int64(e.highWater - equity)
	if drop <= 0 {
		return 0
	}
	return drop * 10_000 / int64(e.highWater)
}

// DrawdownAdjust maps the current drawdown to spread/size multipliers in
// basis points of scale (10000 = unchanged) and a hard-stop flag.
func (e *Engine) DrawdownAdjust() (spreadScaleBps, sizeScaleBps int64, hardStop bool) {
	dd := e.DrawdownBps()
	soft, hard := e.cfg.DrawdownSoftBps, e.cfg.DrawdownHardBps
	if hard <= 0 || dd <= soft {
		return 10_000, 10_000, false
	}
	if dd >= hard {
		return 20_000, 0, true
	}
	// Quadratic severity between the soft and hard stops.
	sev := (dd - soft) * 10_000 / (hard - soft)
	curved := sev * sev / 10_000
	sizeScale := 10_000 - curved*7_000/10_000
	if sizeScale < 2_000 {
		sizeScale = 2_000
	}
	return 10_000 + curved*15_000/10_000, sizeScale, false
}

func (e *Engine) hardStopped() bool {
	_, _, hard := e.DrawdownAdjust()
	return hard
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
