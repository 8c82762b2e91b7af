package og

import (
	"github.com/yanun0323/logs"

	"main/internal/risk"
	"main/internal/schema"
)

// Sender issues order intents to the exchange. Actions are fire-and-forget;
// acknowledgements arrive asynchronously as OrderAck events.
type Sender interface {
	Send(intent schema.OrderIntent) error
}

// Action is one exchange action issued during a reconciliation cycle.
type Action struct {
	Kind   schema.ActionKind
	Intent schema.OrderIntent
}

// Config controls amend-vs-replace matching tolerances.
type Config struct {
	// PriceTolerance is the maximum price distance, in price units, at
	// which a live order still matches a target level.
	PriceTolerance schema.Price `json:"priceTolerance"`
	// SizeTolerance is the maximum remaining-size difference that an
	// in-place amend may bridge; larger differences replace the order.
	SizeTolerance schema.Quantity `json:"sizeTolerance"`
}

// Reconciler converges the live-order book toward a target ladder with
// the minimal number of create/cancel/amend actions. Every action is
// cleared through the risk engine first; a denied action is skipped and
// the remainder of the cycle continues.
type Reconciler struct {
	cfg    Config
	sm     *StateMachine
	book   *Book
	risk   *risk.Engine
	sender Sender
	nextID uint64
}

// NewReconciler creates a reconciler around the given collaborators.
func NewReconciler(cfg Config, riskEngine *risk.Engine, sender Sender) *Reconciler {
	return &Reconciler{
		cfg:    cfg,
		sm:     NewStateMachine(),
		book:   NewBook(),
		risk:   riskEngine,
		sender: sender,
	}
}

// Book exposes the live-order book for observers.
func (r *Reconciler) Book() *Book {
	return r.book
}

// LiveCount returns the number of tracked live orders.
func (r *Reconciler) LiveCount() int {
	return r.book.Len()
}

// Reconcile computes and issues the actions that move the live book
// toward the target ladder. The returned slice lists the actions actually
// issued this cycle.
func (r *Reconciler) Reconcile(target schema.TargetLadder, now int64) []Action {
	var actions []Action
	actions = r.reconcileSide(schema.OrderSideBid, target.Bids, now, actions)
	actions = r.reconcileSide(schema.OrderSideAsk, target.Asks, now, actions)
	return actions
}

type pairing struct {
	target schema.QuoteLevel
	live   *Order
}

func (r *Reconciler) reconcileSide(side schema.OrderSide, targets []schema.QuoteLevel, now int64, actions []Action) []Action {
	live := make([]*Order, 0, 8)
	for _, o := range r.book.Side(side) {
		if o.Live() && !o.CancelRequested {
			live = append(live, o)
		}
	}

	// Match each target to the nearest unmatched live order within the
	// price tolerance. Both lists run best-to-worst, so tie-breaks are
	// deterministic.
	taken := make([]bool, len(live))
	pairs := make([]pairing, 0, len(targets))
	unmatched := make([]schema.QuoteLevel, 0, len(targets))
	for _, tgt := range targets {
		best := -1
		var bestDist schema.Price
		for i, o := range live {
			if taken[i] {
				continue
			}
			dist := absPrice(o.Price - tgt.Price)
			if dist > r.cfg.PriceTolerance {
				continue
			}
			if best == -1 || dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best == -1 {
			unmatched = append(unmatched, tgt)
			continue
		}
		taken[best] = true
		pairs = append(pairs, pairing{target: tgt, live: live[best]})
	}

	// Cancels first: they free slots and exposure for the creates below.
	for i, o := range live {
		if !taken[i] {
			actions = r.issueCancel(o, now, actions)
		}
	}

	for _, p := range pairs {
		actions = r.convergePair(p, now, actions)
	}

	liveQty := r.book.SideExposure(side)
	for _, tgt := range unmatched {
		var issued bool
		actions, issued = r.issueCreate(tgt, liveQty, now, actions)
		if issued {
			liveQty += tgt.Size
		}
	}
	return actions
}

// convergePair amends a matched order in place when the difference is
// within tolerance, replaces it otherwise, and does nothing when the live
// order already equals the target.
func (r *Reconciler) convergePair(p pairing, now int64, actions []Action) []Action {
	o, tgt := p.live, p.target
	if o.Price == tgt.Price && o.LeavesQty == tgt.Size {
		return actions
	}
	if absQty(o.LeavesQty-tgt.Size) <= r.cfg.SizeTolerance {
		return r.issueAmend(o, tgt, now, actions)
	}
	actions = r.issueCancel(o, now, actions)
	actions, _ = r.issueCreate(tgt, r.book.SideExposure(tgt.Side), now, actions)
	return actions
}

func (r *Reconciler) issueCreate(tgt schema.QuoteLevel, liveSideQty schema.Quantity, now int64, actions []Action) ([]Action, bool) {
	// Re-validate against the latest known state: the slot may still be
	// held by an order whose cancel ack has not arrived.
	if _, held := r.book.AtSlot(tgt.Side, tgt.Price); held {
		return actions, false
	}
	if decision := r.risk.AdmitOrder(tgt.Side, tgt.Size, liveSideQty); !decision.Allowed() {
		return actions, false
	}
	if !r.risk.RecordAction(schema.ActionSubmit, now) {
		return actions, false
	}

	r.nextID++
	intent := schema.OrderIntent{
		OrderID: r.nextID,
		Kind:    schema.ActionSubmit,
		Side:    tgt.Side,
		Level:   tgt.Level,
		Price:   tgt.Price,
		Qty:     tgt.Size,
	}
	o, err := r.sm.ApplySubmit(intent)
	if err != nil {
		logs.Errorf("apply submit order %d, err: %+v", intent.OrderID, err)
		return actions, false
	}
	if err := r.book.Add(o); err != nil {
		logs.Errorf("track order %d, err: %+v", intent.OrderID, err)
		o.State = OrderStateRejected
		r.sm.Forget(o.ID)
		return actions, false
	}
	if err := r.sender.Send(intent); err != nil {
		logs.Warnf("send submit order %d, err: %+v", intent.OrderID, err)
		r.book.Remove(o.ID)
		o.State = OrderStateRejected
		r.sm.Forget(o.ID)
		return actions, false
	}
	return append(actions, Action{Kind: schema.ActionSubmit, Intent: intent}), true
}

func (r *Reconciler) issueAmend(o *Order, tgt schema.QuoteLevel, now int64, actions []Action) []Action {
	if delta := tgt.Size - o.LeavesQty; delta > 0 {
		liveQty := r.book.SideExposure(o.Side) - o.LeavesQty
		if decision := r.risk.AdmitOrder(o.Side, tgt.Size, liveQty); !decision.Allowed() {
			return actions
		}
	}
	if !r.risk.RecordAction(schema.ActionAmend, now) {
		return actions
	}
	prevState := o.State

	intent := schema.OrderIntent{
		OrderID: o.ID,
		Kind:    schema.ActionAmend,
		Side:    o.Side,
		Level:   tgt.Level,
		Price:   tgt.Price,
		Qty:     tgt.Size,
	}
	if _, err := r.sm.ApplyAmend(intent); err != nil {
		logs.Warnf("apply amend order %d, err: %+v", o.ID, err)
		return actions
	}
	if err := r.sender.Send(intent); err != nil {
		logs.Warnf("send amend order %d, err: %+v", o.ID, err)
		o.PendingPrice = 0
		o.PendingQty = 0
		o.State = prevState
		return actions
	}
	return append(actions, Action{Kind: schema.ActionAmend, Intent: intent})
}

func (r *Reconciler) issueCancel(o *Order, now int64, actions []Action) []Action {
	if o.CancelRequested || !o.Live() {
		return actions
	}
	if !r.risk.RecordAction(schema.ActionCancel, now) {
		return actions
	}
	intent := schema.OrderIntent{
		OrderID: o.ID,
		Kind:    schema.ActionCancel,
		Side:    o.Side,
		Price:   o.Price,
	}
	if _, err := r.sm.ApplyCancelRequest(o.ID); err != nil {
		logs.Warnf("apply cancel order %d, err: %+v", o.ID, err)
		return actions
	}
	if err := r.sender.Send(intent); err != nil {
		logs.Warnf("send cancel order %d, err: %+v", o.ID, err)
		o.CancelRequested = false
		return actions
	}
	return append(actions, Action{Kind: schema.ActionCancel, Intent: intent})
}

// CancelAll issues cancels for every live order, as far as the rate
// budget allows. Remaining orders are retried on later cycles; the caller
// must not quote again until LiveCount reaches zero.
func (r *Reconciler) CancelAll(now int64) []Action {
	var actions []Action
	for _, o := range r.book.All() {
		actions = r.issueCancel(o, now, actions)
	}
	return actions
}

// OnAck applies an exchange acknowledgement to the tracked order state.
func (r *Reconciler) OnAck(ack schema.OrderAck) error {
	o, ok := r.sm.Order(ack.OrderID)
	if !ok {
		return ErrUnknownOrder
	}
	prevPrice := o.Price
	o, err := r.sm.ApplyAck(ack)
	if err != nil {
		return err
	}
	switch o.State {
	case OrderStateResting, OrderStatePartFilled:
		if o.Price != prevPrice {
			if err := r.book.Reprice(o.ID, prevPrice); err != nil {
				return err
			}
		}
	case OrderStateRejected, OrderStateCanceled, OrderStateFilled:
		r.book.Remove(o.ID)
		r.sm.Forget(o.ID)
	}
	return nil
}

// OnFill applies a fill event to the tracked order state.
func (r *Reconciler) OnFill(fill schema.Fill) error {
	o, err := r.sm.ApplyFill(fill)
	if err != nil {
		return err
	}
	if o.State == OrderStateFilled {
		r.book.Remove(o.ID)
		r.sm.Forget(o.ID)
	}
	return nil
}

func absPrice(p schema.Price) schema.Price {
	if p < 0 {
		return -p
	}
	return p
}

func absQty(q schema.Quantity) schema.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
