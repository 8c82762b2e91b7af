package og

import (
	"errors"

	"main/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

// OrderState tracks the lifecycle of an order. Submits and amends sit in
// Pending until the exchange acknowledges them; only acks, fills and
// cancels move an order forward.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStatePending
	OrderStateResting
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

// Order holds the manager's view of one exchange order.
type Order struct {
	ID        uint64
	Side      schema.OrderSide
	Level     uint16
	Price     schema.Price
	Qty       schema.Quantity
	LeavesQty schema.Quantity
	State     OrderState

	// Amend target carried while the amend ack is outstanding.
	PendingPrice schema.Price
	PendingQty   schema.Quantity

	CancelRequested bool
}

// Live reports whether the order may still rest on the book.
func (o *Order) Live() bool {
	return o != nil && !isTerminal(o.State)
}

// StateMachine updates orders from intents, acks and fills. Illegal
// transitions are reported as errors, never applied.
type StateMachine struct {
	orders map[uint64]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[uint64]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id uint64) (*Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// ApplySubmit creates a new order in Pending state.
func (m *StateMachine) ApplySubmit(intent schema.OrderIntent) (*Order, error) {
	if intent.OrderID == 0 {
		return nil, ErrUnknownOrder
	}
	if _, ok := m.orders[intent.OrderID]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ID:        intent.OrderID,
		Side:      intent.Side,
		Level:     intent.Level,
		Price:     intent.Price,
		Qty:       intent.Qty,
		LeavesQty: intent.Qty,
		State:     OrderStatePending,
	}
	m.orders[o.ID] = o
	return o, nil
}

// ApplyAmend moves a resting order back through Pending with the amend
// target carried until the ack arrives. The order id is reused.
func (m *StateMachine) ApplyAmend(intent schema.OrderIntent) (*Order, error) {
	o, ok := m.orders[intent.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) || o.State == OrderStatePending {
		return o, ErrInvalidTransition
	}
	o.PendingPrice = intent.Price
	o.PendingQty = intent.Qty
	o.State = OrderStatePending
	return o, nil
}

// ApplyCancelRequest marks a live order as cancel-requested. The order
// stays live until the cancel ack arrives.
func (m *StateMachine) ApplyCancelRequest(id uint64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	o.CancelRequested = true
	return o, nil
}

// ApplyAck updates an order from an exchange acknowledgment.
func (m *StateMachine) ApplyAck(ack schema.OrderAck) (*Order, error) {
	o, ok := m.orders[ack.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}

	switch ack.Status {
	case schema.OrderAckStatusAcked:
		if o.PendingQty != 0 || o.PendingPrice != 0 {
			// Amend acknowledged: new price and remaining size take effect.
			filled := o.Qty - o.LeavesQty
			o.Price = o.PendingPrice
			o.LeavesQty = o.PendingQty
			o.Qty = filled + o.PendingQty
			o.PendingPrice = 0
			o.PendingQty = 0
		}
		if o.LeavesQty < o.Qty && o.LeavesQty > 0 {
			o.State = OrderStatePartFilled
		} else {
			o.State = OrderStateResting
		}
	case schema.OrderAckStatusRejected:
		o.State = OrderStateRejected
	case schema.OrderAckStatusCanceled:
		o.State = OrderStateCanceled
	case schema.OrderAckStatusPartFilled:
		o.State = OrderStatePartFilled
	case schema.OrderAckStatusFilled:
		o.State = OrderStateFilled
	default:
		return o, ErrInvalidTransition
	}
	return o, nil
}

// ApplyFill updates an order from a fill event.
func (m *StateMachine) ApplyFill(fill schema.Fill) (*Order, error) {
	o, ok := m.orders[fill.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	qty := int64(fill.Qty)
	if qty <= 0 {
		return o, ErrInvalidFill
	}
	leaves := int64(o.LeavesQty) - qty
	if leaves <= 0 {
		o.LeavesQty = 0
		o.State = OrderStateFilled
	} else {
		o.LeavesQty = schema.Quantity(leaves)
		o.State = OrderStatePartFilled
	}
	return o, nil
}

// Forget drops a terminal order from tracking.
func (m *StateMachine) Forget(id uint64) {
	if o, ok := m.orders[id]; ok && isTerminal(o.State) {
		delete(m.orders, id)
	}
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}
