package schema

// Price is a scaled integer. The scale is defined by the basket registry.
type Price int64

// Quantity is a scaled integer. The scale is defined by the basket registry.
type Quantity int64

// Notional is a scaled integer. The scale is defined by the basket registry.
type Notional int64

// Fee is a scaled integer. The scale is defined by the basket registry.
type Fee int64

// SymbolID is the numeric identifier for a basket component.
type SymbolID uint32

// OrderSide describes order direction. Bids buy, asks sell.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBid
	OrderSideAsk
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBid:
		return OrderSideAsk
	case OrderSideAsk:
		return OrderSideBid
	default:
		return OrderSideUnknown
	}
}

// ActionKind classifies an exchange action for rate accounting.
type ActionKind uint16

const (
	ActionUnknown ActionKind = iota
	ActionSubmit
	ActionCancel
	ActionAmend
)

// ComponentQuote is the best bid/ask and last trade for one basket component.
// A zero price marks the field as absent.
type ComponentQuote struct {
	SymbolID  SymbolID
	Flags     uint16
	Reserved  uint16
	BidPrice  Price
	BidSize   Quantity
	AskPrice  Price
	AskSize   Quantity
	LastPrice Price
}

// MarketSnapshot is one tick of market data covering the basket components.
// It is immutable once constructed and replaced wholesale each tick.
type MarketSnapshot struct {
	TsEvent    int64
	Components []ComponentQuote
}

// OrderIntent is the payload for EventOrderIntent. Cancels and amends reuse
// the OrderID of the order they target.
type OrderIntent struct {
	OrderID uint64
	Kind    ActionKind
	Side    OrderSide
	Level   uint16
	Flags   uint16
	Price   Price
	Qty     Quantity
}

// OrderAckStatus describes the outcome of an order acknowledgment.
type OrderAckStatus uint16

const (
	OrderAckStatusUnknown OrderAckStatus = iota
	OrderAckStatusAcked
	OrderAckStatusRejected
	OrderAckStatusCanceled
	OrderAckStatusPartFilled
	OrderAckStatusFilled
)

// OrderAckReason describes the reason for an order acknowledgment.
type OrderAckReason uint16

const (
	OrderAckReasonNone OrderAckReason = iota
	OrderAckReasonExchangeReject
	OrderAckReasonRateLimit
	OrderAckReasonWouldCross
	OrderAckReasonInvalidPrice
	OrderAckReasonInvalidQty
	OrderAckReasonUnknownOrder
)

// OrderAck is the payload for EventOrderAck.
type OrderAck struct {
	OrderID   uint64
	Status    OrderAckStatus
	Reason    OrderAckReason
	Flags     uint16
	Reserved  uint16
	Price     Price
	Qty       Quantity
	LeavesQty Quantity
}

// RiskAction is the outcome of a risk decision.
type RiskAction uint16

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is a coarse reason code for risk decisions.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonPulled
	RiskReasonRateBudget
	RiskReasonLongCap
	RiskReasonShortCap
	RiskReasonHardStop
)

// RiskDecision is the payload for EventRiskDecision.
type RiskDecision struct {
	Action      RiskAction
	Reason      RiskReason
	Actions     uint32
	CurrentPos  Quantity
	ProjectedUp Quantity
	ProjectedDn Quantity
	LongCap     Quantity
	ShortCap    Quantity
}

// Allowed reports whether the decision permits the evaluated actions.
func (d RiskDecision) Allowed() bool {
	return d.Action == RiskActionAllow
}

// Fill is the payload for EventFill.
type Fill struct {
	OrderID uint64
	Side    OrderSide
	Flags   uint16
	Price   Price
	Qty     Quantity
	Fee     Fee
}
