package og

import (
	"fmt"
	"sort"

	"main/internal/schema"
)

type slot struct {
	side  schema.OrderSide
	price schema.Price
}

// Book indexes live orders by id and by (side, price) slot. At most one
// live order may occupy a slot; duplicate quoting at a price is a defect.
type Book struct {
	byID   map[uint64]*Order
	bySlot map[slot]uint64
}

// NewBook creates an empty live-order book.
func NewBook() *Book {
	return &Book{
		byID:   make(map[uint64]*Order),
		bySlot: make(map[slot]uint64),
	}
}

// Add inserts a live order. It fails when the (side, price) slot is
// already occupied or the id is already tracked.
func (b *Book) Add(o *Order) error {
	if o == nil || o.ID == 0 {
		return ErrUnknownOrder
	}
	if _, ok := b.byID[o.ID]; ok {
		return ErrDuplicateOrder
	}
	s := slot{side: o.Side, price: o.Price}
	if id, ok := b.bySlot[s]; ok {
		return fmt.Errorf("slot %v@%d held by order %d: %w", o.Side, o.Price, id, ErrDuplicateOrder)
	}
	b.byID[o.ID] = o
	b.bySlot[s] = o.ID
	return nil
}

// Remove drops an order from both indexes.
func (b *Book) Remove(id uint64) {
	o, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.byID, id)
	s := slot{side: o.Side, price: o.Price}
	if b.bySlot[s] == id {
		delete(b.bySlot, s)
	}
}

// Reprice moves an order to a new price slot after an amend ack.
func (b *Book) Reprice(id uint64, old schema.Price) error {
	o, ok := b.byID[id]
	if !ok {
		return ErrUnknownOrder
	}
	if old == o.Price {
		return nil
	}
	next := slot{side: o.Side, price: o.Price}
	if held, ok := b.bySlot[next]; ok && held != id {
		return fmt.Errorf("slot %v@%d held by order %d: %w", o.Side, o.Price, held, ErrDuplicateOrder)
	}
	prev := slot{side: o.Side, price: old}
	if b.bySlot[prev] == id {
		delete(b.bySlot, prev)
	}
	b.bySlot[next] = o.ID
	return nil
}

// ByID returns a tracked order.
func (b *Book) ByID(id uint64) (*Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// AtSlot returns the order resting at (side, price), if any.
func (b *Book) AtSlot(side schema.OrderSide, price schema.Price) (*Order, bool) {
	id, ok := b.bySlot[slot{side: side, price: price}]
	if !ok {
		return nil, false
	}
	o, ok := b.byID[id]
	return o, ok
}

// Len returns the number of tracked orders.
func (b *Book) Len() int {
	return len(b.byID)
}

// Side returns the live orders on a side, best to worst: bids by
// descending price, asks by ascending.
func (b *Book) Side(side schema.OrderSide) []*Order {
	out := make([]*Order, 0, len(b.byID))
	for _, o := range b.byID {
		if o.Side == side {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if side == schema.OrderSideBid {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// SideExposure sums the projected remaining size on a side, the live
// exposure used by risk admission. An order with an outstanding amend
// counts the larger of its current and amended size, so admission never
// under-counts while the ack is in flight.
func (b *Book) SideExposure(side schema.OrderSide) schema.Quantity {
	var sum schema.Quantity
	for _, o := range b.byID {
		if o.Side != side {
			continue
		}
		q := o.LeavesQty
		if o.State == OrderStatePending && o.PendingQty > q {
			q = o.PendingQty
		}
		sum += q
	}
	return sum
}

// All returns every tracked order in unspecified order.
func (b *Book) All() []*Order {
	out := make([]*Order, 0, len(b.byID))
	for _, o := range b.byID {
		out = append(out, o)
	}
	return out
}
