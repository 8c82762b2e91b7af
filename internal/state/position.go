package state

import "main/internal/schema"

// Tracker rebuilds signed inventory and PnL from a fill stream. It mirrors
// the live accounting in the risk engine so a recovered session resumes
// with the numbers it crashed with.
type Tracker struct {
	position schema.Quantity
	vwap     schema.Price
	realized schema.Notional
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ApplyFill folds one fill into position, entry price and realized PnL.
func (t *Tracker) ApplyFill(fill schema.Fill) {
	signed := int64(fill.Qty)
	if fill.Side == schema.OrderSideAsk {
		signed = -signed
	}
	pre := int64(t.position)
	price := int64(fill.Price)

	switch {
	case pre > 0 && signed < 0:
		closing := min64(pre, -signed)
		t.realized += schema.Notional(closing * (price - int64(t.vwap)))
	case pre < 0 && signed > 0:
		closing := min64(-pre, signed)
		t.realized += schema.Notional(closing * (int64(t.vwap) - price))
	}

	next := pre + signed
	switch {
	case pre == 0 || sameSign(pre, signed):
		total := abs64(pre) + abs64(signed)
		if total > 0 {
			t.vwap = schema.Price((int64(t.vwap)*abs64(pre) + price*abs64(signed)) / total)
		}
	case next == 0, sameSign(next, signed):
		t.vwap = fill.Price
	}
	t.position = schema.Quantity(next)
}

// Position returns the current signed inventory.
func (t *Tracker) Position() schema.Quantity { return t.position }

// Vwap returns the volume weighted entry price of the open position.
func (t *Tracker) Vwap() schema.Price { return t.vwap }

// Realized returns realized PnL at basket scale.
func (t *Tracker) Realized() schema.Notional { return t.realized }

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
