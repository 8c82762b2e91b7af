package schema

// QuoteLevel is one desired resting quote at a ladder level.
type QuoteLevel struct {
	Side  OrderSide
	Level uint16
	Price Price
	Size  Quantity
}

// TargetLadder is the full set of intended quotes for one cycle, best to
// worst per side. It is immutable once produced and superseded wholesale
// the next cycle.
type TargetLadder struct {
	Bids []QuoteLevel
	Asks []QuoteLevel
}

// Empty reports whether the ladder carries no levels.
func (l TargetLadder) Empty() bool {
	return len(l.Bids) == 0 && len(l.Asks) == 0
}

// Levels returns the total number of levels on both sides.
func (l TargetLadder) Levels() int {
	return len(l.Bids) + len(l.Asks)
}

// BidExposure is the sum of bid sizes, the worst-case long add.
func (l TargetLadder) BidExposure() Quantity {
	var sum Quantity
	for _, lvl := range l.Bids {
		sum += lvl.Size
	}
	return sum
}

// AskExposure is the sum of ask sizes, the worst-case short add.
func (l TargetLadder) AskExposure() Quantity {
	var sum Quantity
	for _, lvl := range l.Asks {
		sum += lvl.Size
	}
	return sum
}
