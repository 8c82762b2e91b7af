package schema

import "fmt"

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=2 means the integer value is scaled by 1e2.
type Scale int32

// ScaleSpec defines scaling for the numeric fields of one basket.
type ScaleSpec struct {
	PriceScale    Scale
	QuantityScale Scale
}

// Component describes one basket constituent and its weight in the
// synthetic fair value. Weights are expressed in basis points and must
// sum to 10000 across the basket.
type Component struct {
	ID        SymbolID
	Name      string
	WeightBps int64
}

// WeightDenominator is the full-basket weight in basis points.
const WeightDenominator int64 = 10_000

// Basket maps the quoted ETF instrument to its weighted components.
type Basket struct {
	etf        string
	tickSize   Price
	scale      ScaleSpec
	components []Component
	byName     map[string]SymbolID
}

// NewBasket creates a basket for the given ETF instrument.
func NewBasket(etf string, tickSize Price, scale ScaleSpec) (*Basket, error) {
	if etf == "" {
		return nil, fmt.Errorf("etf name is empty")
	}
	if tickSize <= 0 {
		return nil, fmt.Errorf("tick size must be > 0")
	}
	if scale.PriceScale < 0 || scale.QuantityScale < 0 {
		return nil, fmt.Errorf("scale must be >= 0")
	}
	return &Basket{
		etf:      etf,
		tickSize: tickSize,
		scale:    scale,
		byName:   make(map[string]SymbolID),
	}, nil
}

// AddComponent registers a basket constituent and returns its ID.
func (b *Basket) AddComponent(name string, weightBps int64) (SymbolID, error) {
	if name == "" {
		return 0, fmt.Errorf("component name is empty")
	}
	if name == b.etf {
		return 0, fmt.Errorf("component must not be the etf itself: %s", name)
	}
	if weightBps <= 0 {
		return 0, fmt.Errorf("component weight must be > 0: %s", name)
	}
	if _, ok := b.byName[name]; ok {
		return 0, fmt.Errorf("component already exists: %s", name)
	}
	id := SymbolID(len(b.components) + 1)
	b.components = append(b.components, Component{ID: id, Name: name, WeightBps: weightBps})
	b.byName[name] = id
	return id, nil
}

// Validate checks that the component weights cover the whole basket.
func (b *Basket) Validate() error {
	if len(b.components) == 0 {
		return fmt.Errorf("basket has no components")
	}
	var sum int64
	for _, c := range b.components {
		sum += c.WeightBps
	}
	if sum != WeightDenominator {
		return fmt.Errorf("component weights sum to %d bps, want %d", sum, WeightDenominator)
	}
	return nil
}

// ETF returns the quoted instrument name.
func (b *Basket) ETF() string {
	return b.etf
}

// TickSize returns the exchange tick size for the quoted instrument.
func (b *Basket) TickSize() Price {
	return b.tickSize
}

// Scale returns the basket's scaling spec.
func (b *Basket) Scale() ScaleSpec {
	return b.scale
}

// Components returns the basket constituents in registration order.
func (b *Basket) Components() []Component {
	return b.components
}

// ComponentCount returns the number of constituents.
func (b *Basket) ComponentCount() int {
	return len(b.components)
}

// ComponentIDByName resolves a component name.
func (b *Basket) ComponentIDByName(name string) (SymbolID, bool) {
	id, ok := b.byName[name]
	return id, ok
}

// Component returns the component with the given ID.
func (b *Basket) Component(id SymbolID) (Component, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(b.components) {
		return Component{}, false
	}
	return b.components[idx], true
}
