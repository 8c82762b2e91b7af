package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator hands out ids that correlate a market tick with the
// decisions, intents and journal frames it produced. Ids are unique per
// process and strictly increasing, never globally unique.
type TraceGenerator struct {
	last uint64
}

// NewTraceGenerator seeds a generator. A zero seed starts from the wall
// clock so ids from restarted sessions do not collide in a shared journal.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	g := &TraceGenerator{}
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	g.last = seed
	return g
}

// Next returns a fresh trace id. Safe for concurrent use.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.last, 1)
}
