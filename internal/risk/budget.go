package risk

import "time"

// RateBudget is a sliding-window counter of exchange actions. Every
// submit, cancel and amend consumes one unit; the window and quota mirror
// the exchange's published limits, so exhausting the budget here defers
// the action instead of provoking an exchange-side rejection.
type RateBudget struct {
	quota  int
	window int64
	stamps []int64
}

// NewRateBudget creates a budget of quota actions per window.
func NewRateBudget(quota int, window time.Duration) *RateBudget {
	if quota < 0 {
		quota = 0
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateBudget{
		quota:  quota,
		window: int64(window),
		stamps: make([]int64, 0, quota),
	}
}

// Remaining returns the number of actions still permitted at time now.
func (b *RateBudget) Remaining(now int64) int {
	b.prune(now)
	return b.quota - len(b.stamps)
}

// TryRecord consumes one unit of budget. It returns false, recording
// nothing, when the window is already at quota.
func (b *RateBudget) TryRecord(now int64) bool {
	b.prune(now)
	if len(b.stamps) >= b.quota {
		return false
	}
	b.stamps = append(b.stamps, now)
	return true
}

// prune drops stamps that have fallen out of the rolling window.
func (b *RateBudget) prune(now int64) {
	cutoff := now - b.window
	idx := 0
	for idx < len(b.stamps) && b.stamps[idx] <= cutoff {
		idx++
	}
	if idx > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[idx:]...)
	}
}
