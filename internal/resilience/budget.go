// Package resilience provides the timing and failure primitives used around
// every outbound call: a per-request time budget, a cancellable race against a
// per-call timer, retry with backoff and a circuit breaker.
package resilience

import "time"

// Budget is a single deadline fixed when a request starts. Every attempt made
// on behalf of that request draws from it; it is never extended.
type Budget struct {
	deadline time.Time
	now      func() time.Time
}

// NewBudget starts a budget of total length at the current time.
func NewBudget(total time.Duration) Budget {
	return newBudgetAt(time.Now, total)
}

func newBudgetAt(now func() time.Time, total time.Duration) Budget {
	return Budget{deadline: now().Add(total), now: now}
}

// Deadline returns the absolute instant the budget runs out.
func (b Budget) Deadline() time.Time {
	return b.deadline
}

// Remaining returns the time left, or zero once the deadline has passed.
func (b Budget) Remaining() time.Duration {
	left := b.deadline.Sub(b.now())
	if left < 0 {
		return 0
	}
	return left
}

// Exhausted reports whether no time is left.
func (b Budget) Exhausted() bool {
	return b.Remaining() <= 0
}

// Allot returns min(limit, Remaining()). ok is false when the budget is spent
// and no attempt may be started.
func (b Budget) Allot(limit time.Duration) (time.Duration, bool) {
	left := b.Remaining()
	if left <= 0 {
		return 0, false
	}
	if limit > 0 && limit < left {
		return limit, true
	}
	return left, true
}
