package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrAttemptTimeout is returned by Bounded when the timer fires first.
var ErrAttemptTimeout = eris.New("attempt timed out")

// ErrNoTime is returned by Bounded when it is handed a non-positive limit.
var ErrNoTime = eris.New("no time left for attempt")

// Bounded races fn against a timer of length limit and returns whichever
// settles first. When the timer wins, fn's context is cancelled so the
// underlying request is torn down, and ErrAttemptTimeout is returned wrapped
// in a TransientError. A late result from fn is dropped.
func Bounded[T any](ctx context.Context, limit time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if limit <= 0 {
		return zero, ErrNoTime
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type settled struct {
		val T
		err error
	}
	// Buffered so the call goroutine can always deliver and exit after losing.
	done := make(chan settled, 1)
	go func() {
		val, err := fn(callCtx)
		done <- settled{val: val, err: err}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case s := <-done:
		return s.val, s.err
	case <-timer.C:
		return zero, NewTransientError(eris.Wrapf(ErrAttemptTimeout, "after %s", limit), 0)
	case <-ctx.Done():
		return zero, eris.Wrap(ctx.Err(), "attempt abandoned")
	}
}
