package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBudget_AllotCapsToLocalLimit(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newBudgetAt(clock.now, 20*time.Second)

	got, ok := b.Allot(8 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 8*time.Second, got)
}

func TestBudget_AllotCapsToRemaining(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newBudgetAt(clock.now, 20*time.Second)
	clock.advance(17 * time.Second)

	got, ok := b.Allot(8 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, got)
}

func TestBudget_Exhausted(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newBudgetAt(clock.now, time.Second)
	clock.advance(2 * time.Second)

	got, ok := b.Allot(8 * time.Second)
	assert.False(t, ok)
	assert.Zero(t, got)
	assert.True(t, b.Exhausted())
	assert.Zero(t, b.Remaining())
}

func TestBudget_DeadlineNeverMoves(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := newBudgetAt(clock.now, 20*time.Second)
	deadline := b.Deadline()

	clock.advance(5 * time.Second)
	_, _ = b.Allot(8 * time.Second)

	assert.Equal(t, deadline, b.Deadline())
	assert.Equal(t, 15*time.Second, b.Remaining())
}

func TestBounded_ReturnsResultWhenCallWins(t *testing.T) {
	val, err := Bounded(context.Background(), time.Second, func(_ context.Context) (string, error) {
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", val)
}

func TestBounded_PropagatesCallError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Bounded(context.Background(), time.Second, func(_ context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestBounded_TimerWinsAndCancelsLoser(t *testing.T) {
	var cancelled atomic.Bool
	released := make(chan struct{})

	start := time.Now()
	_, err := Bounded(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		defer close(released)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return 1, nil
		}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptTimeout)
	assert.True(t, IsTransient(err))
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("losing call was not cancelled")
	}
	assert.True(t, cancelled.Load())
}

func TestBounded_NoTimeLeft(t *testing.T) {
	var called atomic.Bool
	_, err := Bounded(context.Background(), 0, func(_ context.Context) (int, error) {
		called.Store(true)
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrNoTime)
	assert.False(t, called.Load())
}

func TestBounded_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bounded(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
}
