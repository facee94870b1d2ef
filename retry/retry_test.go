package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	l := Linear{
		Attempts: 3,
		OnRetry:  func(attempt int, _ error) { retried = append(retried, attempt) },
	}

	err := l.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestLinearExhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Linear{Attempts: 3}.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestLinearBackoffGrows(t *testing.T) {
	var stamps []time.Time
	step := 20 * time.Millisecond
	_ = Linear{Attempts: 3, Step: step}.Do(context.Background(), func(context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.New("fail")
	})

	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), step)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 2*step)
}

func TestLinearStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Linear{Attempts: 5, Step: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPoll(t *testing.T) {
	n := 0
	ok, err := Poll(context.Background(), 3, 0, func() bool {
		n++
		return n == 2
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n = 0
	ok, err = Poll(context.Background(), 3, 0, func() bool { n++; return false })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, n)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
