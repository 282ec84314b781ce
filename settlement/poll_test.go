package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollStopsOnDone(t *testing.T) {
	p := Poller{Interval: time.Millisecond, Attempts: 10}

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollTerminalFailureStopsRetrying(t *testing.T) {
	p := Poller{Interval: time.Millisecond, Attempts: 10}
	terminal := errors.New("reverted")

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return true, terminal
	})
	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestPollExhaustsBudget(t *testing.T) {
	p := Poller{Interval: time.Millisecond, Attempts: 4}

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.ErrorIs(t, err, errNotConfirmed)
	assert.Equal(t, 4, calls)
}

func TestPollTransientErrorConsumesAttempt(t *testing.T) {
	p := Poller{Interval: time.Millisecond, Attempts: 3}
	transient := errors.New("node flaked")

	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, transient
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPollHonorsContext(t *testing.T) {
	p := Poller{Interval: time.Hour, Attempts: 10}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Poll(ctx, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
