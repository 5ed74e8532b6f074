package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRace = errors.New("race")

func fastConfig() Config {
	return Config{
		MaxAttempts:        3,
		InitialInterval:    time.Millisecond,
		BackoffCoefficient: 1,
		Retryable:          func(err error) bool { return errors.Is(err, errRace) },
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), nil, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errRace
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), nil, func() (int, error) {
		calls++
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), nil, func() (struct{}, error) {
		calls++
		return struct{}{}, errRace
	})

	assert.ErrorIs(t, err, errRace)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, fastConfig(), nil, func() (int, error) {
		t.Fatal("fn must not run")
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
