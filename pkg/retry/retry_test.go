package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) *Config {
	return &Config{
		MaxRetries:    retries,
		BackoffFactor: 2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Jitter:        time.Millisecond,
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := NewRetrier(fastConfig(3)).Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	expected := errors.New("still failing")
	attempts := 0
	err := NewRetrier(fastConfig(2)).Do(context.Background(), func() error {
		attempts++
		return expected
	})

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 3, attempts)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	notFound := errors.New("HTTP 404")
	attempts := 0
	err := NewRetrier(fastConfig(5)).Do(context.Background(), func() error {
		attempts++
		return Permanent(notFound)
	})

	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := NewDefaultRetrier().Do(ctx, func() error {
		cancel()
		return errors.New("operation error after cancel")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
