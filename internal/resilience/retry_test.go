package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("flaky"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_StopsOnPermanent(t *testing.T) {
	permanent := errors.New("bad credentials")
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("flaky"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("flaky"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	cfg := fastConfig()
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "retry me" }

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("retry me")
		}
		return 0, errors.New("give up")
	})
	require.Error(t, err)
	assert.Equal(t, "give up", err.Error())
	assert.Equal(t, 2, calls)
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	cfg := fastConfig()
	var attempts []int
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	_, _ = DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(errors.New("flaky"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestComputeBackoff_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(2, cfg), "capped")
	assert.Equal(t, 300*time.Millisecond, computeBackoff(5, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("bad request")))

	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 503)))
	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
	assert.True(t, IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(errors.New("dial tcp: i/o timeout")))

	// Wrapped transient errors are still detected.
	wrapped := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
