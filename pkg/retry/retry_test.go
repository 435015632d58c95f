package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_Success(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil // Success on third attempt
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonRetryable(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		AddJitter:    false,
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return NonRetryable(errors.New("bad request"))
	})

	assert.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		AddJitter:    false,
	}

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel() // Cancel during retry
	}()

	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5) // Should not complete all attempts
}

func TestRetry_MaxDelay(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond, // Low max delay
		Multiplier:   10.0,                  // High multiplier
		AddJitter:    false,
	}

	start := time.Now()

	_ = Do(ctx, cfg, func() error {
		return errors.New("error")
	})

	elapsed := time.Since(start)

	// Should have delays: 10ms + 25ms (capped) + 25ms (capped) = 60ms minimum
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestRetry_WithResult(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false,
	}

	attempts := 0
	result, err := DoWithResult(ctx, cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("not ready")
		}
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_RetryIfPredicate(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 5 * time.Millisecond,
		AddJitter:    false,
		RetryIf: func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && RetryableStatus(se.Code)
		},
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return &StatusError{Code: http.StatusNotFound}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable status should fail immediately")

	attempts = 0
	err = Do(ctx, cfg, func() error {
		attempts++
		if attempts < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}

	for _, test := range tests {
		assert.Equal(t, test.retryable, RetryableStatus(test.code), "status %d", test.code)
	}
}

func TestStatusError_Error(t *testing.T) {
	assert.Equal(t, "unexpected status 503", (&StatusError{Code: 503}).Error())
	assert.Equal(t, "unexpected status 429: throttled",
		(&StatusError{Code: 429, Body: "throttled"}).Error())
}

func TestRetry_HTTPConfig(t *testing.T) {
	cfg := HTTP()
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.NotNil(t, cfg.RetryIf)

	// Transport failures (no status) are retryable
	assert.True(t, cfg.RetryIf(errors.New("dial tcp: connection refused")))
	// Throttled and transient statuses are retryable
	assert.True(t, cfg.RetryIf(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, cfg.RetryIf(&StatusError{Code: http.StatusBadGateway}))
	// Client errors are not
	assert.False(t, cfg.RetryIf(&StatusError{Code: http.StatusBadRequest}))
}

func TestRetry_ZeroAttempts(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts: 0, // Should still run once
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

// Benchmark to ensure performance
func BenchmarkRetry_Success(b *testing.B) {
	ctx := context.Background()
	cfg := Config{
		MaxAttempts:  1,
		InitialDelay: 1 * time.Millisecond,
		AddJitter:    false,
	}

	for i := 0; i < b.N; i++ {
		_ = Do(ctx, cfg, func() error {
			return nil
		})
	}
}
