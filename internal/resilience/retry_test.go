package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(func() error {
		attempts++
		return nil
	}, DefaultRetryConfig(), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	err := Retry(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, config, nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	err := Retry(func() error {
		attempts++
		return errors.New("persistent error")
	}, config, nil)

	if err == nil {
		t.Error("Expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	fatal := errors.New("bad request")
	attempts := 0
	err := Retry(func() error {
		attempts++
		return fatal
	}, config, func(err error) bool { return false })

	if err != fatal {
		t.Errorf("Expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_NilConfigUsesDefaults(t *testing.T) {
	attempts := 0
	err := Retry(func() error {
		attempts++
		return nil
	}, nil, nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("invalid API key"), false},
		{errors.New("unexpected status 400"), false},
	}

	for _, tc := range cases {
		got := IsRetryableNetworkError(tc.err)
		if got != tc.retryable {
			t.Errorf("IsRetryableNetworkError(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}
