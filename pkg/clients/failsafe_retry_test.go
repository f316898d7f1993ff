package clients

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go"
	fsCircuitbreaker "github.com/failsafe-go/failsafe-go/circuitbreaker"
)

//nolint:bodyclose // test responses have no body
func TestHTTPRetryPolicyClampsHostileConfig(t *testing.T) {
	// A config with negative retries and zero delays must degrade to a
	// single attempt, not spin or panic.
	policy := NewHTTPRetryPolicy(HTTPExecutorConfig{MaxRetries: -7})

	var attempts int32
	_, err := failsafe.With(policy).Get(func() (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("aldis unreachable")
	})
	if err == nil {
		t.Fatal("expected the lone attempt to surface its error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

//nolint:bodyclose // test responses have no body
func TestHTTPRetryPolicyRecoversWithinBudget(t *testing.T) {
	policy := NewHTTPRetryPolicy(HTTPExecutorConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
	})

	// Two 503s from a restarting engine, then a clean response. The
	// default predicate treats 5xx as retryable.
	var attempts int32
	resp, err := failsafe.With(policy).Get(func() (*http.Response, error) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return &http.Response{StatusCode: http.StatusServiceUnavailable}, nil
		}
		return &http.Response{StatusCode: http.StatusOK}, nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

//nolint:bodyclose // test responses have no body
func TestHTTPRetryPolicyStopsAtBudget(t *testing.T) {
	policy := NewHTTPRetryPolicy(HTTPExecutorConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		ShouldRetry: func(_ *http.Response, err error) bool {
			return err != nil
		},
	})

	var attempts int32
	_, err := failsafe.With(policy).Get(func() (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected exhausted retries to fail")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", got)
	}
}

//nolint:bodyclose // test responses have no body
func TestNewHTTPExecutorHonorsBreakerConfig(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		CircuitBreaker: &CircuitBreakerConfig{
			Name:         "aldis",
			MinRequests:  2,
			FailureRatio: 1.0,
			Timeout:      time.Minute,
		},
	})

	// Two transport failures satisfy the 2-of-2 threshold.
	for i := 0; i < 2; i++ {
		_, _ = executor.Get(func() (*http.Response, error) {
			return nil, errors.New("aldis unreachable")
		})
	}

	// The breaker is open now, so the next call must fail fast without
	// reaching the upstream.
	reached := false
	_, err := executor.Get(func() (*http.Response, error) {
		reached = true
		return &http.Response{StatusCode: http.StatusOK}, nil
	})
	if !errors.Is(err, fsCircuitbreaker.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if reached {
		t.Fatal("request function must not run while the breaker is open")
	}
}

//nolint:bodyclose // test responses have no body
func TestExecuteHTTPStopsOnCanceledContext(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		MaxRetries: 5,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   200 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var attempts int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := ExecuteHTTP(ctx, executor, func() (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("mayday unreachable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1 (cancel lands during the first backoff)", got)
	}
}
