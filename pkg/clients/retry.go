package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig drives DoWithRetry. Zero values are not defaulted; start from
// DefaultRetryConfig and override.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool

	// RetryFunc decides whether an attempt's outcome is worth retrying.
	RetryFunc func(resp *http.Response, err error) bool

	// CircuitBreaker, when set, wraps the whole attempt sequence in one
	// breaker call.
	CircuitBreaker *CircuitBreaker
}

// DefaultRetryConfig is the fleet default: three retries, 100ms doubling
// backoff capped at 5s, with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Second,
		RetryFunc:  DefaultShouldRetry,
		Jitter:     true,
	}
}

// DefaultShouldRetry retries on network errors, server errors (5xx), and
// rate limits (429). Everything else, including 4xx API errors, goes back
// to the caller on the first attempt.
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry sends req with backoff per config. With a breaker configured,
// one whole attempt sequence counts as a single breaker call and a final
// 5xx counts as a failure, so only fully failed requests move the breaker.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, config RetryConfig) (*http.Response, error) {
	if config.CircuitBreaker == nil {
		return doRetryAttempts(ctx, client, req, config)
	}

	var resp *http.Response
	var attemptErr error
	cbErr := config.CircuitBreaker.Call(func() error {
		resp, attemptErr = doRetryAttempts(ctx, client, req, config)
		if attemptErr != nil {
			return attemptErr
		}
		if resp != nil && resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %d", resp.StatusCode)
		}
		return nil
	})

	// cbErr without attemptErr is either the breaker failing fast before
	// the attempt ran, or the synthetic 5xx failure above.
	if cbErr != nil && attemptErr == nil {
		return nil, cbErr
	}
	return resp, attemptErr
}

// retryAfterHint reads a Retry-After header off a throttled or draining
// response. Only the delay-seconds form is handled; HTTP dates are rare in
// practice and fall back to computed backoff.
func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// backoffDelay computes the wait before the given attempt (1-based), folding
// in any Retry-After hint from the previous response and the jitter.
func backoffDelay(config RetryConfig, attempt int, lastResp *http.Response) time.Duration {
	delay := time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
	if hint := retryAfterHint(lastResp); hint > 0 {
		delay = hint
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.Jitter {
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}

// snapshotBody buffers the request body so every attempt can replay it.
// Returns nil for body-less requests.
func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func doRetryAttempts(ctx context.Context, client *http.Client, req *http.Request, config RetryConfig) (*http.Response, error) {
	bodyBytes, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastResp, ctx.Err()
			case <-time.After(backoffDelay(config, attempt, lastResp)):
			}
		}

		// Each attempt gets its own request so the body reader is fresh.
		// NewRequestWithContext derives ContentLength and GetBody from the
		// bytes.Reader.
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		attemptReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
		if err != nil {
			return nil, err
		}
		attemptReq.Header = req.Header.Clone()

		lastResp, lastErr = client.Do(attemptReq)

		if !config.RetryFunc(lastResp, lastErr) {
			return lastResp, lastErr
		}
		if attempt == config.MaxRetries {
			break
		}

		// Drain the response we are about to abandon.
		if lastResp != nil && lastResp.Body != nil {
			lastResp.Body.Close()
		}
	}

	return lastResp, lastErr
}
