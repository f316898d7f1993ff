package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"frameworks/klaxon/pkg/logging"
)

// CircuitBreakerState is the reduced three-state view reported in logs and
// metrics.
type CircuitBreakerState int

const (
	// StateClosed lets calls through and counts failures.
	StateClosed CircuitBreakerState = iota
	// StateHalfOpen admits probe calls after the open delay has passed.
	StateHalfOpen
	// StateOpen fails calls immediately.
	StateOpen
)

var circuitStateNames = [...]string{"closed", "half-open", "open"}

func (s CircuitBreakerState) String() string {
	if s < StateClosed || s > StateOpen {
		return "unknown"
	}
	return circuitStateNames[s]
}

// CircuitBreakerConfig configures a breaker guarding one upstream.
type CircuitBreakerConfig struct {
	// Name tags the breaker's log lines and metric labels.
	Name string

	// MaxRequests is how many consecutive successes a half-open breaker
	// needs before it closes again. Default 1.
	MaxRequests uint32

	// Timeout is how long an open breaker waits before admitting probes.
	// Default 15s.
	Timeout time.Duration

	// FailureRatio trips the circuit once failures/total exceeds it.
	// Default 0.5.
	FailureRatio float64

	// MinRequests is the sample size required before the ratio is
	// evaluated, so a cold upstream does not trip on its first hiccup.
	// Default 10.
	MinRequests uint32

	// Logger, when set, gets a warning line on every state transition.
	Logger logging.Logger

	// OnStateChange is invoked on every state transition.
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns the fleet defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Name: "default"}.withDefaults()
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return cfg
}

// failureThreshold converts the ratio/sample pair into the absolute count
// failsafe-go expects. 0.5 of 10 requests = 5 failures, floor 1.
func (cfg CircuitBreakerConfig) failureThreshold() uint {
	threshold := uint(float64(cfg.MinRequests) * cfg.FailureRatio)
	if threshold < 1 {
		return 1
	}
	return threshold
}

// stateChangeHook bridges failsafe-go transition events to the config's
// logger and callback. Returns nil when neither is set.
func stateChangeHook(cfg CircuitBreakerConfig) func(circuitbreaker.StateChangedEvent) {
	if cfg.Logger == nil && cfg.OnStateChange == nil {
		return nil
	}
	return func(event circuitbreaker.StateChangedEvent) {
		from := toBreakerState(event.OldState)
		to := toBreakerState(event.NewState)

		if cfg.Logger != nil {
			cfg.Logger.WithFields(logging.Fields{
				"circuit_breaker": cfg.Name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("circuit breaker state change")
		}
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(cfg.Name, from, to)
		}
	}
}

// CircuitBreaker wraps the failsafe-go breaker behind the fleet config shape.
type CircuitBreaker struct {
	cb   circuitbreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreaker builds a breaker from cfg, filling in defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg = cfg.withDefaults()

	builder := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(cfg.failureThreshold(), uint(cfg.MinRequests)).
		WithDelay(cfg.Timeout).
		WithSuccessThreshold(uint(cfg.MaxRequests))
	if hook := stateChangeHook(cfg); hook != nil {
		builder = builder.OnStateChanged(hook)
	}

	return &CircuitBreaker{cb: builder.Build(), name: cfg.Name}
}

func toBreakerState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.OpenState:
		return StateOpen
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Call executes fn through the breaker.
func (cb *CircuitBreaker) Call(fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// Execute runs a value-returning function through the breaker.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return failsafe.With(cb.cb).Get(fn)
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return toBreakerState(cb.cb.State())
}

// Name returns the breaker's metric/log name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether calls currently fail fast.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.cb.IsOpen()
}

// IsClosed reports whether calls flow normally.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.cb.IsClosed()
}

// HTTPExecutorConfig configures the retry (and optional breaker) executor
// the option-func clients use.
type HTTPExecutorConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// CircuitBreaker, when set, stacks a response-typed breaker under the
	// retry policy using these thresholds.
	CircuitBreaker *CircuitBreakerConfig

	// ShouldRetry decides whether a response or error is worth another
	// attempt.
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultHTTPExecutorConfig returns the fleet defaults.
func DefaultHTTPExecutorConfig() HTTPExecutorConfig {
	return HTTPExecutorConfig{MaxRetries: 3}.withDefaults()
}

// withDefaults fills zero fields and clamps MaxDelay to at least BaseDelay.
func (c HTTPExecutorConfig) withDefaults() HTTPExecutorConfig {
	if c.ShouldRetry == nil {
		c.ShouldRetry = DefaultShouldRetry
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	return c
}

// httpFailure is the breaker's failure predicate: transport errors and 5xx.
func httpFailure(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && resp.StatusCode >= 500
}

// NewHTTPRetryPolicy builds the retry policy for HTTP requests.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPRetryPolicy(cfg HTTPExecutorConfig) retrypolicy.RetryPolicy[*http.Response] {
	cfg = cfg.withDefaults()
	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			return cfg.ShouldRetry(resp, err)
		}).
		Build()
}

// NewHTTPExecutor stacks the retry policy on top of an optional breaker.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPExecutor(cfg HTTPExecutorConfig) failsafe.Executor[*http.Response] {
	retry := NewHTTPRetryPolicy(cfg)
	if cfg.CircuitBreaker == nil {
		return failsafe.With(retry)
	}

	cb := cfg.CircuitBreaker.withDefaults()
	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(cb.failureThreshold(), uint(cb.MinRequests)).
		WithDelay(cb.Timeout).
		WithSuccessThreshold(uint(cb.MaxRequests)).
		HandleIf(httpFailure).
		Build()
	return failsafe.With(retry, breaker)
}

// ExecuteHTTP runs one request through the executor with ctx cancellation.
func ExecuteHTTP(ctx context.Context, executor failsafe.Executor[*http.Response], fn func() (*http.Response, error)) (*http.Response, error) {
	return executor.WithContext(ctx).Get(fn)
}
