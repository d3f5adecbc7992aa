package clients

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/corvidaelabs/farmhand/pkg/logging"
)

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker guarding an HTTP dependency.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker in logs and metrics
	Name string

	// SuccessThreshold is the number of successful half-open probes needed
	// before the circuit closes again. Default: 1
	SuccessThreshold uint

	// Delay is how long the circuit stays open before allowing a probe.
	// Default: 15 seconds
	Delay time.Duration

	// FailureRatio trips the circuit once this share of the last MinRequests
	// calls failed. Default: 0.5
	FailureRatio float64

	// MinRequests is the size of the window the ratio is evaluated over. Default: 10
	MinRequests uint

	// Logger for state change notifications
	Logger logging.Logger

	// OnStateChange is invoked after every transition.
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns sensible defaults for the circuit breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "default",
		SuccessThreshold: 1,
		Delay:            15 * time.Second,
		FailureRatio:     0.5,
		MinRequests:      10,
	}
}

func normalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	return cfg
}

// CircuitBreaker wraps a failsafe-go circuit breaker typed for HTTP responses.
// Calls through it are never retried.
type CircuitBreaker struct {
	cb   circuitbreaker.CircuitBreaker[*http.Response]
	name string
}

// NewCircuitBreaker creates a new HTTP circuit breaker with the given configuration.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg = normalizeCircuitBreakerConfig(cfg)

	// e.g. 50% of 10 requests = 5 failures
	failureThreshold := uint(float64(cfg.MinRequests) * cfg.FailureRatio)
	if failureThreshold < 1 {
		failureThreshold = 1
	}

	builder := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(failureThreshold, cfg.MinRequests).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(cfg.SuccessThreshold).
		HandleIf(CountsAsFailure)

	if cfg.OnStateChange != nil || cfg.Logger != nil {
		builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			from := convertState(event.OldState)
			to := convertState(event.NewState)

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
		})
	}

	return &CircuitBreaker{cb: builder.Build(), name: cfg.Name}
}

// CountsAsFailure reports whether an HTTP outcome should count against the
// circuit. Transport errors and 5xx responses count; caller cancellation and
// 4xx responses do not.
func CountsAsFailure(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

func convertState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// Executor returns a failsafe executor that runs calls through the breaker.
func (cb *CircuitBreaker) Executor() failsafe.Executor[*http.Response] {
	return failsafe.With[*http.Response](cb.cb)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return convertState(cb.cb.State())
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is rejecting calls
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.cb.IsOpen()
}

// ExecuteHTTP runs an HTTP request through the executor. A nil executor
// calls fn directly.
func ExecuteHTTP(ctx context.Context, executor failsafe.Executor[*http.Response], fn func() (*http.Response, error)) (*http.Response, error) {
	if executor == nil {
		return fn()
	}
	return executor.WithContext(ctx).Get(fn)
}

// IsCircuitOpen reports whether err is a rejection by an open circuit.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
