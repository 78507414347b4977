// Package resilience wraps failsafe-go retry and circuit breaker policies
// with the defaults used for model and tool calls.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/addanuj/mcp-client/pkg/logging"
)

// RetryConfig bounds a retry loop. MaxAttempts counts the first call.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns 3 attempts with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// NewRetryPolicy builds an exponential backoff policy that retries only
// results for which shouldRetry returns true. The last failure is returned
// as-is once attempts are exhausted so callers can match it with errors.As.
func NewRetryPolicy[T any](cfg RetryConfig, shouldRetry func(T, error) bool) retrypolicy.RetryPolicy[T] {
	cfg = normalizeRetryConfig(cfg)
	builder := retrypolicy.NewBuilder[T]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxAttempts - 1).
		WithJitterFactor(0.1).
		ReturnLastFailure()
	if shouldRetry != nil {
		builder = builder.HandleIf(shouldRetry)
	}
	return builder.Build()
}

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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker in logs and metrics.
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint
	// Delay is how long the circuit stays open before probing again.
	Delay time.Duration
	// SuccessThreshold is the number of half-open successes needed to close.
	SuccessThreshold uint
	// ShouldCount decides whether an outcome counts as a failure. Nil counts every error.
	ShouldCount func(any, error) bool

	Logger        logging.Logger
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig opens after 5 consecutive failures for 30s.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Delay:            30 * time.Second,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker wraps failsafe-go's circuit breaker with our config interface.
type CircuitBreaker struct {
	cb   circuitbreaker.CircuitBreaker[any]
	name string
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}

	builder := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(cfg.FailureThreshold, cfg.FailureThreshold).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(cfg.SuccessThreshold)
	if cfg.ShouldCount != nil {
		builder = builder.HandleIf(cfg.ShouldCount)
	}

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

func convertState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.ClosedState:
		return StateClosed
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	return convertState(cb.cb.State())
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.cb.IsOpen()
}

// IsOpenError reports whether err was produced by an open circuit.
func IsOpenError(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}

// Execute runs fn through the retry policy and, when cb is non-nil, the
// circuit breaker. Each retry re-enters the breaker.
func Execute(ctx context.Context, retry retrypolicy.RetryPolicy[any], cb *CircuitBreaker, fn func(ctx context.Context) (any, error)) (any, error) {
	policies := []failsafe.Policy[any]{retry}
	if cb != nil {
		policies = append(policies, cb.cb)
	}
	return failsafe.With(policies...).WithContext(ctx).Get(func() (any, error) {
		return fn(ctx)
	})
}
