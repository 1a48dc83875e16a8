package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while a provider's breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Circuit states as reported to a BreakerObserver.
const (
	CircuitClosed   = "closed"
	CircuitHalfOpen = "half-open"
	CircuitOpen     = "open"
)

// BreakerObserver receives provider health signals. metrics.Collector
// implements it.
type BreakerObserver interface {
	// ProviderCircuitChanged reports the new circuit state of provider.
	ProviderCircuitChanged(provider, state string)

	// ProviderFailed counts one upstream failure. Caller-side errors such
	// as a rejected per-request key are not reported.
	ProviderFailed(provider string)
}

type nopObserver struct{}

func (nopObserver) ProviderCircuitChanged(string, string) {}
func (nopObserver) ProviderFailed(string)                 {}

// BreakerSettings tunes the breaker guarding one provider. Zero fields take
// the defaults: 3 failures, 30s cooldown, 2 trials.
type BreakerSettings struct {
	Failures uint32        // consecutive upstream failures that open the circuit
	Cooldown time.Duration // time open before trial calls are let through
	Trials   uint32        // successful trial calls that close it again
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.Failures == 0 {
		s.Failures = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Trials == 0 {
		s.Trials = 2
	}
	return s
}

// circuitBreaker is shared by every caller of one provider, so only
// failures of the upstream itself count toward opening it.
type circuitBreaker struct {
	provider string
	breaker  *gobreaker.CircuitBreaker
	observer BreakerObserver
}

func newCircuitBreaker(provider string, s BreakerSettings, logger *zap.Logger, observer BreakerObserver) *circuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	s = s.withDefaults()

	b := &circuitBreaker{provider: provider, observer: observer}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: s.Trials,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || callerFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm: circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			observer.ProviderCircuitChanged(name, to.String())
		},
	})
	observer.ProviderCircuitChanged(provider, CircuitClosed)
	return b
}

// call runs fn unless the circuit is open. Errors are prefixed with the
// provider name.
func (b *circuitBreaker) call(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", b.provider, err)
	}
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			err = ErrCircuitOpen
		case !callerFault(err):
			b.observer.ProviderFailed(b.provider)
		}
		return "", fmt.Errorf("%s: %w", b.provider, err)
	}
	return result.(string), nil
}

// callerFault reports errors caused by the request rather than the
// upstream: cancellation, missing keys and 4xx answers other than 408/429.
func callerFault(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return clientStatus(se.Code)
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return clientStatus(oe.StatusCode)
	}
	return false
}

func clientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
