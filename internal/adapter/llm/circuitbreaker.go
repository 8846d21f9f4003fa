package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerAdapter wraps an Adapter with circuit breaker protection.
// When the wrapped adapter fails repeatedly, the circuit opens and subsequent
// calls fail fast without reaching the provider, preventing retry storms.
type CircuitBreakerAdapter struct {
	inner   domain.Adapter
	breaker *gobreaker.CircuitBreaker[*domain.Response]
	logger  *slog.Logger
}

// NewCircuitBreakerAdapter wraps inner with a circuit breaker.
// Zero-valued cfg fields fall back to sensible defaults.
func NewCircuitBreakerAdapter(inner domain.Adapter, name string, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerAdapter {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.Response](gobreaker.Settings{
		Name:        "llm:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &CircuitBreakerAdapter{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// SendMessage implements domain.Adapter. Calls are routed through the breaker.
func (p *CircuitBreakerAdapter) SendMessage(ctx context.Context, message, contextText string) (*domain.Response, error) {
	resp, err := p.breaker.Execute(func() (*domain.Response, error) {
		return p.inner.SendMessage(ctx, message, contextText)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open: %s", domain.ErrProviderError, err)
		}
		return nil, err
	}
	return resp, nil
}

// CheckAvailability implements domain.Adapter. An open circuit reports the
// adapter as degraded but schedulable; fan-out callers see the failure fast.
func (p *CircuitBreakerAdapter) CheckAvailability() domain.Availability {
	return p.inner.CheckAvailability()
}

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerAdapter) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (p *CircuitBreakerAdapter) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}

var _ domain.Adapter = (*CircuitBreakerAdapter)(nil)
