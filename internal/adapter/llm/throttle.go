package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"conductor/internal/domain"
)

// defaultMinInterval is the spacing enforced between calls to one adapter.
const defaultMinInterval = time.Second

// ThrottleAdapter wraps an Adapter with advisory client-side rate limiting.
// It enforces a minimum interval between consecutive sends to the same
// backend. The limit is advisory: SendMessage never blocks or rejects, it
// records the send so CheckAvailability reflects the spacing. The load
// balancer consults CheckAvailability to skip adapters in cooldown.
type ThrottleAdapter struct {
	inner   domain.Adapter
	limiter *rate.Limiter
}

// NewThrottleAdapter wraps inner with a minimum send interval.
// minInterval <= 0 uses the default (1s).
func NewThrottleAdapter(inner domain.Adapter, minInterval time.Duration) *ThrottleAdapter {
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	return &ThrottleAdapter{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// SendMessage implements domain.Adapter. The call is forwarded unconditionally
// and a token is consumed afterwards, so the cooldown window starts at the
// send regardless of outcome.
func (t *ThrottleAdapter) SendMessage(ctx context.Context, message, contextText string) (*domain.Response, error) {
	resp, err := t.inner.SendMessage(ctx, message, contextText)
	t.limiter.AllowN(time.Now(), 1)
	return resp, err
}

// CheckAvailability implements domain.Adapter. It reports whether a send may
// proceed now without consuming the token, and the remaining cooldown if not.
func (t *ThrottleAdapter) CheckAvailability() domain.Availability {
	if inner := t.inner.CheckAvailability(); !inner.Available {
		return inner
	}

	now := time.Now()
	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	if delay <= 0 {
		return domain.Availability{Available: true}
	}
	return domain.Availability{Available: false, RetryAfter: delay}
}

var _ domain.Adapter = (*ThrottleAdapter)(nil)
