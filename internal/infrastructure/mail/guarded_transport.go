package mail

import (
	"context"
	"fmt"

	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/infrastructure/resilience"
	"golang.org/x/time/rate"
)

// GuardedTransport throttles delivery with a token bucket and stops calling
// a failing transport once its breaker opens.
type GuardedTransport struct {
	next    customer.MailTransport
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewGuardedTransport wraps next. perSecond <= 0 disables throttling.
func NewGuardedTransport(next customer.MailTransport, perSecond float64, burst int, breaker *resilience.Breaker) *GuardedTransport {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &GuardedTransport{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
	}
}

// Send waits for a token, then delivers through the breaker
func (t *GuardedTransport) Send(ctx context.Context, msg customer.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail rate limit: %w", err)
	}
	return t.breaker.Do(func() error {
		return t.next.Send(ctx, msg)
	})
}

var _ customer.MailTransport = (*GuardedTransport)(nil)
