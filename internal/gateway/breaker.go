package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	// Timeout bounds a single Submit call.
	Timeout time.Duration
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open before probing.
	OpenFor time.Duration
}

func DefaultBreakerConfig(timeout time.Duration) BreakerConfig {
	return BreakerConfig{
		Timeout:             timeout,
		ConsecutiveFailures: 5,
		OpenFor:             30 * time.Second,
	}
}

// Breaker calls the next gateway at most once per Submit, under a deadline,
// and stops calling it after repeated timeouts or transport failures.
// Declines are answers, not faults, and do not count against the breaker.
type Breaker struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

func NewBreaker(next Gateway, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	b := &Breaker{next: next, timeout: cfg.Timeout, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment gateway breaker changed state", "from", from.String(), "to", to.String())
		},
	})
	return b
}

func (b *Breaker) Submit(ctx context.Context, p Payment) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Submit(ctx, p)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.logger.Warn("Payment gateway unavailable", "reference", p.Reference, "error", err)
		return ErrUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return err
}

// State exposes the breaker state for health reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
