// Package gateway abstracts the external payment network used for bill
// payments and outbound external transfers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
)

var (
	// ErrDeclined means the network refused the payment.
	ErrDeclined = errors.New("payment declined")
	// ErrTimeout means no answer arrived before the deadline.
	ErrTimeout = errors.New("payment timed out")
	// ErrUnavailable means the gateway was not called, e.g. an open breaker.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Payment is a single outbound settlement instruction.
type Payment struct {
	Reference     uuid.UUID
	Type          domain.TransactionType
	AccountID     int64
	Amount        decimal.Decimal
	Beneficiary   string
	AccountNumber string
	RoutingNumber string
}

// Gateway submits a payment. A nil error means the network accepted it.
type Gateway interface {
	Submit(ctx context.Context, p Payment) error
}

type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeDecline Outcome = "decline"
	OutcomeTimeout Outcome = "timeout"
)

// ParseOutcome accepts the configured simulation mode.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeApprove, OutcomeDecline, OutcomeTimeout:
		return o, nil
	}
	return "", fmt.Errorf("unknown gateway mode %q", s)
}

// Simulated stands in for a real payment network.
type Simulated struct {
	Outcome Outcome
	Latency time.Duration
}

func NewSimulated(outcome Outcome, latency time.Duration) *Simulated {
	return &Simulated{Outcome: outcome, Latency: latency}
}

func (s *Simulated) Submit(ctx context.Context, p Payment) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ErrTimeout
		}
	}

	switch s.Outcome {
	case OutcomeDecline:
		return ErrDeclined
	case OutcomeTimeout:
		<-ctx.Done()
		return ErrTimeout
	default:
		return nil
	}
}
