package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayment() Payment {
	return Payment{Reference: uuid.New(), AccountID: 1, Amount: decimal.RequireFromString("10.00")}
}

type countingGateway struct {
	calls atomic.Int32
	err   error
}

func (g *countingGateway) Submit(context.Context, Payment) error {
	g.calls.Add(1)
	return g.err
}

func TestSimulatedOutcomes(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewSimulated(OutcomeApprove, 0).Submit(ctx, testPayment()))
	assert.ErrorIs(t, NewSimulated(OutcomeDecline, 0).Submit(ctx, testPayment()), ErrDeclined)

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, NewSimulated(OutcomeTimeout, 0).Submit(timeoutCtx, testPayment()), ErrTimeout)
}

func TestSimulatedLatencyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := NewSimulated(OutcomeApprove, time.Second).Submit(ctx, testPayment())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("decline")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDecline, o)

	_, err = ParseOutcome("maybe")
	assert.Error(t, err)
}

func TestBreakerAppliesTimeout(t *testing.T) {
	b := NewBreaker(NewSimulated(OutcomeTimeout, 0), BreakerConfig{
		Timeout:             15 * time.Millisecond,
		ConsecutiveFailures: 3,
		OpenFor:             time.Minute,
	}, testLogger())

	start := time.Now()
	err := b.Submit(context.Background(), testPayment())

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &countingGateway{err: errors.New("connection reset")}
	b := NewBreaker(next, BreakerConfig{Timeout: time.Second, ConsecutiveFailures: 2, OpenFor: time.Minute}, testLogger())

	for i := 0; i < 2; i++ {
		assert.Error(t, b.Submit(context.Background(), testPayment()))
	}
	assert.Equal(t, "open", b.State())

	err := b.Submit(context.Background(), testPayment())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestBreakerIgnoresDeclines(t *testing.T) {
	next := &countingGateway{err: ErrDeclined}
	b := NewBreaker(next, BreakerConfig{Timeout: time.Second, ConsecutiveFailures: 2, OpenFor: time.Minute}, testLogger())

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Submit(context.Background(), testPayment()), ErrDeclined)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, int32(5), next.calls.Load())
}

func TestBreakerCallsOncePerSubmit(t *testing.T) {
	next := &countingGateway{}
	b := NewBreaker(next, DefaultBreakerConfig(time.Second), testLogger())

	require.NoError(t, b.Submit(context.Background(), testPayment()))
	assert.Equal(t, int32(1), next.calls.Load())
}
