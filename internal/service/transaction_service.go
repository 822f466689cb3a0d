package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/gateway"
	"transaction-engine/internal/idempotency"
	"transaction-engine/internal/request"
)

const tracerName = "transaction-engine/internal/service"

type Outcome string

const (
	OutcomeApproved         Outcome = "approved"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

const replayMessage = "Transaction already processed"

// Command is one classified request ready for execution.
type Command struct {
	Request request.Request
	// Principal is nil for requests that do not require authentication.
	Principal      *domain.Principal
	IdempotencyKey string
}

type Result struct {
	Outcome      Outcome
	Message      string
	Transactions []*domain.Transaction
}

type TransactionService struct {
	store   domain.Store
	gateway gateway.Gateway
	guard   *guard
	tracer  trace.Tracer
	logger  *slog.Logger
}

type Option func(*TransactionService)

// WithCache puts a replay cache in front of the ledger lookup.
func WithCache(cache idempotency.Cache) Option {
	return func(s *TransactionService) { s.guard.cache = cache }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *TransactionService) { s.tracer = tracer }
}

func NewTransactionService(store domain.Store, gw gateway.Gateway, logger *slog.Logger, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:   store,
		gateway: gw,
		guard:   &guard{cache: idempotency.NopCache{}, logger: logger},
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one request to a terminal state: approved, replayed, or
// denied with a recorded row. Any other error leaves the ledger untouched.
func (s *TransactionService) Execute(ctx context.Context, cmd Command) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "transaction.execute", trace.WithAttributes(
		attribute.String("transaction.type", string(cmd.Request.Type())),
		attribute.Bool("transaction.idempotent", cmd.IdempotencyKey != ""),
	))
	defer span.End()

	result, err := s.execute(ctx, cmd)
	if err != nil {
		outcome := "error"
		if isDenial(err) {
			outcome = "denied"
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.String("transaction.outcome", outcome),
			attribute.String("transaction.error", errorCode(err)),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("transaction.outcome", string(result.Outcome)))
	return result, nil
}

func (s *TransactionService) execute(ctx context.Context, cmd Command) (*Result, error) {
	key := cmd.IdempotencyKey
	s.logger.Info("Processing transaction",
		"transaction_type", cmd.Request.Type(),
		"idempotency_key", key)

	if cmd.Request.RequiresAuth() && cmd.Principal == nil {
		return nil, errors.ErrUnauthorized
	}

	r := &resolver{repos: s.store, principal: cmd.Principal, logger: s.logger}
	p, err := request.Match(ctx, cmd.Request, r)
	if err != nil {
		return nil, s.deny(ctx, s.store, p, key, err)
	}

	if key == "" {
		return s.settle(ctx, s.store, p, key)
	}

	// Twins queue here, so only the first reaches the gateway.
	locked, release, err := s.store.LockKey(ctx, idempotency.Fingerprint(p.tuple(key)))
	if err != nil {
		return nil, err
	}
	defer release()

	return s.settle(ctx, locked, p, key)
}

// settle takes a resolved plan to a terminal state using store.
func (s *TransactionService) settle(ctx context.Context, store domain.Store, p *plan, key string) (*Result, error) {
	// Replays must not reach the gateway a second time.
	if existing, err := s.guard.replay(ctx, store, p, key); err != nil {
		return nil, err
	} else if existing != nil {
		return s.replayed(existing), nil
	}

	if p.payment != nil {
		// A payment the ledger cannot cover is never sent.
		if err := s.coverable(ctx, store, p); err != nil {
			return nil, s.deny(ctx, store, p, key, err)
		}
		if err := s.submitPayment(ctx, p); err != nil {
			return nil, s.deny(ctx, store, p, key, err)
		}
	}

	rows, replayed, err := s.apply(ctx, store, p, key)
	if err != nil {
		// A concurrent twin may have won the race; its rows are the answer.
		if key != "" && (errors.Is(err, errors.DuplicateTransaction) || isDenial(err)) {
			existing, lookupErr := s.guard.replay(ctx, store, p, key)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return s.replayed(existing), nil
			}
		}
		if errors.Is(err, errors.DuplicateTransaction) {
			return nil, errors.Internal("idempotency conflict without an approved record", err)
		}
		return nil, s.deny(ctx, store, p, key, err)
	}
	if replayed {
		return s.replayed(rows), nil
	}

	s.guard.remember(ctx, p, key, rows)
	s.logger.Info("Transaction approved",
		"transaction_id", rows[0].ID,
		"account_id", p.account.ID,
		"transaction_type", p.txType,
		"amount", rows[0].Amount)

	return &Result{
		Outcome:      OutcomeApproved,
		Message:      p.message,
		Transactions: rows,
	}, nil
}

// coverable re-reads the debited balance ahead of the gateway call. The
// conditional debit in apply remains the authoritative check.
func (s *TransactionService) coverable(ctx context.Context, store domain.Store, p *plan) error {
	account, err := store.Account().GetAccount(ctx, p.account.ID)
	if err != nil {
		return err
	}
	if account.Balance.LessThan(p.amount) {
		return errors.ErrInsufficientFunds
	}
	return nil
}

// submitPayment makes the single gateway attempt for p. Every failure,
// including a timeout or an open breaker, is a gateway denial.
func (s *TransactionService) submitPayment(ctx context.Context, p *plan) error {
	payment := *p.payment
	payment.Reference = uuid.New()

	if err := s.gateway.Submit(ctx, payment); err != nil {
		s.logger.Warn("Payment gateway rejected payment",
			"reference", payment.Reference,
			"account_id", payment.AccountID,
			"amount", payment.Amount,
			"error", err)
		return errors.ErrGatewayFailure.WithDetails(err.Error())
	}

	s.logger.Info("Payment gateway accepted payment", "reference", payment.Reference, "account_id", payment.AccountID)
	return nil
}

// deny records business denials and passes every other error through.
func (s *TransactionService) deny(ctx context.Context, store domain.Store, p *plan, key string, err error) error {
	appErr, ok := errors.AsAppError(err)
	if !ok || !appErr.IsDenial() || p == nil {
		return err
	}
	return s.recordDenial(ctx, store, p, key, appErr)
}

func (s *TransactionService) replayed(rows []*domain.Transaction) *Result {
	s.logger.Info("Returning existing transaction for idempotency key",
		"idempotency_key", *rows[0].IdempotencyKey,
		"transaction_id", rows[0].ID)
	return &Result{
		Outcome:      OutcomeAlreadyProcessed,
		Message:      replayMessage,
		Transactions: rows,
	}
}

func isDenial(err error) bool {
	appErr, ok := errors.AsAppError(err)
	return ok && appErr.IsDenial()
}
