package service

import (
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/gateway"
	"transaction-engine/internal/idempotency"
)

// plan is a resolved request: every entity it touches is loaded and the
// amount is fixed. It is the only input the guard, mutator and denial
// recorder see.
type plan struct {
	txType    domain.TransactionType
	direction domain.Direction

	// account carries the primary leg: the debited account for outbound
	// movements, the credited one for inbound.
	account *domain.Account
	// counter is the credited account of an internal transfer.
	counter *domain.Account

	amount decimal.Decimal
	ruleID *int64

	// payment is set when the movement leaves the ledger through the gateway.
	payment *gateway.Payment

	counterpartyNumber  *string
	counterpartyRouting *string

	message string
}

func (p *plan) signedAmount() decimal.Decimal {
	if p.direction == domain.DirectionOutbound {
		return p.amount.Neg()
	}
	return p.amount
}

// inactiveError is the denial for the primary account being inactive.
func (p *plan) inactiveError() *errors.AppError {
	if p.direction == domain.DirectionOutbound {
		return errors.ErrSourceInactive
	}
	return errors.ErrDestinationInactive
}

func (p *plan) tuple(key string) domain.IdempotencyTuple {
	return domain.IdempotencyTuple{
		Key:       key,
		Type:      p.txType,
		AccountID: p.account.ID,
		Amount:    p.signedAmount(),
		RuleID:    p.ruleID,
	}
}

// counterTuple identifies the inbound leg of an internal transfer.
func (p *plan) counterTuple(key string) domain.IdempotencyTuple {
	return domain.IdempotencyTuple{
		Key:       idempotency.DeriveLegKey(key, domain.DirectionInbound),
		Type:      p.txType,
		AccountID: p.counter.ID,
		Amount:    p.amount,
		RuleID:    p.ruleID,
	}
}

// approvedRows are the ledger records of a successful execution, primary
// leg first.
func (p *plan) approvedRows(key string) []*domain.Transaction {
	primary := p.row(key, domain.StatusApproved)
	if p.counter == nil {
		return []*domain.Transaction{primary}
	}

	inbound := &domain.Transaction{
		AccountID:      p.counter.ID,
		AccountNumber:  p.counter.AccountNumber,
		Amount:         p.amount,
		Type:           p.txType,
		Direction:      domain.DirectionInbound,
		Status:         domain.StatusApproved,
		RuleID:         p.ruleID,
		IdempotencyKey: optional(idempotency.DeriveLegKey(key, domain.DirectionInbound)),
	}
	return []*domain.Transaction{primary, inbound}
}

// deniedRow records the attempted movement on the primary account.
func (p *plan) deniedRow(key string) *domain.Transaction {
	return p.row(key, domain.StatusDenied)
}

func (p *plan) row(key string, status domain.Status) *domain.Transaction {
	return &domain.Transaction{
		AccountID:                 p.account.ID,
		AccountNumber:             p.account.AccountNumber,
		Amount:                    p.signedAmount(),
		Type:                      p.txType,
		Direction:                 p.direction,
		Status:                    status,
		RuleID:                    p.ruleID,
		IdempotencyKey:            optional(key),
		CounterpartyAccountNumber: p.counterpartyNumber,
		CounterpartyRoutingNumber: p.counterpartyRouting,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
