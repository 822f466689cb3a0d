package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeDeposit          TransactionType = "deposit"
	TypeWithdrawal       TransactionType = "withdrawal"
	TypeBillPay          TransactionType = "billpay"
	TypeInternalTransfer TransactionType = "internal_transfer"
	TypeExternalTransfer TransactionType = "external_transfer"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Transaction is an immutable ledger record. Amount is signed: negative for
// outbound movements.
type Transaction struct {
	ID                        uuid.UUID       `json:"id"`
	AccountID                 int64           `json:"account_id"`
	AccountNumber             string          `json:"account_number"`
	Amount                    decimal.Decimal `json:"amount"`
	Type                      TransactionType `json:"transaction_type"`
	Direction                 Direction       `json:"direction"`
	Status                    Status          `json:"status"`
	RuleID                    *int64          `json:"rule_id,omitempty"`
	IdempotencyKey            *string         `json:"idempotency_key,omitempty"`
	CounterpartyAccountNumber *string         `json:"counterparty_account_number,omitempty"`
	CounterpartyRoutingNumber *string         `json:"counterparty_routing_number,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
}

// IdempotencyTuple is the business identity a client key is scoped to.
type IdempotencyTuple struct {
	Key       string
	Type      TransactionType
	AccountID int64
	Amount    decimal.Decimal
	RuleID    *int64
}

// Matches reports whether tx is an approved record of the tuple.
func (t IdempotencyTuple) Matches(tx *Transaction) bool {
	if tx == nil || tx.Status != StatusApproved || tx.IdempotencyKey == nil {
		return false
	}
	if *tx.IdempotencyKey != t.Key || tx.Type != t.Type || tx.AccountID != t.AccountID {
		return false
	}
	if !tx.Amount.Equal(t.Amount) {
		return false
	}
	switch {
	case t.RuleID == nil && tx.RuleID == nil:
		return true
	case t.RuleID != nil && tx.RuleID != nil:
		return *t.RuleID == *tx.RuleID
	default:
		return false
	}
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	FindApproved(ctx context.Context, tuple IdempotencyTuple) (*Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*Transaction, error)
}
