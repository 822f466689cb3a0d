package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payee is an external bill-pay recipient.
type Payee struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	RoutingNumber string    `json:"routing_number"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// BillPayRule pays a payee from one of the user's accounts. Payee is nil when
// the referenced payee no longer exists.
type BillPayRule struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	SourceAccountID int64           `json:"source_account_id"`
	PayeeID         *int64          `json:"payee_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Frequency       string          `json:"frequency"`
	CreatedAt       time.Time       `json:"created_at"`

	Payee *Payee `json:"payee,omitempty"`
}

// TransferRule moves money from a source account either to another account
// in the ledger (internal) or to an account at another bank (external).
type TransferRule struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	SourceAccountID       int64           `json:"source_account_id"`
	DestinationAccountID  *int64          `json:"destination_account_id,omitempty"`
	ExternalAccountNumber *string         `json:"external_account_number,omitempty"`
	ExternalRoutingNumber *string         `json:"external_routing_number,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Frequency             string          `json:"frequency"`
	CreatedAt             time.Time       `json:"created_at"`
}

// IsExternal reports whether the rule pays out of the ledger.
func (r *TransferRule) IsExternal() bool {
	return r.DestinationAccountID == nil
}

type RuleRepository interface {
	GetBillPayRule(ctx context.Context, id int64) (*BillPayRule, error)
	GetTransferRule(ctx context.Context, id int64) (*TransferRule, error)
}
