// Package request turns a raw transaction request body into exactly one of
// six typed variants.
//
// Consumers branch on the variant through Match and a Visitor, never by
// comparing type strings. Adding a variant means adding a Visitor method, so
// every consumer stops compiling until it handles the new case.
package request

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
)

// Request is one classified transaction request. The interface is sealed.
type Request interface {
	Type() domain.TransactionType
	// RequiresAuth is false only for third-party inbound external transfers.
	RequiresAuth() bool
	isRequest()
}

type Deposit struct {
	DestinationAccountNumber string
	Amount                   decimal.Decimal
}

type Withdrawal struct {
	SourceAccountNumber string
	Amount              decimal.Decimal
}

type BillPay struct {
	RuleID int64
}

type InternalTransfer struct {
	RuleID int64
}

// ExternalTransferOut pays out to another bank as described by a transfer rule.
type ExternalTransferOut struct {
	RuleID int64
}

// ExternalTransferIn credits a ledger account with money sent from another bank.
type ExternalTransferIn struct {
	DestinationAccountNumber string
	SourceAccountNumber      string
	SourceRoutingNumber      string
	Amount                   decimal.Decimal
}

func (*Deposit) Type() domain.TransactionType             { return domain.TypeDeposit }
func (*Withdrawal) Type() domain.TransactionType          { return domain.TypeWithdrawal }
func (*BillPay) Type() domain.TransactionType             { return domain.TypeBillPay }
func (*InternalTransfer) Type() domain.TransactionType    { return domain.TypeInternalTransfer }
func (*ExternalTransferOut) Type() domain.TransactionType { return domain.TypeExternalTransfer }
func (*ExternalTransferIn) Type() domain.TransactionType  { return domain.TypeExternalTransfer }

func (*Deposit) RequiresAuth() bool             { return true }
func (*Withdrawal) RequiresAuth() bool          { return true }
func (*BillPay) RequiresAuth() bool             { return true }
func (*InternalTransfer) RequiresAuth() bool    { return true }
func (*ExternalTransferOut) RequiresAuth() bool { return true }
func (*ExternalTransferIn) RequiresAuth() bool  { return false }

func (*Deposit) isRequest()             {}
func (*Withdrawal) isRequest()          {}
func (*BillPay) isRequest()             {}
func (*InternalTransfer) isRequest()    {}
func (*ExternalTransferOut) isRequest() {}
func (*ExternalTransferIn) isRequest()  {}

// Visitor handles every request variant.
type Visitor[T any] interface {
	VisitDeposit(ctx context.Context, r *Deposit) (T, error)
	VisitWithdrawal(ctx context.Context, r *Withdrawal) (T, error)
	VisitBillPay(ctx context.Context, r *BillPay) (T, error)
	VisitInternalTransfer(ctx context.Context, r *InternalTransfer) (T, error)
	VisitExternalTransferOut(ctx context.Context, r *ExternalTransferOut) (T, error)
	VisitExternalTransferIn(ctx context.Context, r *ExternalTransferIn) (T, error)
}

// Match dispatches r to the matching Visitor method.
func Match[T any](ctx context.Context, r Request, v Visitor[T]) (T, error) {
	switch r := r.(type) {
	case *Deposit:
		return v.VisitDeposit(ctx, r)
	case *Withdrawal:
		return v.VisitWithdrawal(ctx, r)
	case *BillPay:
		return v.VisitBillPay(ctx, r)
	case *InternalTransfer:
		return v.VisitInternalTransfer(ctx, r)
	case *ExternalTransferOut:
		return v.VisitExternalTransferOut(ctx, r)
	case *ExternalTransferIn:
		return v.VisitExternalTransferIn(ctx, r)
	}
	var zero T
	return zero, fmt.Errorf("unhandled request variant %T", r)
}
