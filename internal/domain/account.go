package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceLimit is the first magnitude that no longer fits numeric(15,2).
var BalanceLimit = decimal.New(1, 13)

type Account struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	UserID        int64           `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OwnedBy reports whether the principal owns the account.
func (a *Account) OwnedBy(p *Principal) bool {
	return a != nil && p != nil && a.UserID == p.UserID
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	IsActive(ctx context.Context, id int64) (bool, error)
	// Debit subtracts amount only while the balance covers it. It reports
	// false when no row satisfied the guard.
	Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)
	// Credit adds amount unless the result would reach BalanceLimit, in
	// which case it returns ErrBalanceLimit.
	Credit(ctx context.Context, id int64, amount decimal.Decimal) error
}
