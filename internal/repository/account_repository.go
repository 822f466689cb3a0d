package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

const accountNumberConstraint = "accounts_account_number_key"

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAccount is used by seeding and tests; account opening policy lives elsewhere.
func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, user_id, balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		account.AccountNumber,
		account.UserID,
		account.Balance.StringFixed(2),
		account.Active,
		now,
	).Scan(&account.ID)
	if err != nil {
		if uniqueViolationOn(err, accountNumberConstraint) {
			r.logger.Warn("Duplicate account number", "account_number", account.AccountNumber)
			return errors.NewAppError(errors.ValidationFailed, "account number already exists")
		}
		r.logger.Error("Failed to create account", "account_number", account.AccountNumber, "error", err)
		return errors.Internal("failed to create account", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Info("Account created successfully", "account_id", account.ID)
	return nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, account_number, user_id, balance, active, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	return r.scanAccount(ctx, query, id)
}

func (r *accountRepository) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `
		SELECT id, account_number, user_id, balance, active, created_at, updated_at
		FROM accounts WHERE account_number = $1
	`
	return r.scanAccount(ctx, query, number)
}

func (r *accountRepository) scanAccount(ctx context.Context, query string, arg interface{}) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.UserID,
		&balanceStr,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Account not found", "account", arg)
			return nil, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", "account", arg, "error", err)
		return nil, errors.Internal("failed to get account", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		r.logger.Error("Failed to parse balance", "account_id", account.ID, "balance_str", balanceStr, "error", err)
		return nil, errors.Internal("failed to parse balance", err)
	}

	account.Balance = balance
	return &account, nil
}

func (r *accountRepository) IsActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `SELECT active FROM accounts WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, errors.ErrAccountNotFound
		}
		r.logger.Error("Failed to read account state", "account_id", id, "error", err)
		return false, errors.Internal("failed to read account state", err)
	}
	return active, nil
}

// Debit is a single guarded write. Zero affected rows means the balance did
// not cover the amount when the row lock was taken.
func (r *accountRepository) Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $1, updated_at = $2
		WHERE id = $3 AND balance >= $1
	`

	result, err := r.db.ExecContext(ctx, query, amount.StringFixed(2), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to debit account", "account_id", id, "amount", amount, "error", err)
		return false, errors.Internal("failed to debit account", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Internal("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		r.logger.Warn("Debit guard rejected update", "account_id", id, "amount", amount)
		return false, nil
	}

	r.logger.Info("Account debited", "account_id", id, "amount", amount)
	return true, nil
}

// Credit is guarded like Debit so the sum never overflows the column.
func (r *accountRepository) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND balance + $1 < $4
	`

	result, err := r.db.ExecContext(ctx, query, amount.StringFixed(2), time.Now().UTC(), id, domain.BalanceLimit.String())
	if err != nil {
		r.logger.Error("Failed to credit account", "account_id", id, "amount", amount, "error", err)
		return errors.Internal("failed to credit account", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Internal("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return errors.Internal("failed to read account", err)
		}
		if !exists {
			r.logger.Warn("No account found to credit", "account_id", id)
			return errors.ErrAccountNotFound
		}
		r.logger.Warn("Credit guard rejected update", "account_id", id, "amount", amount)
		return errors.ErrBalanceLimit
	}

	r.logger.Info("Account credited", "account_id", id, "amount", amount)
	return nil
}
