package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// idempotencyConstraint is the partial unique index over approved tuples.
const idempotencyConstraint = "idx_transactions_idempotency"

const transactionColumns = `
	t.id, t.account_id, a.account_number, t.amount, t.transaction_type, t.direction, t.status,
	t.rule_id, t.idempotency_key, t.counterparty_account_number, t.counterparty_routing_number,
	t.created_at
`

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateTransaction inserts an immutable record. A second approved row for the
// same idempotency tuple is rejected with ErrDuplicateTransaction.
func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, account_id, amount, transaction_type, direction, status, rule_id, idempotency_key,
		 counterparty_account_number, counterparty_routing_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount.StringFixed(2),
		tx.Type,
		tx.Direction,
		tx.Status,
		nullInt64(tx.RuleID),
		nullString(tx.IdempotencyKey),
		nullString(tx.CounterpartyAccountNumber),
		nullString(tx.CounterpartyRoutingNumber),
		now,
	)
	if err != nil {
		if uniqueViolationOn(err, idempotencyConstraint) {
			r.logger.Warn("Duplicate idempotency tuple", "idempotency_key", nullString(tx.IdempotencyKey), "account_id", tx.AccountID)
			return errors.ErrDuplicateTransaction
		}
		r.logger.Error("Failed to create transaction",
			"account_id", tx.AccountID,
			"transaction_type", tx.Type,
			"amount", tx.Amount,
			"status", tx.Status,
			"error", err)
		return errors.Internal("failed to create transaction", err)
	}

	tx.CreatedAt = now
	r.logger.Info("Transaction created successfully", "transaction_id", tx.ID, "status", tx.Status)
	return nil
}

func (r *transactionRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1
	`
	return r.scanOne(ctx, query, id)
}

// FindApproved returns the approved record of tuple, or nil when none exists.
func (r *transactionRepository) FindApproved(ctx context.Context, tuple domain.IdempotencyTuple) (*domain.Transaction, error) {
	if tuple.Key == "" {
		return nil, nil
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE t.status = 'approved'
		  AND t.idempotency_key = $1
		  AND t.transaction_type = $2
		  AND t.account_id = $3
		  AND t.amount = $4
		  AND t.rule_id IS NOT DISTINCT FROM $5
		LIMIT 1
	`
	return r.scanOne(ctx, query,
		tuple.Key,
		tuple.Type,
		tuple.AccountID,
		tuple.Amount.StringFixed(2),
		nullInt64(tuple.RuleID),
	)
}

// ListByAccount returns the account ledger, newest first.
func (r *transactionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE t.account_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", accountID, "error", err)
		return nil, errors.Internal("failed to list transactions", err)
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Internal("failed to read transaction", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("failed to list transactions", err)
	}
	return transactions, nil
}

func (r *transactionRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction", "error", err)
		return nil, errors.Internal("failed to get transaction", err)
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx                 domain.Transaction
		amountStr          string
		ruleID             sql.NullInt64
		idempotencyKey     sql.NullString
		counterpartyNumber sql.NullString
		counterpartyRoute  sql.NullString
	)

	err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.AccountNumber,
		&amountStr,
		&tx.Type,
		&tx.Direction,
		&tx.Status,
		&ruleID,
		&idempotencyKey,
		&counterpartyNumber,
		&counterpartyRoute,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, err
	}

	tx.Amount = amount
	tx.RuleID = int64Ptr(ruleID)
	tx.IdempotencyKey = stringPtr(idempotencyKey)
	tx.CounterpartyAccountNumber = stringPtr(counterpartyNumber)
	tx.CounterpartyRoutingNumber = stringPtr(counterpartyRoute)
	return &tx, nil
}
