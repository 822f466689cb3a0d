package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type ruleRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewRuleRepository(db SQLExecutor, logger *slog.Logger) domain.RuleRepository {
	return &ruleRepository{
		db:     db,
		logger: logger,
	}
}

// GetBillPayRule loads the rule with its payee. Payee is nil when the payee
// row is gone.
func (r *ruleRepository) GetBillPayRule(ctx context.Context, id int64) (*domain.BillPayRule, error) {
	query := `
		SELECT b.id, b.user_id, b.source_account_id, b.payee_id, b.amount, b.frequency, b.created_at,
		       p.id, p.user_id, p.name, p.account_number, p.routing_number, p.active, p.created_at
		FROM bill_pay_rules b
		LEFT JOIN payees p ON p.id = b.payee_id
		WHERE b.id = $1
	`

	var (
		rule      domain.BillPayRule
		amountStr string
		payeeRef  sql.NullInt64
		payeeID   sql.NullInt64
		payeeUser sql.NullInt64
		name      sql.NullString
		number    sql.NullString
		routing   sql.NullString
		active    sql.NullBool
		createdAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID,
		&rule.UserID,
		&rule.SourceAccountID,
		&payeeRef,
		&amountStr,
		&rule.Frequency,
		&rule.CreatedAt,
		&payeeID,
		&payeeUser,
		&name,
		&number,
		&routing,
		&active,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Bill pay rule not found", "rule_id", id)
			return nil, errors.ErrRuleNotFound
		}
		r.logger.Error("Failed to get bill pay rule", "rule_id", id, "error", err)
		return nil, errors.Internal("failed to get bill pay rule", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, errors.Internal("failed to parse rule amount", err)
	}
	rule.Amount = amount
	rule.PayeeID = int64Ptr(payeeRef)

	if payeeID.Valid {
		rule.Payee = &domain.Payee{
			ID:            payeeID.Int64,
			UserID:        payeeUser.Int64,
			Name:          name.String,
			AccountNumber: number.String,
			RoutingNumber: routing.String,
			Active:        active.Bool,
			CreatedAt:     createdAt.Time,
		}
	}
	return &rule, nil
}

func (r *ruleRepository) GetTransferRule(ctx context.Context, id int64) (*domain.TransferRule, error) {
	query := `
		SELECT id, user_id, source_account_id, destination_account_id,
		       external_account_number, external_routing_number, amount, frequency, created_at
		FROM transfer_rules WHERE id = $1
	`

	var (
		rule        domain.TransferRule
		amountStr   string
		destination sql.NullInt64
		extNumber   sql.NullString
		extRouting  sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID,
		&rule.UserID,
		&rule.SourceAccountID,
		&destination,
		&extNumber,
		&extRouting,
		&amountStr,
		&rule.Frequency,
		&rule.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Transfer rule not found", "rule_id", id)
			return nil, errors.ErrRuleNotFound
		}
		r.logger.Error("Failed to get transfer rule", "rule_id", id, "error", err)
		return nil, errors.Internal("failed to get transfer rule", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, errors.Internal("failed to parse rule amount", err)
	}
	rule.Amount = amount
	rule.DestinationAccountID = int64Ptr(destination)
	rule.ExternalAccountNumber = stringPtr(extNumber)
	rule.ExternalRoutingNumber = stringPtr(extRouting)
	return &rule, nil
}
