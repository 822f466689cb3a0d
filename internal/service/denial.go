package service

import (
	"context"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// recordDenial writes the denied row for p outside any unit of work, so it
// survives the rollback of the attempt. The denial itself is returned unless
// the row cannot be written. A caller that went away does not cancel the write.
func (s *TransactionService) recordDenial(ctx context.Context, store domain.Store, p *plan, key string, denial *errors.AppError) error {
	row := p.deniedRow(key)
	if err := store.Transaction().CreateTransaction(context.WithoutCancel(ctx), row); err != nil {
		s.logger.Error("Failed to record denied transaction",
			"account_id", row.AccountID,
			"transaction_type", row.Type,
			"reason", denial.Code,
			"error", err)
		return errors.Internal("failed to record denied transaction", err)
	}

	s.logger.Info("Transaction denied",
		"transaction_id", row.ID,
		"account_id", row.AccountID,
		"transaction_type", row.Type,
		"amount", row.Amount,
		"reason", denial.Code)
	return denial
}
