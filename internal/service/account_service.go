package service

import (
	"context"
	"log/slog"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// AccountService serves owner-only account reads. Accounts the caller does
// not own are reported as not found.
type AccountService struct {
	store  domain.Repositories
	logger *slog.Logger
}

func NewAccountService(store domain.Repositories, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

func (s *AccountService) GetAccount(ctx context.Context, principal *domain.Principal, accountNumber string) (*domain.Account, error) {
	s.logger.Info("Getting account", "account_number", accountNumber)

	account, err := s.store.Account().GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(principal) {
		s.logger.Warn("Account not owned by caller", "account_id", account.ID)
		return nil, errors.ErrAccountNotFound
	}
	return account, nil
}

// ListTransactions returns the newest limit records of the account. A
// non-positive limit means the default; larger ones are capped.
func (s *AccountService) ListTransactions(ctx context.Context, principal *domain.Principal, accountNumber string, limit int) ([]*domain.Transaction, error) {
	account, err := s.GetAccount(ctx, principal, accountNumber)
	if err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	return s.store.Transaction().ListByAccount(ctx, account.ID, limit)
}
