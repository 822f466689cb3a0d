package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

var _ domain.Store = (*Store)(nil)

// NewStore wraps a pool owned by the caller.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

func (s *Store) Account() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

func (s *Store) Transaction() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Rule() domain.RuleRepository {
	return NewRuleRepository(s.executor, s.logger)
}

// WithTransaction runs fn inside one database transaction at READ COMMITTED.
// Balance safety comes from the conditional UPDATE in Debit: Postgres re-checks
// the WHERE clause against the latest committed row after waiting on its lock,
// so a stronger isolation level is not needed and would only add
// serialization retries.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Repositories) error) error {
	// Only the pool or a locked session can begin transactions
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return errors.Internal("failed to begin transaction", err)
	}

	txStore := &Store{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return errors.Internal("failed to commit transaction", err)
	}
	return nil
}
