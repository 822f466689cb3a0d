package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// apply runs the unit of work for p on store. It returns the approved rows and whether
// they were found rather than written.
func (s *TransactionService) apply(ctx context.Context, store domain.Store, p *plan, key string) ([]*domain.Transaction, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.apply")
	defer span.End()

	var (
		rows     []*domain.Transaction
		replayed bool
	)

	err := store.WithTransaction(ctx, func(repos domain.Repositories) error {
		existing, err := s.guard.replay(ctx, repos, p, key)
		if err != nil {
			return err
		}
		if existing != nil {
			rows, replayed = existing, true
			return nil
		}

		if err := ensureActive(ctx, repos, p.account.ID, p.inactiveError()); err != nil {
			return err
		}
		if p.counter != nil {
			if err := ensureActive(ctx, repos, p.counter.ID, errors.ErrDestinationInactive); err != nil {
				return err
			}
		}

		if p.direction == domain.DirectionOutbound {
			ok, err := repos.Account().Debit(ctx, p.account.ID, p.amount)
			if err != nil {
				return err
			}
			if !ok {
				return errors.ErrInsufficientFunds
			}
		} else if err := repos.Account().Credit(ctx, p.account.ID, p.amount); err != nil {
			return err
		}

		if p.counter != nil {
			if err := repos.Account().Credit(ctx, p.counter.ID, p.amount); err != nil {
				return err
			}
		}

		rows = p.approvedRows(key)
		for _, row := range rows {
			if err := repos.Transaction().CreateTransaction(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})

	span.SetAttributes(
		attribute.Bool("ledger.replayed", replayed),
		attribute.Int("ledger.rows", len(rows)),
	)
	if err != nil {
		span.SetAttributes(attribute.String("ledger.error", errorCode(err)))
		return nil, false, err
	}
	return rows, replayed, nil
}

func ensureActive(ctx context.Context, repos domain.Repositories, accountID int64, denial *errors.AppError) error {
	active, err := repos.Account().IsActive(ctx, accountID)
	if err != nil {
		return err
	}
	if !active {
		return denial
	}
	return nil
}

func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return string(errors.InternalError)
}
