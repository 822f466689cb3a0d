package service

import (
	"context"
	"log/slog"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/idempotency"
)

// guard finds the approved execution of an idempotency tuple. The ledger is
// authoritative; the cache only saves the tuple scan.
type guard struct {
	cache  idempotency.Cache
	logger *slog.Logger
}

// lookup returns the approved transaction of tuple, or nil. Without a key
// nothing is ever deduplicated.
func (g *guard) lookup(ctx context.Context, repos domain.Repositories, tuple domain.IdempotencyTuple) (*domain.Transaction, error) {
	if tuple.Key == "" {
		return nil, nil
	}

	fingerprint := idempotency.Fingerprint(tuple)
	id, hit, err := g.cache.Get(ctx, fingerprint)
	if err != nil {
		g.logger.Warn("Idempotency cache read failed", "idempotency_key", tuple.Key, "error", err)
	}
	if hit {
		tx, err := repos.Transaction().GetTransactionByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if tuple.Matches(tx) {
			return tx, nil
		}
		g.logger.Warn("Stale idempotency cache entry", "idempotency_key", tuple.Key, "transaction_id", id)
	}

	return repos.Transaction().FindApproved(ctx, tuple)
}

// replay collects the approved legs of an earlier execution of p. It returns
// nil when the primary leg does not exist.
func (g *guard) replay(ctx context.Context, repos domain.Repositories, p *plan, key string) ([]*domain.Transaction, error) {
	primary, err := g.lookup(ctx, repos, p.tuple(key))
	if err != nil || primary == nil {
		return nil, err
	}

	legs := []*domain.Transaction{primary}
	if p.counter != nil {
		inbound, err := g.lookup(ctx, repos, p.counterTuple(key))
		if err != nil {
			return nil, err
		}
		if inbound != nil {
			legs = append(legs, inbound)
		}
	}
	return legs, nil
}

// remember caches every approved leg. Failures only cost a slower lookup.
func (g *guard) remember(ctx context.Context, p *plan, key string, rows []*domain.Transaction) {
	if key == "" {
		return
	}

	tuples := []domain.IdempotencyTuple{p.tuple(key)}
	if p.counter != nil {
		tuples = append(tuples, p.counterTuple(key))
	}
	for i, tuple := range tuples {
		if i >= len(rows) {
			break
		}
		if err := g.cache.Remember(ctx, idempotency.Fingerprint(tuple), rows[i].ID); err != nil {
			g.logger.Warn("Idempotency cache write failed", "idempotency_key", tuple.Key, "error", err)
		}
	}
}
