package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// lockWaitLimit bounds how long a request queues behind a twin holding the
// same key.
const lockWaitLimit = 30 * time.Second

var errLockHeld = stderrors.New("advisory lock held by another session")

type connector interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

var _ connector = (*sql.DB)(nil)

// LockKey takes a session-level advisory lock on name. Waiters poll with
// pg_try_advisory_lock and give their connection back between attempts, so
// queued requests never starve the holder of a connection for its own unit
// of work, which runs on the returned Store.
func (s *Store) LockKey(ctx context.Context, name string) (domain.Store, func(), error) {
	db, ok := s.executor.(connector)
	if !ok {
		return nil, nil, errors.ErrCannotBeginTransaction
	}

	var conn *sql.Conn
	attempt := func() error {
		c, err := db.Conn(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		var locked bool
		if err := c.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&locked); err != nil {
			c.Close()
			return backoff.Permanent(err)
		}
		if !locked {
			c.Close()
			return errLockHeld
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = lockWaitLimit

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if stderrors.Is(err, errLockHeld) || ctx.Err() != nil {
			s.logger.Warn("Idempotency key still locked", "error", err)
			return nil, nil, errors.ErrKeyInUse
		}
		s.logger.Error("Failed to lock idempotency key", "error", err)
		return nil, nil, errors.Internal("failed to lock idempotency key", err)
	}

	release := func() {
		defer conn.Close()
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtext($1))`, name); err != nil {
			s.logger.Error("Failed to release idempotency key lock", "error", err)
			// Discard the session so the lock goes with it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}

	return &Store{executor: conn, logger: s.logger}, release, nil
}
