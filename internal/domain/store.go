package domain

import "context"

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
}

// Repositories groups the repositories bound to one executor, either the
// connection pool or an open database transaction.
type Repositories interface {
	Account() AccountRepository
	Transaction() TransactionRepository
	Rule() RuleRepository
}

// Store is a Repositories that can open a unit of work. Everything fn does
// through its argument commits or rolls back together.
type Store interface {
	Repositories
	WithTransaction(ctx context.Context, fn func(Repositories) error) error

	// LockKey waits until name is held exclusively by the caller, across
	// processes sharing the database. The returned Store runs on the session
	// that owns the lock; release must be called exactly once.
	LockKey(ctx context.Context, name string) (locked Store, release func(), err error)
}
