package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// memLedger is an in-memory domain.Store. Units of work are serialized and
// roll back to a snapshot on error. Debit is conditional and approved rows
// are unique per idempotency tuple, like the Postgres schema.
type memLedger struct {
	mu sync.Mutex

	nextAccountID int64
	accounts      map[int64]domain.Account
	transactions  []*domain.Transaction
	payees        map[int64]domain.Payee
	billPayRules  map[int64]domain.BillPayRule
	transferRules map[int64]domain.TransferRule

	// failCreate, when set, is consulted before every insert.
	failCreate func(tx *domain.Transaction) error

	keysMu   sync.Mutex
	keyLocks map[string]chan struct{}
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts:      make(map[int64]domain.Account),
		payees:        make(map[int64]domain.Payee),
		billPayRules:  make(map[int64]domain.BillPayRule),
		transferRules: make(map[int64]domain.TransferRule),
		keyLocks:      make(map[string]chan struct{}),
	}
}

func (l *memLedger) addAccount(number string, userID int64, balance string, active bool) *domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextAccountID++
	a := domain.Account{
		ID:            l.nextAccountID,
		AccountNumber: number,
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		Active:        active,
	}
	l.accounts[a.ID] = a
	return &a
}

func (l *memLedger) setActive(id int64, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accounts[id]
	a.Active = active
	l.accounts[id] = a
}

func (l *memLedger) balance(id int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[id].Balance
}

func (l *memLedger) rows(status domain.Status) []*domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range l.transactions {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out
}

func (l *memLedger) rowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transactions)
}

func (l *memLedger) store() *memStore {
	return &memStore{ledger: l}
}

// memStore is the pool view; memRepos inside a unit of work runs with the
// ledger lock already held.
type memStore struct {
	ledger *memLedger
}

func (s *memStore) Account() domain.AccountRepository         { return &memAccounts{s.ledger, false} }
func (s *memStore) Transaction() domain.TransactionRepository { return &memTransactions{s.ledger, false} }
func (s *memStore) Rule() domain.RuleRepository               { return &memRules{s.ledger, false} }

func (s *memStore) WithTransaction(ctx context.Context, fn func(domain.Repositories) error) error {
	l := s.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make(map[int64]domain.Account, len(l.accounts))
	for id, a := range l.accounts {
		accounts[id] = a
	}
	rowCount := len(l.transactions)

	if err := fn(memRepos{l}); err != nil {
		l.accounts = accounts
		l.transactions = l.transactions[:rowCount]
		return err
	}
	return nil
}

// LockKey is independent of the ledger lock, so a holder can still run units
// of work and callbacks that touch the ledger.
func (s *memStore) LockKey(ctx context.Context, name string) (domain.Store, func(), error) {
	l := s.ledger
	l.keysMu.Lock()
	sem, ok := l.keyLocks[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.keyLocks[name] = sem
	}
	l.keysMu.Unlock()

	select {
	case sem <- struct{}{}:
		return s, func() { <-sem }, nil
	case <-ctx.Done():
		return nil, nil, errors.ErrKeyInUse
	}
}

type memRepos struct {
	ledger *memLedger
}

func (r memRepos) Account() domain.AccountRepository         { return &memAccounts{r.ledger, true} }
func (r memRepos) Transaction() domain.TransactionRepository { return &memTransactions{r.ledger, true} }
func (r memRepos) Rule() domain.RuleRepository               { return &memRules{r.ledger, true} }

func lockUnlessHeld(l *memLedger, held bool) func() {
	if held {
		return func() {}
	}
	l.mu.Lock()
	return l.mu.Unlock
}

type memAccounts struct {
	ledger *memLedger
	held   bool
}

func (r *memAccounts) CreateAccount(_ context.Context, account *domain.Account) error {
	defer lockUnlessHeld(r.ledger, r.held)()
	r.ledger.nextAccountID++
	account.ID = r.ledger.nextAccountID
	r.ledger.accounts[account.ID] = *account
	return nil
}

func (r *memAccounts) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	a, ok := r.ledger.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return &a, nil
}

func (r *memAccounts) GetAccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	for _, a := range r.ledger.accounts {
		if a.AccountNumber == number {
			return &a, nil
		}
	}
	return nil, errors.ErrAccountNotFound
}

func (r *memAccounts) IsActive(_ context.Context, id int64) (bool, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	a, ok := r.ledger.accounts[id]
	if !ok {
		return false, errors.ErrAccountNotFound
	}
	return a.Active, nil
}

func (r *memAccounts) Debit(_ context.Context, id int64, amount decimal.Decimal) (bool, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	a, ok := r.ledger.accounts[id]
	if !ok || a.Balance.LessThan(amount) {
		return false, nil
	}
	a.Balance = a.Balance.Sub(amount)
	r.ledger.accounts[id] = a
	return true, nil
}

func (r *memAccounts) Credit(_ context.Context, id int64, amount decimal.Decimal) error {
	defer lockUnlessHeld(r.ledger, r.held)()
	a, ok := r.ledger.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	if a.Balance.Add(amount).GreaterThanOrEqual(domain.BalanceLimit) {
		return errors.ErrBalanceLimit
	}
	a.Balance = a.Balance.Add(amount)
	r.ledger.accounts[id] = a
	return nil
}

type memTransactions struct {
	ledger *memLedger
	held   bool
}

func (r *memTransactions) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	defer lockUnlessHeld(r.ledger, r.held)()
	if r.ledger.failCreate != nil {
		if err := r.ledger.failCreate(tx); err != nil {
			return err
		}
	}

	if tx.Status == domain.StatusApproved && tx.IdempotencyKey != nil {
		tuple := domain.IdempotencyTuple{
			Key:       *tx.IdempotencyKey,
			Type:      tx.Type,
			AccountID: tx.AccountID,
			Amount:    tx.Amount,
			RuleID:    tx.RuleID,
		}
		for _, existing := range r.ledger.transactions {
			if tuple.Matches(existing) {
				return errors.ErrDuplicateTransaction
			}
		}
	}

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = time.Now().UTC()
	stored := *tx
	r.ledger.transactions = append(r.ledger.transactions, &stored)
	return nil
}

func (r *memTransactions) GetTransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	for _, tx := range r.ledger.transactions {
		if tx.ID == id {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTransactions) FindApproved(_ context.Context, tuple domain.IdempotencyTuple) (*domain.Transaction, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	for _, tx := range r.ledger.transactions {
		if tuple.Matches(tx) {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTransactions) ListByAccount(_ context.Context, accountID int64, limit int) ([]*domain.Transaction, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	var out []*domain.Transaction
	for i := len(r.ledger.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if tx := r.ledger.transactions[i]; tx.AccountID == accountID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memRules struct {
	ledger *memLedger
	held   bool
}

func (r *memRules) GetBillPayRule(_ context.Context, id int64) (*domain.BillPayRule, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	rule, ok := r.ledger.billPayRules[id]
	if !ok {
		return nil, errors.ErrRuleNotFound
	}
	rule.Payee = nil
	if rule.PayeeID != nil {
		if payee, ok := r.ledger.payees[*rule.PayeeID]; ok {
			rule.Payee = &payee
		}
	}
	return &rule, nil
}

func (r *memRules) GetTransferRule(_ context.Context, id int64) (*domain.TransferRule, error) {
	defer lockUnlessHeld(r.ledger, r.held)()
	rule, ok := r.ledger.transferRules[id]
	if !ok {
		return nil, errors.ErrRuleNotFound
	}
	return &rule, nil
}

// sortedAmounts is used to compare row sets without caring about order.
func sortedAmounts(rows []*domain.Transaction) []string {
	out := make([]string, 0, len(rows))
	for _, tx := range rows {
		out = append(out, tx.Amount.StringFixed(2))
	}
	sort.Strings(out)
	return out
}
