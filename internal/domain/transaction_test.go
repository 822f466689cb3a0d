package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestIdempotencyTupleMatches(t *testing.T) {
	approved := &Transaction{
		AccountID:      7,
		Amount:         decimal.RequireFromString("-25.00"),
		Type:           TypeInternalTransfer,
		Direction:      DirectionOutbound,
		Status:         StatusApproved,
		RuleID:         ptr(int64(3)),
		IdempotencyKey: ptr("k1"),
	}
	tuple := IdempotencyTuple{
		Key:       "k1",
		Type:      TypeInternalTransfer,
		AccountID: 7,
		Amount:    decimal.RequireFromString("-25"),
		RuleID:    ptr(int64(3)),
	}

	tests := []struct {
		name   string
		mutate func(t *IdempotencyTuple)
		want   bool
	}{
		{"same tuple", func(*IdempotencyTuple) {}, true},
		{"different key", func(t *IdempotencyTuple) { t.Key = "k2" }, false},
		{"different amount", func(t *IdempotencyTuple) { t.Amount = decimal.RequireFromString("-26.00") }, false},
		{"different account", func(t *IdempotencyTuple) { t.AccountID = 8 }, false},
		{"different type", func(t *IdempotencyTuple) { t.Type = TypeWithdrawal }, false},
		{"missing rule", func(t *IdempotencyTuple) { t.RuleID = nil }, false},
		{"other rule", func(t *IdempotencyTuple) { t.RuleID = ptr(int64(4)) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := tuple
			tt.mutate(&tu)
			assert.Equal(t, tt.want, tu.Matches(approved))
		})
	}
}

func TestIdempotencyTupleIgnoresDenied(t *testing.T) {
	denied := &Transaction{
		AccountID:      1,
		Amount:         decimal.RequireFromString("-150.00"),
		Type:           TypeWithdrawal,
		Status:         StatusDenied,
		IdempotencyKey: ptr("k1"),
	}
	tuple := IdempotencyTuple{Key: "k1", Type: TypeWithdrawal, AccountID: 1, Amount: denied.Amount}

	assert.False(t, tuple.Matches(denied))
	assert.False(t, tuple.Matches(nil))
}

func TestAccountOwnedBy(t *testing.T) {
	account := &Account{ID: 1, UserID: 42}

	assert.True(t, account.OwnedBy(&Principal{UserID: 42}))
	assert.False(t, account.OwnedBy(&Principal{UserID: 41}))
	assert.False(t, account.OwnedBy(nil))
}
