// Package idempotency holds the pure helpers and the optional replay cache
// used to recognise a request that was already executed.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"transaction-engine/internal/domain"
)

const (
	// MaxKeyLength bounds the client-supplied key.
	MaxKeyLength = 255

	// MaxStoredKeyLength is the width of transactions.idempotency_key. Every
	// derived leg key of a valid client key must fit in it.
	MaxStoredKeyLength = 320

	inboundLegSuffix = ":inbound"
)

// NormalizeKey trims the header value. An empty result means no key.
func NormalizeKey(raw string) string {
	return strings.TrimSpace(raw)
}

// DeriveLegKey returns the key stored on one leg of a multi-row transaction.
// The outbound leg keeps the client key; the inbound leg gets a fixed suffix
// so each leg has its own identity. An empty key stays empty.
func DeriveLegKey(key string, leg domain.Direction) string {
	if key == "" || leg == domain.DirectionOutbound {
		return key
	}
	return key + inboundLegSuffix
}

// Fingerprint is a stable digest of the full tuple, used as the cache key.
func Fingerprint(t domain.IdempotencyTuple) string {
	rule := "-"
	if t.RuleID != nil {
		rule = strconv.FormatInt(*t.RuleID, 10)
	}
	parts := []string{
		t.Key,
		string(t.Type),
		strconv.FormatInt(t.AccountID, 10),
		t.Amount.StringFixed(2),
		rule,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
