// Package custody defines the composer's contract with the external
// asset-custody ledger. The composer never implements accounting rules; it
// calls credit/debit as a black box, at most once per successfully-deduped
// transaction id.
package custody

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientBalance reports a debit exceeding the user's shares.
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	// ErrCapabilityDenied reports that the custody ledger refused the
	// composer's invocation capability.
	ErrCapabilityDenied = errors.New("custody: capability denied")
)

// Ledger credits and debits accounting units on one chain. Both operations
// are atomic on the custody side; any error means no ack and no further
// messages for the transfer being processed.
type Ledger interface {
	// Credit converts a deposited amount into shares for user.
	Credit(ctx context.Context, user string, amount uint64) (shares uint64, err error)
	// Debit burns shares and releases the corresponding amount for user.
	Debit(ctx context.Context, user string, shares uint64) (amount uint64, err error)
}

// BalanceReader is an optional capability of a custody ledger: reporting a
// user's current share balance. The reconciliation service uses it to
// compare journal-derived expectations against custody state.
type BalanceReader interface {
	SharesOf(ctx context.Context, user string) (uint64, error)
}
