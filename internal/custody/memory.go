package custody

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is a reference in-process custody ledger with 1:1
// amount/share conversion. It backs development topologies, the loadtest
// harness, and end-to-end tests; production deployments wire a real ledger
// behind the same interface.
type MemoryLedger struct {
	mu     sync.Mutex
	shares map[string]uint64
	paused bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{shares: make(map[string]uint64)}
}

// SetPaused toggles the ledger's capability gate. A paused ledger refuses
// every mutation with ErrCapabilityDenied, mirroring a custody layer that
// has revoked the composer's invocation rights.
func (l *MemoryLedger) SetPaused(paused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = paused
}

func (l *MemoryLedger) Credit(ctx context.Context, user string, amount uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, fmt.Errorf("custody: credit of zero amount for %s", user)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return 0, ErrCapabilityDenied
	}
	l.shares[user] += amount
	return amount, nil
}

func (l *MemoryLedger) Debit(ctx context.Context, user string, shares uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, fmt.Errorf("custody: debit of zero shares for %s", user)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return 0, ErrCapabilityDenied
	}
	held := l.shares[user]
	if held < shares {
		return 0, fmt.Errorf("%w: user %s holds %d shares, debit wants %d", ErrInsufficientBalance, user, held, shares)
	}
	l.shares[user] = held - shares
	return shares, nil
}

func (l *MemoryLedger) SharesOf(ctx context.Context, user string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shares[user], nil
}
