package custody

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerCreditDebit(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	shares, err := ledger.Credit(ctx, "0xabc", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), shares)

	held, err := ledger.SharesOf(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), held)

	amount, err := ledger.Debit(ctx, "0xabc", 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), amount)

	held, err = ledger.SharesOf(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), held)
}

func TestMemoryLedgerInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Credit(ctx, "0xabc", 10)
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, "0xabc", 11)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	held, err := ledger.SharesOf(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), held, "failed debit must not change balance")
}

func TestMemoryLedgerPaused(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	ledger.SetPaused(true)

	_, err := ledger.Credit(ctx, "0xabc", 5)
	require.ErrorIs(t, err, ErrCapabilityDenied)
	_, err = ledger.Debit(ctx, "0xabc", 5)
	require.ErrorIs(t, err, ErrCapabilityDenied)

	ledger.SetPaused(false)
	_, err = ledger.Credit(ctx, "0xabc", 5)
	require.NoError(t, err)
}

func TestMemoryLedgerZeroValues(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Credit(ctx, "0xabc", 0)
	assert.Error(t, err)
	_, err = ledger.Debit(ctx, "0xabc", 0)
	assert.Error(t, err)
}

func TestMemoryLedgerConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := ledger.Credit(ctx, "0xabc", 1); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	held, err := ledger.SharesOf(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), held)
}

func TestMemoryLedgerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger := NewMemoryLedger()
	_, err := ledger.Credit(ctx, "0xabc", 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
