package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
	"wallet-risk-lab/internal/storage/memory"
)

func TestAggregator_ComputeAndStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWalletFeatureStore()
	agg := NewAggregator(store)

	vectors, err := agg.Compute([]domain.NormalizedDeposit{
		deposit("0xA", 5, 0, "USDC"),
		deposit("0xB", 7, 0, "DAI"),
	})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	require.NoError(t, agg.Store(ctx, "run-1", vectors))

	stored, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Append-only: the same run cannot be stored twice.
	assert.ErrorIs(t, agg.Store(ctx, "run-1", vectors), storage.ErrDuplicateKey)
}

func TestAggregator_NoDeposits(t *testing.T) {
	_, err := NewAggregator(nil).Compute(nil)
	assert.ErrorIs(t, err, domain.ErrNoDeposits)
}

func TestAggregator_SumOverflowIsMalformedAmount(t *testing.T) {
	_, err := NewAggregator(nil).Compute([]domain.NormalizedDeposit{
		deposit("0xA", 1e308, 0, "USDC"),
		deposit("0xA", 1e308, 0, "USDC"),
		deposit("0xB", 5, 0, "USDC"),
	})
	require.ErrorIs(t, err, domain.ErrMalformedAmount)
	assert.NotErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, err.Error(), "0xA: total_usd")
}

func TestAggregator_NilStoreSkipsPersistence(t *testing.T) {
	assert.NoError(t, NewAggregator(nil).Store(context.Background(), "run-1", nil))
}
