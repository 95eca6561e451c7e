package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
	pgstore "wallet-risk-lab/internal/storage/postgres"
	"wallet-risk-lab/internal/storage/storagetest"
)

func TestCreditScoreStore_InsertBulkAndQuery(t *testing.T) {
	pool := storagetest.Postgres(t)

	ctx := context.Background()
	require.NoError(t, pgstore.NewRunStore(pool).Insert(ctx, testRun("run-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	store := pgstore.NewCreditScoreStore(pool)
	scores := []*domain.CreditScore{
		{RunID: "run-1", AccountID: "0xC", Probability: 0.1, Score: 10, Rank: 3},
		{RunID: "run-1", AccountID: "0xA", Probability: 0.9, Score: 90, Rank: 1},
		{RunID: "run-1", AccountID: "0xB", Probability: 0.5, Score: 50, Rank: 2},
	}
	require.NoError(t, store.InsertBulk(ctx, scores))

	top, err := store.GetTopN(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "0xA", top[0].AccountID)
	assert.Equal(t, "0xB", top[1].AccountID)

	byRun, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, byRun, 3)
	assert.Equal(t, []string{"0xA", "0xB", "0xC"},
		[]string{byRun[0].AccountID, byRun[1].AccountID, byRun[2].AccountID})

	got, err := store.GetByAccount(ctx, "run-1", "0xC")
	require.NoError(t, err)
	assert.Equal(t, *scores[0], *got)

	_, err = store.GetByAccount(ctx, "run-1", "0xZ")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreditScoreStore_DuplicateRollsBack(t *testing.T) {
	pool := storagetest.Postgres(t)

	ctx := context.Background()
	require.NoError(t, pgstore.NewRunStore(pool).Insert(ctx, testRun("run-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	store := pgstore.NewCreditScoreStore(pool)
	batch := []*domain.CreditScore{
		{RunID: "run-1", AccountID: "0xA", Score: 90, Rank: 1},
		{RunID: "run-1", AccountID: "0xA", Score: 80, Rank: 2},
	}
	err := store.InsertBulk(ctx, batch)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	top, err := store.GetTopN(ctx, "run-1", 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	err = store.InsertBulk(ctx, []*domain.CreditScore{{RunID: "", AccountID: "0xA"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
