package postgres_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
	pgstore "wallet-risk-lab/internal/storage/postgres"
	"wallet-risk-lab/internal/storage/storagetest"
)

func testRun(id string, started time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:            id,
		StartedAt:        started,
		FinishedAt:       started.Add(2 * time.Minute),
		DataVersion:      "abc123",
		PolicyVersion:    "engagement-rule/v1",
		Selection:        domain.SelectionRefit,
		Folds:            5,
		Seed:             42,
		DepositCount:     120,
		WalletCount:      30,
		ReliableCount:    11,
		OOFAccuracy:      0.93,
		OOFROCAUC:        0.97,
		GeneratorVersion: "1.0.0",
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	pool := storagetest.Postgres(t)

	store := pgstore.NewRunStore(pool)
	ctx := context.Background()

	run := testRun("run-1", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, *run, *got)

	err = store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_NaNAUC(t *testing.T) {
	pool := storagetest.Postgres(t)

	store := pgstore.NewRunStore(pool)
	ctx := context.Background()

	run := testRun("run-nan", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	run.OOFROCAUC = math.NaN()
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-nan")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.OOFROCAUC))
}

func TestRunStore_GetLatest(t *testing.T) {
	pool := storagetest.Postgres(t)

	store := pgstore.NewRunStore(pool)
	ctx := context.Background()

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, testRun("run-a", base)))
	require.NoError(t, store.Insert(ctx, testRun("run-b", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, testRun("run-c", base.Add(30*time.Minute))))

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)
}
