package storage

import (
	"context"

	"wallet-risk-lab/internal/domain"
)

// WalletFeatureStore provides access to wallet_features storage.
type WalletFeatureStore interface {
	// InsertBulk adds every vector of a run atomically.
	// Returns ErrDuplicateKey if any (run_id, account_id) exists, including within the batch.
	InsertBulk(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error

	// GetByRun retrieves all vectors of a run, ordered by account_id ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.WalletFeatureVector, error)
}

// CreditScoreStore provides access to credit_scores storage.
type CreditScoreStore interface {
	// InsertBulk adds scores atomically. Fails entire batch on duplicate (run_id, account_id).
	InsertBulk(ctx context.Context, scores []*domain.CreditScore) error

	// GetTopN retrieves the n best-ranked scores of a run, ordered by rank ASC.
	GetTopN(ctx context.Context, runID string, n int) ([]*domain.CreditScore, error)

	// GetByRun retrieves every score of a run, ordered by account_id ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.CreditScore, error)

	// GetByAccount retrieves one wallet's score in a run. Returns ErrNotFound if not exists.
	GetByAccount(ctx context.Context, runID, accountID string) (*domain.CreditScore, error)
}

// RunStore provides access to scoring_runs storage.
type RunStore interface {
	// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}
