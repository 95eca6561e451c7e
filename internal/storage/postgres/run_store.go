package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, started_at, finished_at, data_version, policy_version, selection,
	folds, seed, deposit_count, wallet_count, reliable_count,
	oof_accuracy, oof_roc_auc, generator_version
`

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO scoring_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.StartedAt,
		r.FinishedAt,
		r.DataVersion,
		r.PolicyVersion,
		r.Selection,
		r.Folds,
		r.Seed,
		r.DepositCount,
		r.WalletCount,
		r.ReliableCount,
		r.OOFAccuracy,
		r.OOFROCAUC,
		r.GeneratorVersion,
	)
	return storeError("insert scoring run", err)
}

// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM scoring_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, storeError("get scoring run by id", err)
	}
	return r, nil
}

// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM scoring_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`

	r, err := scanRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		return nil, storeError("get latest scoring run", err)
	}
	return r, nil
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord

	err := row.Scan(
		&r.RunID,
		&r.StartedAt,
		&r.FinishedAt,
		&r.DataVersion,
		&r.PolicyVersion,
		&r.Selection,
		&r.Folds,
		&r.Seed,
		&r.DepositCount,
		&r.WalletCount,
		&r.ReliableCount,
		&r.OOFAccuracy,
		&r.OOFROCAUC,
		&r.GeneratorVersion,
	)
	if err != nil {
		return nil, err
	}

	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return &r, nil
}
