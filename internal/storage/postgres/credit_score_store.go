package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// CreditScoreStore implements storage.CreditScoreStore using PostgreSQL.
type CreditScoreStore struct {
	pool *Pool
}

// NewCreditScoreStore creates a new CreditScoreStore.
func NewCreditScoreStore(pool *Pool) *CreditScoreStore {
	return &CreditScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CreditScoreStore = (*CreditScoreStore)(nil)

// InsertBulk adds scores atomically. Fails entire batch on any duplicate.
func (s *CreditScoreStore) InsertBulk(ctx context.Context, scores []*domain.CreditScore) error {
	if len(scores) == 0 {
		return nil
	}
	for _, c := range scores {
		if c == nil || c.RunID == "" || c.AccountID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO credit_scores (run_id, account_id, probability, score, rank)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, c := range scores {
		batch.Queue(query, c.RunID, c.AccountID, c.Probability, c.Score, c.Rank)
	}

	results := tx.SendBatch(ctx, batch)
	for range scores {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return storeError("insert credit score in bulk", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetTopN retrieves the n best-ranked scores of a run, ordered by rank ASC.
func (s *CreditScoreStore) GetTopN(ctx context.Context, runID string, n int) ([]*domain.CreditScore, error) {
	if n < 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT run_id, account_id, probability, score, rank
		FROM credit_scores
		WHERE run_id = $1
		ORDER BY rank ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, runID, n)
	if err != nil {
		return nil, fmt.Errorf("get top credit scores: %w", err)
	}
	defer rows.Close()

	return scanCreditScores(rows)
}

// GetByRun retrieves every score of a run, ordered by account_id ASC.
func (s *CreditScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.CreditScore, error) {
	query := `
		SELECT run_id, account_id, probability, score, rank
		FROM credit_scores
		WHERE run_id = $1
		ORDER BY account_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get credit scores by run: %w", err)
	}
	defer rows.Close()

	return scanCreditScores(rows)
}

// GetByAccount retrieves one wallet's score in a run. Returns ErrNotFound if not exists.
func (s *CreditScoreStore) GetByAccount(ctx context.Context, runID, accountID string) (*domain.CreditScore, error) {
	query := `
		SELECT run_id, account_id, probability, score, rank
		FROM credit_scores
		WHERE run_id = $1 AND account_id = $2
	`

	var c domain.CreditScore
	err := s.pool.QueryRow(ctx, query, runID, accountID).Scan(
		&c.RunID, &c.AccountID, &c.Probability, &c.Score, &c.Rank,
	)
	if err != nil {
		return nil, storeError("get credit score by account", err)
	}
	return &c, nil
}

// scanCreditScores scans multiple rows into a slice of CreditScore.
func scanCreditScores(rows pgx.Rows) ([]*domain.CreditScore, error) {
	var scores []*domain.CreditScore

	for rows.Next() {
		var c domain.CreditScore
		if err := rows.Scan(&c.RunID, &c.AccountID, &c.Probability, &c.Score, &c.Rank); err != nil {
			return nil, fmt.Errorf("scan credit score row: %w", err)
		}
		scores = append(scores, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit score rows: %w", err)
	}

	return scores, nil
}
