package clickhouse

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// CreditScoreStore implements storage.CreditScoreStore using ClickHouse.
type CreditScoreStore struct {
	conn *Conn
}

// NewCreditScoreStore creates a new CreditScoreStore.
func NewCreditScoreStore(conn *Conn) *CreditScoreStore {
	return &CreditScoreStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CreditScoreStore = (*CreditScoreStore)(nil)

// InsertBulk adds scores. Fails entire batch on duplicate (run_id, account_id).
func (s *CreditScoreStore) InsertBulk(ctx context.Context, scores []*domain.CreditScore) error {
	if len(scores) == 0 {
		return nil
	}

	type key struct {
		runID     string
		accountID string
	}
	seen := make(map[key]struct{}, len(scores))
	runs := make(map[string]struct{})
	for _, c := range scores {
		if c == nil || c.RunID == "" || c.AccountID == "" {
			return storage.ErrInvalidInput
		}
		k := key{c.RunID, c.AccountID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[c.RunID] = struct{}{}
	}

	for runID := range runs {
		existing, err := s.conn.storedAccounts(ctx, "credit_scores", runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for k := range seen {
			if k.runID != runID {
				continue
			}
			if _, exists := existing[k.accountID]; exists {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO credit_scores (run_id, account_id, probability, score, rank)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range scores {
		if err := batch.Append(c.RunID, c.AccountID, c.Probability, c.Score, uint32(c.Rank)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
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
		WHERE run_id = ?
		ORDER BY rank ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, runID, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("query top n: %w", err)
	}
	defer rows.Close()

	return scanCreditScores(rows)
}

// GetByRun retrieves every score of a run, ordered by account_id ASC.
func (s *CreditScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.CreditScore, error) {
	query := `
		SELECT run_id, account_id, probability, score, rank
		FROM credit_scores
		WHERE run_id = ?
		ORDER BY account_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanCreditScores(rows)
}

// GetByAccount retrieves one wallet's score in a run. Returns ErrNotFound if not exists.
func (s *CreditScoreStore) GetByAccount(ctx context.Context, runID, accountID string) (*domain.CreditScore, error) {
	query := `
		SELECT run_id, account_id, probability, score, rank
		FROM credit_scores
		WHERE run_id = ? AND account_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, runID, accountID)
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	scores, err := scanCreditScores(rows)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, storage.ErrNotFound
	}
	return scores[0], nil
}

// scanCreditScores scans multiple rows into a slice.
func scanCreditScores(rows rowScanner) ([]*domain.CreditScore, error) {
	var scores []*domain.CreditScore

	for rows.Next() {
		var c domain.CreditScore
		var rank uint32

		if err := rows.Scan(&c.RunID, &c.AccountID, &c.Probability, &c.Score, &rank); err != nil {
			return nil, fmt.Errorf("scan credit score row: %w", err)
		}

		c.Rank = int(rank)
		scores = append(scores, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit score rows: %w", err)
	}

	return scores, nil
}
