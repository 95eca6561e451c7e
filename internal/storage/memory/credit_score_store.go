package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// CreditScoreStore is an in-memory implementation of storage.CreditScoreStore.
type CreditScoreStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CreditScore // keyed by (run_id, account_id)
}

// NewCreditScoreStore creates a new in-memory credit score store.
func NewCreditScoreStore() *CreditScoreStore {
	return &CreditScoreStore{
		data: make(map[string]*domain.CreditScore),
	}
}

func creditScoreKey(runID, accountID string) string {
	return fmt.Sprintf("%s|%s", runID, accountID)
}

// InsertBulk adds scores atomically. Fails entire batch on duplicate.
func (s *CreditScoreStore) InsertBulk(_ context.Context, scores []*domain.CreditScore) error {
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(scores))

	for _, c := range scores {
		if c == nil || c.RunID == "" || c.AccountID == "" {
			return storage.ErrInvalidInput
		}
		key := creditScoreKey(c.RunID, c.AccountID)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, c := range scores {
		scoreCopy := *c
		s.data[creditScoreKey(c.RunID, c.AccountID)] = &scoreCopy
	}

	return nil
}

// GetTopN retrieves the n best-ranked scores of a run, ordered by rank ASC.
func (s *CreditScoreStore) GetTopN(_ context.Context, runID string, n int) ([]*domain.CreditScore, error) {
	if n < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CreditScore
	for _, c := range s.data {
		if c.RunID == runID {
			scoreCopy := *c
			result = append(result, &scoreCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})

	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// GetByRun retrieves every score of a run, ordered by account_id ASC.
func (s *CreditScoreStore) GetByRun(_ context.Context, runID string) ([]*domain.CreditScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CreditScore
	for _, c := range s.data {
		if c.RunID == runID {
			scoreCopy := *c
			result = append(result, &scoreCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountID < result[j].AccountID
	})
	return result, nil
}

// GetByAccount retrieves one wallet's score in a run. Returns ErrNotFound if not exists.
func (s *CreditScoreStore) GetByAccount(_ context.Context, runID, accountID string) (*domain.CreditScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[creditScoreKey(runID, accountID)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	scoreCopy := *c
	return &scoreCopy, nil
}

var _ storage.CreditScoreStore = (*CreditScoreStore)(nil)
