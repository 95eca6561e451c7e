package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// WalletFeatureStore is an in-memory implementation of storage.WalletFeatureStore.
type WalletFeatureStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.WalletFeatureVector // run_id -> account_id -> vector
}

// NewWalletFeatureStore creates a new in-memory wallet feature store.
func NewWalletFeatureStore() *WalletFeatureStore {
	return &WalletFeatureStore{
		data: make(map[string]map[string]*domain.WalletFeatureVector),
	}
}

// InsertBulk adds every vector of a run. Fails entire batch on duplicate.
func (s *WalletFeatureStore) InsertBulk(_ context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batchKeys := make(map[string]struct{}, len(vectors))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, v := range vectors {
		if v == nil || v.AccountID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := existing[v.AccountID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[v.AccountID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[v.AccountID] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[string]*domain.WalletFeatureVector, len(vectors))
		s.data[runID] = existing
	}
	for _, v := range vectors {
		vectorCopy := *v
		existing[v.AccountID] = &vectorCopy
	}

	return nil
}

// GetByRun retrieves all vectors of a run, ordered by account_id ASC.
func (s *WalletFeatureStore) GetByRun(_ context.Context, runID string) ([]*domain.WalletFeatureVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.WalletFeatureVector, 0, len(s.data[runID]))
	for _, v := range s.data[runID] {
		vectorCopy := *v
		result = append(result, &vectorCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountID < result[j].AccountID
	})

	return result, nil
}

var _ storage.WalletFeatureStore = (*WalletFeatureStore)(nil)
