package features

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// Aggregator computes wallet feature vectors and optionally persists them.
type Aggregator struct {
	featureStore storage.WalletFeatureStore // nil disables persistence
}

// NewAggregator creates an aggregator. featureStore may be nil.
func NewAggregator(featureStore storage.WalletFeatureStore) *Aggregator {
	return &Aggregator{featureStore: featureStore}
}

// Compute aggregates deposits and checks every row. An aggregate that
// overflows float64 fails with domain.ErrMalformedAmount.
func (a *Aggregator) Compute(deposits []domain.NormalizedDeposit) ([]*domain.WalletFeatureVector, error) {
	if len(deposits) == 0 {
		return nil, domain.ErrNoDeposits
	}

	vectors := Aggregate(deposits)
	for _, v := range vectors {
		if err := CheckFinite(v); err != nil {
			return nil, err
		}
		if err := CheckInvariants(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Store persists vectors under runID. Returns storage.ErrDuplicateKey
// if the run was already stored (append-only).
func (a *Aggregator) Store(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if a.featureStore == nil {
		return nil
	}
	if err := a.featureStore.InsertBulk(ctx, runID, vectors); err != nil {
		return fmt.Errorf("store wallet features: %w", err)
	}
	return nil
}
