package ingestion

import (
	"context"

	"wallet-risk-lab/internal/domain"
)

// DepositSource provides raw deposit records from external storage.
type DepositSource interface {
	// Fetch returns deposits in source order. Multiple documents are
	// concatenated, never merged or deduplicated.
	Fetch(ctx context.Context) ([]domain.RawDeposit, error)
}
