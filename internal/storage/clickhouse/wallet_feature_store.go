package clickhouse

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// WalletFeatureStore implements storage.WalletFeatureStore using ClickHouse.
type WalletFeatureStore struct {
	conn *Conn
}

// NewWalletFeatureStore creates a new WalletFeatureStore.
func NewWalletFeatureStore(conn *Conn) *WalletFeatureStore {
	return &WalletFeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WalletFeatureStore = (*WalletFeatureStore)(nil)

// InsertBulk adds every vector of a run. Fails entire batch on duplicate.
func (s *WalletFeatureStore) InsertBulk(ctx context.Context, runID string, vectors []*domain.WalletFeatureVector) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(vectors) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(vectors))
	for _, v := range vectors {
		if v == nil || v.AccountID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[v.AccountID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[v.AccountID] = struct{}{}
	}

	existing, err := s.conn.storedAccounts(ctx, "wallet_features", runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, v := range vectors {
		if _, exists := existing[v.AccountID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_features (
			run_id, account_id,
			total_usd, avg_usd, std_usd, tx_count, max_usd, active_days, unique_assets
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, v := range vectors {
		err = batch.Append(
			runID, v.AccountID,
			v.TotalUSD, v.AvgUSD, v.StdUSD, uint32(v.TxCount), v.MaxUSD, uint32(v.ActiveDays), uint32(v.UniqueAssets),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all vectors of a run, ordered by account_id ASC.
func (s *WalletFeatureStore) GetByRun(ctx context.Context, runID string) ([]*domain.WalletFeatureVector, error) {
	query := `
		SELECT
			account_id,
			total_usd, avg_usd, std_usd, tx_count, max_usd, active_days, unique_assets
		FROM wallet_features
		WHERE run_id = ?
		ORDER BY account_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanWalletFeatures(rows)
}

// scanWalletFeatures scans multiple rows into a slice.
func scanWalletFeatures(rows rowScanner) ([]*domain.WalletFeatureVector, error) {
	var vectors []*domain.WalletFeatureVector

	for rows.Next() {
		var v domain.WalletFeatureVector
		var txCount, activeDays, uniqueAssets uint32

		err := rows.Scan(
			&v.AccountID,
			&v.TotalUSD, &v.AvgUSD, &v.StdUSD, &txCount, &v.MaxUSD, &activeDays, &uniqueAssets,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet features row: %w", err)
		}

		v.TxCount = int(txCount)
		v.ActiveDays = int(activeDays)
		v.UniqueAssets = int(uniqueAssets)
		vectors = append(vectors, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet features rows: %w", err)
	}

	return vectors, nil
}
