package features

import (
	"errors"
	"fmt"
	"math"

	"wallet-risk-lab/internal/domain"
)

// ErrInvariantViolation is returned when a feature vector breaks a row invariant.
var ErrInvariantViolation = errors.New("feature invariant violated")

// CheckFinite fails with domain.ErrMalformedAmount when a monetary
// aggregate is not representable as a finite float64, as happens when a
// wallet's deposits sum past the float64 range.
func CheckFinite(v *domain.WalletFeatureVector) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{domain.FeatureTotalUSD, v.TotalUSD},
		{domain.FeatureAvgUSD, v.AvgUSD},
		{domain.FeatureStdUSD, v.StdUSD},
		{domain.FeatureMaxUSD, v.MaxUSD},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s: %s overflows float64: %w", v.AccountID, f.name, domain.ErrMalformedAmount)
		}
	}
	return nil
}

// CheckInvariants verifies the row invariants of a feature vector.
func CheckInvariants(v *domain.WalletFeatureVector) error {
	switch {
	case v.AccountID == "":
		return fmt.Errorf("empty account_id: %w", ErrInvariantViolation)
	case v.TxCount < 1:
		return fmt.Errorf("%s: tx_count %d < 1: %w", v.AccountID, v.TxCount, ErrInvariantViolation)
	case v.ActiveDays < 1:
		return fmt.Errorf("%s: active_days %d < 1: %w", v.AccountID, v.ActiveDays, ErrInvariantViolation)
	case v.UniqueAssets < 1:
		return fmt.Errorf("%s: unique_assets %d < 1: %w", v.AccountID, v.UniqueAssets, ErrInvariantViolation)
	case v.TotalUSD < 0, v.AvgUSD < 0, v.StdUSD < 0, v.MaxUSD < 0:
		return fmt.Errorf("%s: negative monetary feature: %w", v.AccountID, ErrInvariantViolation)
	case v.TotalUSD < v.MaxUSD:
		return fmt.Errorf("%s: total_usd %f < max_usd %f: %w", v.AccountID, v.TotalUSD, v.MaxUSD, ErrInvariantViolation)
	}
	return nil
}
