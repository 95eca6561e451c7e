package features

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"wallet-risk-lab/internal/domain"
)

const day = 24 * time.Hour

// Aggregate groups deposits by account_id and computes one feature vector
// per wallet. Output is ordered by AccountID ASC. Input order does not
// affect the result.
func Aggregate(deposits []domain.NormalizedDeposit) []*domain.WalletFeatureVector {
	groups := make(map[string][]int)
	for i := range deposits {
		id := deposits[i].AccountID
		groups[id] = append(groups[id], i)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors := make([]*domain.WalletFeatureVector, len(ids))
	for i, id := range ids {
		vectors[i] = computeWallet(id, deposits, groups[id])
	}
	return vectors
}

// computeWallet computes the features of one non-empty group.
func computeWallet(accountID string, deposits []domain.NormalizedDeposit, idx []int) *domain.WalletFeatureVector {
	n := len(idx)
	amounts := make([]float64, n)
	assets := make(map[string]struct{})
	first := deposits[idx[0]].Timestamp
	last := first

	for i, j := range idx {
		d := &deposits[j]
		amounts[i] = d.AmountUSD
		assets[d.AssetSymbol] = struct{}{}
		if d.Timestamp.Before(first) {
			first = d.Timestamp
		}
		if d.Timestamp.After(last) {
			last = d.Timestamp
		}
	}

	// Sort so that floating-point sums do not depend on input order.
	sort.Float64s(amounts)

	return &domain.WalletFeatureVector{
		AccountID:    accountID,
		TotalUSD:     floats.Sum(amounts),
		AvgUSD:       stat.Mean(amounts, nil),
		StdUSD:       sampleStddev(amounts),
		TxCount:      n,
		MaxUSD:       floats.Max(amounts),
		ActiveDays:   activeDays(first, last),
		UniqueAssets: len(assets),
	}
}

// sampleStddev is the n-1 standard deviation, defined as 0 for a single
// observation instead of NaN.
func sampleStddev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

// activeDays counts whole days between first and last deposit, plus one.
func activeDays(first, last time.Time) int {
	return int(last.Sub(first)/day) + 1
}
