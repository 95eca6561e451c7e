package domain

// Feature column names, in matrix column order.
const (
	FeatureTotalUSD     = "total_usd"
	FeatureAvgUSD       = "avg_usd"
	FeatureStdUSD       = "std_usd"
	FeatureTxCount      = "tx_count"
	FeatureMaxUSD       = "max_usd"
	FeatureActiveDays   = "active_days"
	FeatureUniqueAssets = "unique_assets"
)

// FeatureNames lists the model input columns in the order produced by Row.
var FeatureNames = []string{
	FeatureTotalUSD,
	FeatureAvgUSD,
	FeatureStdUSD,
	FeatureTxCount,
	FeatureMaxUSD,
	FeatureActiveDays,
	FeatureUniqueAssets,
}

// WalletFeatureVector holds behavioral aggregates for one wallet.
// Invariants: TxCount >= 1, ActiveDays >= 1, monetary fields >= 0,
// TotalUSD >= MaxUSD.
type WalletFeatureVector struct {
	AccountID    string
	TotalUSD     float64 // sum of amountUSD
	AvgUSD       float64 // mean of amountUSD
	StdUSD       float64 // sample std dev (n-1), 0 for a single deposit
	TxCount      int     // number of deposits
	MaxUSD       float64 // largest single deposit
	ActiveDays   int     // whole days between first and last deposit, plus 1
	UniqueAssets int     // distinct asset symbols
}

// Row returns the feature values in FeatureNames order.
func (v *WalletFeatureVector) Row() []float64 {
	return []float64{
		v.TotalUSD,
		v.AvgUSD,
		v.StdUSD,
		float64(v.TxCount),
		v.MaxUSD,
		float64(v.ActiveDays),
		float64(v.UniqueAssets),
	}
}

// FeatureMatrix builds the model input matrix, one row per wallet,
// in the order of vectors.
func FeatureMatrix(vectors []*WalletFeatureVector) [][]float64 {
	x := make([][]float64, len(vectors))
	for i, v := range vectors {
		x[i] = v.Row()
	}
	return x
}
