package explain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/gbdt"
)

func vectors() []*domain.WalletFeatureVector {
	var out []*domain.WalletFeatureVector
	for tx := 1; tx <= 8; tx++ {
		for total := 0; total <= 30; total += 3 {
			out = append(out, &domain.WalletFeatureVector{
				AccountID:    "w",
				TotalUSD:     float64(total),
				AvgUSD:       float64(total) / float64(tx),
				TxCount:      tx,
				MaxUSD:       float64(total) / float64(tx),
				ActiveDays:   1,
				UniqueAssets: 1,
			})
		}
	}
	return out
}

func train(t *testing.T, rounds int) (*gbdt.Model, []*domain.WalletFeatureVector) {
	t.Helper()
	vs := vectors()
	y := make([]int, len(vs))
	for i, v := range vs {
		if v.TxCount > 3 && v.TotalUSD > 10 {
			y[i] = 1
		}
	}
	params := gbdt.DefaultParams()
	params.NumRounds = rounds
	m, err := gbdt.Train(context.Background(), domain.FeatureMatrix(vs), y, domain.FeatureNames, params)
	require.NoError(t, err)
	return m, vs
}

func TestContributions_SumToMargin(t *testing.T) {
	model, vs := train(t, 30)

	for _, v := range vs {
		row := v.Row()
		bias, contrib := Contributions(model, row)
		sum := bias
		for _, c := range contrib {
			sum += c
		}
		assert.InDelta(t, model.Margin(row), sum, 1e-9)
	}
}

func TestExplain_EnsembleMeanMargin(t *testing.T) {
	a, vs := train(t, 10)
	b, _ := train(t, 20)

	attrs := Explain([]*gbdt.Model{a, b}, vs)
	require.Len(t, attrs, len(vs))

	for i, v := range vs {
		row := v.Row()
		want := (a.Margin(row) + b.Margin(row)) / 2
		assert.InDelta(t, want, attrs[i].Margin(), 1e-9)
	}
}

func TestSummarize(t *testing.T) {
	model, vs := train(t, 30)
	attrs := Explain([]*gbdt.Model{model}, vs)

	summary := Summarize(domain.FeatureNames, model.FeatureImportance(), attrs)
	require.Len(t, summary, len(domain.FeatureNames))

	for i := 1; i < len(summary); i++ {
		assert.GreaterOrEqual(t, summary[i-1].MeanAbsContribution, summary[i].MeanAbsContribution)
	}

	// Constant columns never split, so they carry no attribution.
	byName := make(map[string]FeatureSummary)
	for _, s := range summary {
		byName[s.Name] = s
	}
	assert.Zero(t, byName[domain.FeatureActiveDays].MeanAbsContribution)
	assert.Zero(t, byName[domain.FeatureUniqueAssets].Gain)
	assert.Greater(t, byName[domain.FeatureTxCount].Gain+byName[domain.FeatureTotalUSD].Gain, 0.0)
}

func TestMeanAbs(t *testing.T) {
	attrs := []Attribution{
		{Contributions: []float64{1, -2}},
		{Contributions: []float64{-3, 0}},
	}
	assert.Equal(t, []float64{2, 1}, MeanAbs(attrs, 2))
	assert.Equal(t, []float64{0, 0}, MeanAbs(nil, 2))
}
