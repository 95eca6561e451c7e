package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-risk-lab/internal/domain"
)

type fixedClassifier []float64

func (f fixedClassifier) PredictProba(x [][]float64) []float64 {
	return append([]float64(nil), f[:len(x)]...)
}

func wallets(ids ...string) []*domain.WalletFeatureVector {
	out := make([]*domain.WalletFeatureVector, len(ids))
	for i, id := range ids {
		out[i] = &domain.WalletFeatureVector{AccountID: id, TxCount: 1, ActiveDays: 1, UniqueAssets: 1}
	}
	return out
}

func TestCreditScore(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 0},
		{1, 100},
		{0.12345, 12.34},
		{0.00125, 0.12},
		{0.00375, 0.38},
		{0.98761, 98.76},
		{0.5, 50},
		{-0.1, 0},
		{1.2, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CreditScore(tt.p), "p=%v", tt.p)
	}
}

func TestScore_RanksByScoreThenAccount(t *testing.T) {
	vectors := wallets("0xC", "0xA", "0xB", "0xD")
	scores := Score("run-1", fixedClassifier{0.9, 0.2, 0.9, 0.55}, vectors)

	require.Len(t, scores, 4)
	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = s.AccountID
		assert.Equal(t, i+1, s.Rank)
		assert.Equal(t, "run-1", s.RunID)
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 100.0)
	}
	assert.Equal(t, []string{"0xB", "0xC", "0xD", "0xA"}, ids)
	assert.Equal(t, 90.0, scores[0].Score)
}

func TestTopN(t *testing.T) {
	scores := Score("r", fixedClassifier{0.1, 0.2, 0.3}, wallets("a", "b", "c"))

	assert.Len(t, TopN(scores, 2), 2)
	assert.Equal(t, "c", TopN(scores, 1)[0].AccountID)
	assert.Len(t, TopN(scores, 1000), 3)
	assert.Empty(t, TopN(scores, 0))
}
