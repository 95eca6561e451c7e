package scoring

import (
	"math"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// CreditScore maps a probability to round(p*100, 2) within [0, 100].
// Rounding is half to even on the binary product, so 0.12345 scores 12.34.
func CreditScore(p float64) float64 {
	s := math.RoundToEven(p*100*100) / 100
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}

// Score predicts every wallet and returns scores ranked by score
// descending, ties broken by account id ascending.
func Score(runID string, model Classifier, vectors []*domain.WalletFeatureVector) []*domain.CreditScore {
	proba := model.PredictProba(domain.FeatureMatrix(vectors))

	scores := make([]*domain.CreditScore, len(vectors))
	for i, v := range vectors {
		scores[i] = &domain.CreditScore{
			RunID:       runID,
			AccountID:   v.AccountID,
			Probability: proba[i],
			Score:       CreditScore(proba[i]),
		}
	}
	Rank(scores)
	return scores
}

// Rank sorts scores in place and assigns 1-based ranks.
func Rank(scores []*domain.CreditScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].AccountID < scores[j].AccountID
	})
	for i, s := range scores {
		s.Rank = i + 1
	}
}

// TopN returns the first n ranked scores.
func TopN(scores []*domain.CreditScore, n int) []*domain.CreditScore {
	if n < 0 {
		n = 0
	}
	if n > len(scores) {
		n = len(scores)
	}
	return scores[:n]
}
