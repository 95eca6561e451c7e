// Package verification re-scores persisted wallet features with a saved
// model and checks the result against the persisted credit scores.
package verification

import (
	"context"
	"math"

	"wallet-risk-lab/internal/domain"
)

// FloatTolerance is the tolerance for probability comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// VerificationResult contains the result of verifying a single wallet.
type VerificationResult struct {
	AccountID     string
	Match         bool              // true if all fields match
	Divergences   []FieldDivergence // list of divergent fields
	StoredScore   float64
	ReplayedScore float64
}

// VerificationReport contains results for one run.
type VerificationReport struct {
	RunID            string
	TotalWallets     int
	MatchedWallets   int
	DivergentWallets int
	Results          []VerificationResult // account_id order
}

// OK reports whether every wallet matched.
func (r *VerificationReport) OK() bool {
	return r.DivergentWallets == 0
}

// Verifier checks persisted scores of a run.
type Verifier interface {
	VerifyRun(ctx context.Context, runID string) (*VerificationReport, error)
}

// CompareScores compares a stored score with a recomputed one.
// Score is rounded to 2 decimals on both sides, so it must match exactly.
func CompareScores(stored, replayed *domain.CreditScore) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.AccountID != replayed.AccountID {
		divergences = append(divergences, FieldDivergence{
			Field:    "AccountID",
			Expected: stored.AccountID,
			Actual:   replayed.AccountID,
		})
	}

	if !floatEquals(stored.Probability, replayed.Probability) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Probability",
			Expected: stored.Probability,
			Actual:   replayed.Probability,
		})
	}

	if stored.Score != replayed.Score {
		divergences = append(divergences, FieldDivergence{
			Field:    "Score",
			Expected: stored.Score,
			Actual:   replayed.Score,
		})
	}

	if stored.Rank != replayed.Rank {
		divergences = append(divergences, FieldDivergence{
			Field:    "Rank",
			Expected: stored.Rank,
			Actual:   replayed.Rank,
		})
	}

	return divergences
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
