package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/scoring"
	"wallet-risk-lab/internal/storage"
)

// ErrRunNotFound is returned when a run has no persisted features.
var ErrRunNotFound = errors.New("run not found")

// ScoreVerifier implements Verifier by re-scoring stored features.
type ScoreVerifier struct {
	featureStore storage.WalletFeatureStore
	scoreStore   storage.CreditScoreStore
	model        scoring.Classifier
}

// NewScoreVerifier creates a verifier. model must be the one the run deployed.
func NewScoreVerifier(features storage.WalletFeatureStore, scores storage.CreditScoreStore, model scoring.Classifier) *ScoreVerifier {
	return &ScoreVerifier{
		featureStore: features,
		scoreStore:   scores,
		model:        model,
	}
}

var _ Verifier = (*ScoreVerifier)(nil)

// VerifyRun recomputes every wallet's score and rank and compares them
// with the stored rows. A wallet without a stored score and a stored score
// without a feature row are both divergences.
func (v *ScoreVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	// 1. Load stored features and scores
	vectors, err := v.featureStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	storedRows, err := v.scoreStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	stored := make(map[string]*domain.CreditScore, len(storedRows))
	for _, c := range storedRows {
		stored[c.AccountID] = c
	}

	// 2. Replay scoring
	replayed := scoring.Score(runID, v.model, vectors)

	report := &VerificationReport{
		RunID:   runID,
		Results: make([]VerificationResult, 0, len(replayed)),
	}
	record := func(r VerificationResult) {
		report.Results = append(report.Results, r)
		if r.Match {
			report.MatchedWallets++
		} else {
			report.DivergentWallets++
		}
	}

	// 3. Compare replayed wallets
	for _, r := range replayed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok := stored[r.AccountID]
		if !ok {
			record(VerificationResult{
				AccountID:     r.AccountID,
				ReplayedScore: r.Score,
				Divergences: []FieldDivergence{
					{Field: "Missing", Expected: nil, Actual: r.Score},
				},
			})
			continue
		}
		delete(stored, r.AccountID)

		divergences := CompareScores(s, r)
		record(VerificationResult{
			AccountID:     r.AccountID,
			Match:         len(divergences) == 0,
			Divergences:   divergences,
			StoredScore:   s.Score,
			ReplayedScore: r.Score,
		})
	}

	// 4. Whatever is left was stored for an account the run never featurized
	for _, s := range stored {
		record(VerificationResult{
			AccountID:   s.AccountID,
			StoredScore: s.Score,
			Divergences: []FieldDivergence{
				{Field: "Orphan", Expected: s.Score, Actual: nil},
			},
		})
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].AccountID < report.Results[j].AccountID
	})
	report.TotalWallets = len(report.Results)
	return report, nil
}
