package reporting

import (
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/explain"
	"wallet-risk-lab/internal/validation"
)

// Report represents the scoring run report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Run         RunMetadata

	// Data Summary
	DataSummary DataSummary

	// Label distribution produced by the heuristic policy
	Labels LabelSummary

	// Pre-training checks, all passed when a report exists
	Sufficiency []SufficiencyCheckRow

	// Out-of-fold evaluation
	Evaluation   validation.Evaluation
	FoldAccuracy []float64 // per fold, in fold order

	// Feature importance (sorted by mean |contribution| DESC)
	Features []explain.FeatureSummary

	// Top wallets (rank ASC)
	TopWallets []*domain.CreditScore
}

// RunMetadata identifies the run.
type RunMetadata struct {
	RunID            string
	DataVersion      string
	PolicyVersion    string
	Selection        string
	Folds            int
	Seed             int64
	GeneratorVersion string
}

// DataSummary describes the input.
type DataSummary struct {
	Sources        int
	Deposits       int
	Wallets        int
	Assets         int
	DateRangeStart time.Time
	DateRangeEnd   time.Time
	TotalUSD       float64
}

// SufficiencyCheckRow is one data sufficiency check result.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// LabelSummary counts wallets per heuristic label.
type LabelSummary struct {
	Risky    int
	Reliable int
}

// Total returns the labeled wallet count.
func (l LabelSummary) Total() int {
	return l.Risky + l.Reliable
}
