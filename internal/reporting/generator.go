package reporting

import (
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/explain"
	"wallet-risk-lab/internal/labeling"
	"wallet-risk-lab/internal/scoring"
	"wallet-risk-lab/internal/validation"
)

// Input carries everything a run produced.
type Input struct {
	Run        RunMetadata
	Raw        []domain.RawDeposit
	Deposits   []domain.NormalizedDeposit
	Labeled    []*domain.LabeledWallet
	Checks     []SufficiencyCheckRow
	CV         *validation.CVResult
	Evaluation validation.Evaluation
	Features   []explain.FeatureSummary
	Scores     []*domain.CreditScore // ranked
	TopN       int
}

// Generator assembles reports.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report from run outputs.
func (g *Generator) Generate(in Input) *Report {
	r := &Report{
		GeneratedAt: g.now(),
		Run:         in.Run,
		DataSummary: summarizeData(in.Raw, in.Deposits),
		Evaluation:  in.Evaluation,
		Sufficiency: in.Checks,
		Features:    in.Features,
		TopWallets:  scoring.TopN(in.Scores, in.TopN),
	}
	r.DataSummary.Wallets = len(in.Labeled)

	r.Labels.Risky, r.Labels.Reliable = labeling.Counts(in.Labeled)

	if in.CV != nil {
		for _, f := range in.CV.Folds {
			r.FoldAccuracy = append(r.FoldAccuracy, f.Accuracy)
		}
	}
	return r
}

func summarizeData(raw []domain.RawDeposit, deposits []domain.NormalizedDeposit) DataSummary {
	s := DataSummary{Deposits: len(deposits)}

	sources := make(map[string]struct{})
	for _, d := range raw {
		sources[d.Source] = struct{}{}
	}
	s.Sources = len(sources)

	assets := make(map[string]struct{})
	for i, d := range deposits {
		assets[d.AssetSymbol] = struct{}{}
		s.TotalUSD += d.AmountUSD
		if i == 0 || d.Timestamp.Before(s.DateRangeStart) {
			s.DateRangeStart = d.Timestamp
		}
		if i == 0 || d.Timestamp.After(s.DateRangeEnd) {
			s.DateRangeEnd = d.Timestamp
		}
	}
	s.Assets = len(assets)
	return s
}
