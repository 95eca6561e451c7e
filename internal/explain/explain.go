// Package explain attributes model margins to individual features.
//
// Attributions use the path-contribution method: walking a row's path
// through each tree, the change in node value at every split is credited
// to the split feature. For every row, Bias plus the sum of
// Contributions equals the model margin (log-odds).
package explain

import (
	"math"
	"sort"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/gbdt"
)

// Attribution is one wallet's additive explanation.
type Attribution struct {
	AccountID     string
	Bias          float64
	Contributions []float64 // one per feature column
}

// Margin returns Bias plus every contribution.
func (a Attribution) Margin() float64 {
	m := a.Bias
	for _, c := range a.Contributions {
		m += c
	}
	return m
}

// Contributions explains a single row of one model.
func Contributions(model *gbdt.Model, row []float64) (bias float64, contrib []float64) {
	contrib = make([]float64, model.NumFeatures)
	bias = model.BaseMargin
	for ti := range model.Trees {
		t := &model.Trees[ti]
		path := t.Path(row)
		bias += t.Nodes[path[0]].Value
		for i := 1; i < len(path); i++ {
			parent := &t.Nodes[path[i-1]]
			child := &t.Nodes[path[i]]
			contrib[parent.Feature] += child.Value - parent.Value
		}
	}
	return bias, contrib
}

// Explain attributes every wallet against the mean margin of models.
func Explain(models []*gbdt.Model, vectors []*domain.WalletFeatureVector) []Attribution {
	out := make([]Attribution, len(vectors))
	if len(models) == 0 {
		return out
	}
	scale := 1 / float64(len(models))

	for i, v := range vectors {
		row := v.Row()
		a := Attribution{AccountID: v.AccountID, Contributions: make([]float64, len(row))}
		for _, m := range models {
			bias, contrib := Contributions(m, row)
			a.Bias += bias * scale
			for j, c := range contrib {
				a.Contributions[j] += c * scale
			}
		}
		out[i] = a
	}
	return out
}

// FeatureSummary is one row of the global importance table.
type FeatureSummary struct {
	Name                string
	Gain                float64 // normalized total split gain
	MeanAbsContribution float64
}

// Summarize combines gain importance with mean absolute attribution,
// ordered by mean absolute attribution descending, then name.
func Summarize(names []string, gain []float64, attrs []Attribution) []FeatureSummary {
	meanAbs := MeanAbs(attrs, len(names))

	out := make([]FeatureSummary, len(names))
	for j, name := range names {
		out[j] = FeatureSummary{Name: name, MeanAbsContribution: meanAbs[j]}
		if j < len(gain) {
			out[j].Gain = gain[j]
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].MeanAbsContribution != out[b].MeanAbsContribution {
			return out[a].MeanAbsContribution > out[b].MeanAbsContribution
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// MeanAbs returns the mean absolute contribution per feature.
func MeanAbs(attrs []Attribution, numFeatures int) []float64 {
	out := make([]float64, numFeatures)
	if len(attrs) == 0 {
		return out
	}
	for _, a := range attrs {
		for j := 0; j < numFeatures && j < len(a.Contributions); j++ {
			out[j] += math.Abs(a.Contributions[j])
		}
	}
	for j := range out {
		out[j] /= float64(len(attrs))
	}
	return out
}
