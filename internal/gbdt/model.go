package gbdt

import (
	"encoding/json"
	"fmt"
	"io"
)

// Model is a trained boosted ensemble.
type Model struct {
	Params       Params   `json:"params"`
	FeatureNames []string `json:"feature_names,omitempty"`
	NumFeatures  int      `json:"num_features"`
	BaseMargin   float64  `json:"base_margin"`
	Trees        []Tree   `json:"trees"`
}

// Margin returns the raw log-odds for row.
func (m *Model) Margin(row []float64) float64 {
	s := m.BaseMargin
	for i := range m.Trees {
		s += m.Trees[i].Predict(row)
	}
	return s
}

// Probability returns P(label = 1) for row.
func (m *Model) Probability(row []float64) float64 {
	return sigmoid(m.Margin(row))
}

// PredictProba returns P(label = 1) for every row of x.
func (m *Model) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = m.Probability(row)
	}
	return out
}

// Predict returns hard labels using a 0.5 probability cutoff.
func (m *Model) Predict(x [][]float64) []int {
	return HardLabels(m.PredictProba(x))
}

// HardLabels thresholds probabilities at 0.5.
func HardLabels(proba []float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

// FeatureImportance returns the total split gain per feature,
// normalized to sum to 1. All zeros when no tree ever split.
func (m *Model) FeatureImportance() []float64 {
	imp := make([]float64, m.NumFeatures)
	total := 0.0
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if !n.IsLeaf() {
				imp[n.Feature] += n.Gain
				total += n.Gain
			}
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// Save writes the model as indented JSON.
func (m *Model) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("decode model: no trees")
	}
	return &m, nil
}
