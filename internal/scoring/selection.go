// Package scoring turns model probabilities into ranked 0-100 credit
// scores and selects which trained model is deployed.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/gbdt"
	"wallet-risk-lab/internal/validation"
)

// ErrUnknownSelection is returned for an unrecognized selection strategy.
var ErrUnknownSelection = errors.New("unknown model selection strategy")

// Classifier predicts P(label = 1) per row.
type Classifier interface {
	PredictProba(x [][]float64) []float64
}

var (
	_ Classifier = (*gbdt.Model)(nil)
	_ Classifier = (*SelectedModel)(nil)
)

// SelectedModel is the model deployed for scoring. Refit and last_fold
// hold one model; ensemble holds every fold model and averages their
// probabilities.
type SelectedModel struct {
	Selection string        `json:"selection"`
	Policy    string        `json:"label_policy"`
	Models    []*gbdt.Model `json:"models"`
}

// PredictProba averages member probabilities.
func (s *SelectedModel) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for _, m := range s.Models {
		for i, p := range m.PredictProba(x) {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(s.Models))
	}
	return out
}

// FeatureImportance averages member importances.
func (s *SelectedModel) FeatureImportance() []float64 {
	var out []float64
	for _, m := range s.Models {
		imp := m.FeatureImportance()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j, v := range imp {
			out[j] += v / float64(len(s.Models))
		}
	}
	return out
}

// FeatureNames returns the first member's feature names.
func (s *SelectedModel) FeatureNames() []string {
	if len(s.Models) == 0 {
		return nil
	}
	return s.Models[0].FeatureNames
}

// Save writes the selected model as indented JSON.
func (s *SelectedModel) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode selected model: %w", err)
	}
	return nil
}

// LoadSelected reads a model written by SelectedModel.Save.
func LoadSelected(r io.Reader) (*SelectedModel, error) {
	var s SelectedModel
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode selected model: %w", err)
	}
	if len(s.Models) == 0 {
		return nil, fmt.Errorf("decode selected model: no models")
	}
	return &s, nil
}

// Selector picks the deployed model after cross validation.
type Selector struct {
	Strategy     string
	Params       gbdt.Params
	FeatureNames []string
	Policy       string
}

// Select applies the strategy. Refit trains once more on every row.
func (s Selector) Select(ctx context.Context, cv *validation.CVResult, x [][]float64, y []int) (*SelectedModel, error) {
	out := &SelectedModel{Selection: s.Strategy, Policy: s.Policy}

	switch s.Strategy {
	case domain.SelectionRefit:
		model, err := gbdt.Train(ctx, x, y, s.FeatureNames, s.Params)
		if err != nil {
			return nil, fmt.Errorf("refit on all wallets: %w", err)
		}
		out.Models = []*gbdt.Model{model}
	case domain.SelectionEnsemble:
		if cv == nil || len(cv.Folds) == 0 {
			return nil, fmt.Errorf("ensemble: no fold models")
		}
		out.Models = cv.Models()
	case domain.SelectionLastFold:
		if cv == nil || len(cv.Folds) == 0 {
			return nil, fmt.Errorf("last_fold: no fold models")
		}
		out.Models = []*gbdt.Model{cv.Folds[len(cv.Folds)-1].Model}
	default:
		return nil, fmt.Errorf("%q: %w", s.Strategy, ErrUnknownSelection)
	}
	return out, nil
}

// Strategies lists the supported selection strategies.
func Strategies() []string {
	return []string{domain.SelectionRefit, domain.SelectionEnsemble, domain.SelectionLastFold}
}
