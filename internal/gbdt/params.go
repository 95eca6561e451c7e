// Package gbdt implements a gradient-boosted decision tree binary classifier
// trained with log-loss, using second-order gradients and exact greedy
// split search.
package gbdt

import (
	"errors"
	"fmt"
)

// Training errors.
var (
	ErrEmptyDataset      = errors.New("empty training set")
	ErrDimensionMismatch = errors.New("feature matrix and labels disagree in shape")
	ErrInvalidLabel      = errors.New("labels must be 0 or 1")
	ErrInvalidParams     = errors.New("invalid training parameters")
)

// Params controls boosting. Defaults follow common gradient boosting
// library defaults for binary:logistic.
type Params struct {
	NumRounds       int     `json:"num_rounds" yaml:"num_rounds"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	Lambda          float64 `json:"lambda" yaml:"lambda"` // L2 regularization on leaf weights
	Gamma           float64 `json:"gamma" yaml:"gamma"`   // minimum loss reduction to split
	MinChildWeight  float64 `json:"min_child_weight" yaml:"min_child_weight"`
	Subsample       float64 `json:"subsample" yaml:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	BaseScore       float64 `json:"base_score" yaml:"base_score"` // initial probability
	Seed            int64   `json:"seed" yaml:"seed"`
}

// DefaultParams returns 100 rounds of depth-6 trees with eta 0.3.
func DefaultParams() Params {
	return Params{
		NumRounds:       100,
		MaxDepth:        6,
		LearningRate:    0.3,
		Lambda:          1,
		Gamma:           0,
		MinChildWeight:  1,
		Subsample:       1,
		ColsampleByTree: 1,
		BaseScore:       0.5,
		Seed:            42,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NumRounds < 1:
		return fmt.Errorf("num_rounds %d < 1: %w", p.NumRounds, ErrInvalidParams)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth %d < 1: %w", p.MaxDepth, ErrInvalidParams)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate %v <= 0: %w", p.LearningRate, ErrInvalidParams)
	case p.Lambda < 0, p.Gamma < 0, p.MinChildWeight < 0:
		return fmt.Errorf("lambda, gamma and min_child_weight must be >= 0: %w", ErrInvalidParams)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample %v outside (0, 1]: %w", p.Subsample, ErrInvalidParams)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return fmt.Errorf("colsample_bytree %v outside (0, 1]: %w", p.ColsampleByTree, ErrInvalidParams)
	case p.BaseScore <= 0 || p.BaseScore >= 1:
		return fmt.Errorf("base_score %v outside (0, 1): %w", p.BaseScore, ErrInvalidParams)
	}
	return nil
}
