package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wallet-risk-lab/internal/gbdt"
)

// FoldResult is one fold's held-out predictions.
type FoldResult struct {
	Fold     int
	Indices  []int // held-out rows, ascending
	Model    *gbdt.Model
	Proba    []float64
	Pred     []int
	Accuracy float64
}

// CVResult holds out-of-fold predictions assembled fold by fold.
type CVResult struct {
	Folds []FoldResult

	// Out-of-fold arrays: fold 0's rows first, then fold 1's, and so on.
	Indices []int
	True    []int
	Pred    []int
	Proba   []float64
}

// Models returns the per-fold models in fold order.
func (r *CVResult) Models() []*gbdt.Model {
	out := make([]*gbdt.Model, len(r.Folds))
	for i := range r.Folds {
		out[i] = r.Folds[i].Model
	}
	return out
}

// CrossValidator trains one model per fold.
type CrossValidator struct {
	params       gbdt.Params
	featureNames []string
	parallelism  int
	logger       logrus.FieldLogger
}

// NewCrossValidator creates a validator. parallelism < 1 means 1.
func NewCrossValidator(params gbdt.Params, featureNames []string, parallelism int, logger logrus.FieldLogger) *CrossValidator {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CrossValidator{
		params:       params,
		featureNames: featureNames,
		parallelism:  parallelism,
		logger:       logger,
	}
}

// Run trains on every fold's complement and predicts the held-out rows.
// Any fold failure aborts the whole run. Results do not depend on
// parallelism.
func (cv *CrossValidator) Run(ctx context.Context, x [][]float64, y []int, folds [][]int) (*CVResult, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d rows, %d labels: %w", len(x), len(y), gbdt.ErrDimensionMismatch)
	}

	results := make([]FoldResult, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cv.parallelism)

	for k := range folds {
		k := k
		g.Go(func() error {
			res, err := cv.runFold(gctx, x, y, folds, k)
			if err != nil {
				return fmt.Errorf("fold %d: %w", k, err)
			}
			results[k] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CVResult{Folds: results}
	for _, r := range results {
		out.Indices = append(out.Indices, r.Indices...)
		out.Pred = append(out.Pred, r.Pred...)
		out.Proba = append(out.Proba, r.Proba...)
		for _, i := range r.Indices {
			out.True = append(out.True, y[i])
		}
	}
	return out, nil
}

func (cv *CrossValidator) runFold(ctx context.Context, x [][]float64, y []int, folds [][]int, k int) (FoldResult, error) {
	trainIdx := TrainIndices(folds, k)
	testIdx := folds[k]

	model, err := gbdt.Train(ctx, subsetRows(x, trainIdx), subsetLabels(y, trainIdx), cv.featureNames, cv.params)
	if err != nil {
		return FoldResult{}, err
	}

	testX := subsetRows(x, testIdx)
	proba := model.PredictProba(testX)
	pred := gbdt.HardLabels(proba)
	acc := Accuracy(subsetLabels(y, testIdx), pred)

	cv.logger.WithFields(logrus.Fields{
		"fold":     k + 1,
		"train":    len(trainIdx),
		"held_out": len(testIdx),
		"accuracy": acc,
	}).Info("Fold complete")

	return FoldResult{
		Fold:     k,
		Indices:  append([]int(nil), testIdx...),
		Model:    model,
		Proba:    proba,
		Pred:     pred,
		Accuracy: acc,
	}, nil
}

func subsetRows(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func subsetLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
