package gbdt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// minHessian keeps leaf weights finite when probabilities saturate.
const minHessian = 1e-16

// Train fits a model on x (rows × features) and binary labels y.
func Train(ctx context.Context, x [][]float64, y []int, featureNames []string, params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d rows, %d labels: %w", len(x), len(y), ErrDimensionMismatch)
	}
	numFeatures := len(x[0])
	for i, row := range x {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), numFeatures, ErrDimensionMismatch)
		}
	}
	if featureNames != nil && len(featureNames) != numFeatures {
		return nil, fmt.Errorf("%d feature names for %d features: %w", len(featureNames), numFeatures, ErrDimensionMismatch)
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("row %d label %d: %w", i, label, ErrInvalidLabel)
		}
	}

	model := &Model{
		Params:       params,
		FeatureNames: append([]string(nil), featureNames...),
		NumFeatures:  numFeatures,
		BaseMargin:   logit(params.BaseScore),
	}

	b := newBuilder(x, y, params)
	margins := make([]float64, len(x))
	for i := range margins {
		margins[i] = model.BaseMargin
	}

	for round := 0; round < params.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b.computeGradients(margins)
		tree := b.buildTree()
		model.Trees = append(model.Trees, tree)

		for i, row := range x {
			margins[i] += tree.Predict(row)
		}
	}

	return model, nil
}

// builder holds per-training state shared across rounds.
type builder struct {
	x         [][]float64
	y         []int
	params    Params
	rng       *rand.Rand
	presorted [][]int // per feature, all row indices sorted by value
	grad      []float64
	hess      []float64
	goesLeft  []bool // scratch for partitioning
}

func newBuilder(x [][]float64, y []int, params Params) *builder {
	n, f := len(x), len(x[0])
	b := &builder{
		x:         x,
		y:         y,
		params:    params,
		rng:       rand.New(rand.NewSource(params.Seed)),
		presorted: make([][]int, f),
		grad:      make([]float64, n),
		hess:      make([]float64, n),
		goesLeft:  make([]bool, n),
	}
	for j := 0; j < f; j++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, c int) bool {
			return x[idx[a]][j] < x[idx[c]][j]
		})
		b.presorted[j] = idx
	}
	return b
}

// computeGradients fills first and second derivatives of log-loss
// with respect to the margin.
func (b *builder) computeGradients(margins []float64) {
	for i, m := range margins {
		p := sigmoid(m)
		b.grad[i] = p - float64(b.y[i])
		b.hess[i] = math.Max(p*(1-p), minHessian)
	}
}

// sampleRows returns the in-bag mask for one tree.
func (b *builder) sampleRows() []bool {
	n := len(b.x)
	inBag := make([]bool, n)
	if b.params.Subsample >= 1 {
		for i := range inBag {
			inBag[i] = true
		}
		return inBag
	}
	k := max(1, int(math.Round(b.params.Subsample*float64(n))))
	for _, i := range b.rng.Perm(n)[:k] {
		inBag[i] = true
	}
	return inBag
}

// sampleFeatures returns the sorted feature subset for one tree.
func (b *builder) sampleFeatures() []int {
	f := len(b.presorted)
	if b.params.ColsampleByTree >= 1 {
		all := make([]int, f)
		for j := range all {
			all[j] = j
		}
		return all
	}
	k := max(1, int(math.Round(b.params.ColsampleByTree*float64(f))))
	cols := b.rng.Perm(f)[:k]
	sort.Ints(cols)
	return cols
}

// nodeRows holds, per sampled feature, the node's rows sorted by that feature.
type nodeRows [][]int

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) buildTree() Tree {
	inBag := b.sampleRows()
	features := b.sampleFeatures()

	root := make(nodeRows, len(features))
	for k, j := range features {
		rows := make([]int, 0, len(b.presorted[j]))
		for _, i := range b.presorted[j] {
			if inBag[i] {
				rows = append(rows, i)
			}
		}
		root[k] = rows
	}

	t := Tree{}
	b.grow(&t, root, features, 0)
	return t
}

// grow appends the node for rows and its subtree; returns its index.
func (b *builder) grow(t *Tree, rows nodeRows, features []int, depth int) int {
	g, h := b.sums(rows[0])
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature: -1,
		Value:   b.leafWeight(g, h),
		Cover:   h,
	})

	if depth >= b.params.MaxDepth || len(rows[0]) < 2 {
		return idx
	}

	best, ok := b.findSplit(rows, features, g, h)
	if !ok {
		return idx
	}

	left, right := b.partition(rows, best)
	l := b.grow(t, left, features, depth+1)
	r := b.grow(t, right, features, depth+1)

	n := &t.Nodes[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Gain = best.gain
	n.Left = l
	n.Right = r
	return idx
}

func (b *builder) sums(rows []int) (g, h float64) {
	for _, i := range rows {
		g += b.grad[i]
		h += b.hess[i]
	}
	return g, h
}

func (b *builder) leafWeight(g, h float64) float64 {
	return -g / (h + b.params.Lambda) * b.params.LearningRate
}

func (b *builder) score(g, h float64) float64 {
	return g * g / (h + b.params.Lambda)
}

// findSplit scans every sampled feature for the split with the largest
// positive gain. Ties keep the earliest feature and threshold.
func (b *builder) findSplit(rows nodeRows, features []int, g, h float64) (split, bool) {
	parent := b.score(g, h)
	best := split{gain: 0}
	found := false

	for k, j := range features {
		sorted := rows[k]
		var gl, hl float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			gl += b.grad[i]
			hl += b.hess[i]

			v, next := b.x[i][j], b.x[sorted[pos+1]][j]
			if v == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}

			gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.params.Gamma
			if gain > best.gain {
				best = split{feature: j, threshold: midpoint(v, next), gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// partition splits every feature's sorted rows, keeping sort order.
func (b *builder) partition(rows nodeRows, s split) (left, right nodeRows) {
	for _, i := range rows[0] {
		b.goesLeft[i] = b.x[i][s.feature] < s.threshold
	}

	left = make(nodeRows, len(rows))
	right = make(nodeRows, len(rows))
	for k, sorted := range rows {
		l := make([]int, 0, len(sorted))
		r := make([]int, 0, len(sorted))
		for _, i := range sorted {
			if b.goesLeft[i] {
				l = append(l, i)
			} else {
				r = append(r, i)
			}
		}
		left[k], right[k] = l, r
	}
	return left, right
}

// midpoint returns a threshold t with lo < t <= hi.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t <= lo {
		return hi
	}
	return t
}

func sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
