// Package validation implements stratified k-fold cross validation and
// binary classification metrics.
package validation

import (
	"fmt"
	"math/rand"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// StratifiedKFold splits rows into K folds that each keep the global
// class ratio.
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    int64
}

// NewStratifiedKFold returns a shuffled splitter with the given k and seed.
func NewStratifiedKFold(k int, seed int64) StratifiedKFold {
	return StratifiedKFold{K: k, Shuffle: true, Seed: seed}
}

// Split returns K folds of held-out row indices, ascending within each
// fold. Every row appears in exactly one fold.
//
// Each class's indices are shuffled (when Shuffle is set) and dealt
// round-robin, continuing the deal where the previous class stopped so
// fold sizes differ by at most one.
func (s StratifiedKFold) Split(y []int) ([][]int, error) {
	if s.K < 2 {
		return nil, fmt.Errorf("k=%d: need at least 2 folds", s.K)
	}

	byClass := map[int][]int{0: nil, 1: nil}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if n := len(byClass[c]); n < s.K {
			return nil, fmt.Errorf("class %d has %d members, k=%d: %w", c, n, s.K, domain.ErrInsufficientClassSamples)
		}
	}

	rng := rand.New(rand.NewSource(s.Seed))
	folds := make([][]int, s.K)
	next := 0
	for _, c := range classes {
		idx := byClass[c]
		if s.Shuffle {
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		for _, row := range idx {
			folds[next] = append(folds[next], row)
			next = (next + 1) % s.K
		}
	}

	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// TrainIndices returns every row index not in folds[k], ascending.
func TrainIndices(folds [][]int, k int) []int {
	var out []int
	for i, f := range folds {
		if i != k {
			out = append(out, f...)
		}
	}
	sort.Ints(out)
	return out
}
