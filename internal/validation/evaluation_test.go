package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	y := []int{0, 0, 1, 1}
	proba := []float64{0.1, 0.4, 0.35, 0.8}
	pred := []int{0, 0, 0, 1}

	ev := Evaluate(y, pred, proba)

	assert.Equal(t, 0.75, ev.Accuracy)
	assert.Equal(t, ConfusionMatrix{TN: 2, FP: 0, FN: 1, TP: 1}, ev.Confusion)

	assert.InDelta(t, 2.0/3, ev.Classes[0].Precision, 1e-9)
	assert.InDelta(t, 1.0, ev.Classes[0].Recall, 1e-9)
	assert.InDelta(t, 0.8, ev.Classes[0].F1, 1e-9)
	assert.Equal(t, 2, ev.Classes[0].Support)

	assert.InDelta(t, 1.0, ev.Classes[1].Precision, 1e-9)
	assert.InDelta(t, 0.5, ev.Classes[1].Recall, 1e-9)
	assert.InDelta(t, 2.0/3, ev.Classes[1].F1, 1e-9)

	assert.InDelta(t, (0.8+2.0/3)/2, ev.MacroAvg.F1, 1e-9)
	assert.Equal(t, 4, ev.WeightedAvg.Support)

	assert.InDelta(t, 0.75, ev.ROCAUC, 1e-9)
	assert.InDelta(t, 0.5+0.5*2.0/3, ev.AveragePrecision, 1e-9)
}

func TestROCAUC_Perfect(t *testing.T) {
	assert.InDelta(t, 1.0, ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}), 1e-9)
	assert.InDelta(t, 0.0, ROCAUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}), 1e-9)
}

func TestROCAUC_Ties(t *testing.T) {
	assert.InDelta(t, 0.5, ROCAUC([]int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}), 1e-9)
}

func TestROCAUC_SingleClass(t *testing.T) {
	assert.True(t, math.IsNaN(ROCAUC([]int{1, 1}, []float64{0.2, 0.9})))
}

func TestPRCurve(t *testing.T) {
	c := PRCurve([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})

	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, c.Threshold)
	assert.Equal(t, []float64{0.5, 0.5, 1, 1}, c.X)
	assert.InDeltaSlice(t, []float64{1, 0.5, 2.0 / 3, 0.5}, c.Y, 1e-9)

	assert.Empty(t, PRCurve([]int{0, 0}, []float64{0.1, 0.2}).X)
}

func TestConfusionMatrix_Percent(t *testing.T) {
	cm := ConfusionMatrix{TN: 6, FP: 1, FN: 1, TP: 2}
	assert.Equal(t, 10, cm.Total())
	assert.InDelta(t, 60.0, cm.Percent(cm.TN), 1e-9)
	assert.Equal(t, 0.0, ConfusionMatrix{}.Percent(0))
}
