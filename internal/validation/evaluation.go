package validation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ConfusionMatrix counts binary outcomes with label 1 as positive.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Total returns the number of observations.
func (c ConfusionMatrix) Total() int {
	return c.TN + c.FP + c.FN + c.TP
}

// Percent returns n as a percentage of the total, 0 when empty.
func (c ConfusionMatrix) Percent(n int) float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(n) / float64(c.Total()) * 100
}

// ClassMetrics is one row of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Curve is a sequence of (X, Y) points with the threshold producing each.
type Curve struct {
	X         []float64 `json:"x"`
	Y         []float64 `json:"y"`
	Threshold []float64 `json:"threshold"`
}

// Evaluation summarizes out-of-fold predictions.
type Evaluation struct {
	Accuracy         float64         `json:"accuracy"`
	Classes          [2]ClassMetrics `json:"classes"` // indexed by label
	MacroAvg         ClassMetrics    `json:"macro_avg"`
	WeightedAvg      ClassMetrics    `json:"weighted_avg"`
	Confusion        ConfusionMatrix `json:"confusion"`
	ROCAUC           float64         `json:"roc_auc"` // NaN when only one class is present
	AveragePrecision float64         `json:"average_precision"`
	ROC              Curve           `json:"-"` // X = FPR, Y = TPR
	PR               Curve           `json:"-"` // X = recall, Y = precision
}

// Evaluate computes every metric from true labels, hard predictions and
// positive-class probabilities. All slices share one ordering.
func Evaluate(yTrue, pred []int, proba []float64) Evaluation {
	cm := Confusion(yTrue, pred)
	ev := Evaluation{
		Accuracy:  Accuracy(yTrue, pred),
		Confusion: cm,
	}

	ev.Classes[0] = classMetrics(cm.TN, cm.FN, cm.FP, cm.TN+cm.FP)
	ev.Classes[1] = classMetrics(cm.TP, cm.FP, cm.FN, cm.TP+cm.FN)

	total := cm.Total()
	for _, c := range ev.Classes {
		ev.MacroAvg.Precision += c.Precision / 2
		ev.MacroAvg.Recall += c.Recall / 2
		ev.MacroAvg.F1 += c.F1 / 2
		if total > 0 {
			w := float64(c.Support) / float64(total)
			ev.WeightedAvg.Precision += c.Precision * w
			ev.WeightedAvg.Recall += c.Recall * w
			ev.WeightedAvg.F1 += c.F1 * w
		}
	}
	ev.MacroAvg.Support = total
	ev.WeightedAvg.Support = total

	ev.ROC = ROCCurve(yTrue, proba)
	ev.ROCAUC = ROCAUC(yTrue, proba)
	ev.PR = PRCurve(yTrue, proba)
	ev.AveragePrecision = averagePrecision(ev.PR)
	return ev
}

// Accuracy returns the fraction of matching labels, 0 for empty input.
func Accuracy(yTrue, pred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// Confusion counts outcomes with label 1 as the positive class.
func Confusion(yTrue, pred []int) ConfusionMatrix {
	var cm ConfusionMatrix
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && pred[i] == 1:
			cm.TP++
		case yTrue[i] == 1:
			cm.FN++
		case pred[i] == 1:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm
}

// classMetrics uses zero for undefined ratios.
func classMetrics(hit, falsePos, falseNeg, support int) ClassMetrics {
	m := ClassMetrics{
		Precision: ratio(hit, hit+falsePos),
		Recall:    ratio(hit, hit+falseNeg),
		Support:   support,
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// ROCCurve returns FPR (X) against TPR (Y) for every distinct
// probability cutoff, starting at (0, 0).
func ROCCurve(yTrue []int, proba []float64) Curve {
	scores, classes := sortedScores(yTrue, proba)
	if len(scores) == 0 {
		return Curve{}
	}
	tpr, fpr, thresh := stat.ROC(nil, scores, classes, nil)
	return Curve{X: fpr, Y: tpr, Threshold: thresh}
}

func rocAUC(roc Curve) float64 {
	if len(roc.X) < 2 {
		return math.NaN()
	}
	for i := range roc.X {
		if math.IsNaN(roc.X[i]) || math.IsNaN(roc.Y[i]) {
			return math.NaN()
		}
	}
	return integrate.Trapezoidal(roc.X, roc.Y)
}

// ROCAUC returns the area under the ROC curve, NaN when either class is
// absent.
func ROCAUC(yTrue []int, proba []float64) float64 {
	cm := Confusion(yTrue, yTrue)
	if cm.TP == 0 || cm.TN == 0 {
		return math.NaN()
	}
	return rocAUC(ROCCurve(yTrue, proba))
}

func sortedScores(yTrue []int, proba []float64) ([]float64, []bool) {
	scores := append([]float64(nil), proba...)
	classes := make([]bool, len(yTrue))
	for i, label := range yTrue {
		classes[i] = label == 1
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	return scores, classes
}

// PRCurve returns recall (X) against precision (Y), one point per
// distinct probability taken as the cutoff (p >= cutoff is positive),
// ordered by increasing recall.
func PRCurve(yTrue []int, proba []float64) Curve {
	positives := 0
	for _, label := range yTrue {
		if label == 1 {
			positives++
		}
	}
	if positives == 0 {
		return Curve{}
	}

	order := make([]int, len(proba))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return proba[order[a]] > proba[order[b]] })

	var c Curve
	tp, fp := 0, 0
	for n, i := range order {
		if yTrue[i] == 1 {
			tp++
		} else {
			fp++
		}
		if n+1 < len(order) && proba[order[n+1]] == proba[i] {
			continue
		}
		c.X = append(c.X, float64(tp)/float64(positives))
		c.Y = append(c.Y, float64(tp)/float64(tp+fp))
		c.Threshold = append(c.Threshold, proba[i])
	}
	return c
}

// averagePrecision sums precision weighted by each recall increment.
func averagePrecision(pr Curve) float64 {
	ap, prev := 0.0, 0.0
	for i := range pr.X {
		ap += (pr.X[i] - prev) * pr.Y[i]
		prev = pr.X[i]
	}
	return ap
}
