package reporting

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"wallet-risk-lab/internal/explain"
	"wallet-risk-lab/internal/validation"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// WriteROCPlot renders the ROC curve with the chance diagonal as PNG.
func WriteROCPlot(w io.Writer, roc validation.Curve, auc float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC curve (AUC = %s)", formatMetric(auc))
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	setUnitAxes(p)

	curve, err := plotter.NewLine(curveXYs(roc))
	if err != nil {
		return fmt.Errorf("roc line: %w", err)
	}
	curve.Color = color.RGBA{B: 200, A: 255}
	curve.Width = vg.Points(2)

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return fmt.Errorf("chance line: %w", err)
	}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(plotter.NewGrid(), chance, curve)
	return writePNG(w, p)
}

// WritePRPlot renders the precision-recall curve as PNG.
func WritePRPlot(w io.Writer, pr validation.Curve, averagePrecision float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Precision-recall curve (AP = %.4f)", averagePrecision)
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	setUnitAxes(p)

	curve, err := plotter.NewLine(curveXYs(pr))
	if err != nil {
		return fmt.Errorf("pr line: %w", err)
	}
	curve.Color = color.RGBA{G: 140, A: 255}
	curve.Width = vg.Points(2)

	p.Add(plotter.NewGrid(), curve)
	return writePNG(w, p)
}

// WriteImportancePlot renders mean absolute contribution per feature as
// a bar chart, in the order given.
func WriteImportancePlot(w io.Writer, features []explain.FeatureSummary) error {
	p := plot.New()
	p.Title.Text = "Feature importance (mean |contribution|)"
	p.Y.Label.Text = "Mean |contribution| (log-odds)"
	p.Y.Min = 0

	values := make(plotter.Values, len(features))
	names := make([]string, len(features))
	for i, f := range features {
		values[i] = f.MeanAbsContribution
		names[i] = f.Name
	}

	if len(values) > 0 {
		bars, err := plotter.NewBarChart(values, vg.Points(24))
		if err != nil {
			return fmt.Errorf("importance bars: %w", err)
		}
		bars.Color = color.RGBA{R: 220, G: 90, B: 30, A: 255}
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.NominalX(names...)
	}

	return writePNG(w, p)
}

// confusionGrid lays the matrix out with predicted class on X and actual
// class on Y.
type confusionGrid [2][2]float64

func (g confusionGrid) Dims() (c, r int)   { return 2, 2 }
func (g confusionGrid) Z(c, r int) float64 { return g[r][c] }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// WriteConfusionPlot renders the out-of-fold confusion matrix as a heat
// map annotated with counts and percent of total.
func WriteConfusionPlot(w io.Writer, cm validation.ConfusionMatrix) error {
	p := plot.New()
	p.Title.Text = "Confusion matrix (out-of-fold)"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"

	grid := confusionGrid{
		{float64(cm.TN), float64(cm.FP)},
		{float64(cm.FN), float64(cm.TP)},
	}
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	heat.Min = 0
	heat.Max = math.Max(float64(cm.Total()), 1)

	var cells plotter.XYLabels
	for r, row := range [2][2]int{{cm.TN, cm.FP}, {cm.FN, cm.TP}} {
		for c, n := range row {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c) - 0.15, Y: float64(r)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%d (%.1f%%)", n, cm.Percent(n)))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("confusion labels: %w", err)
	}

	p.Add(heat, labels)
	p.NominalX("Risky (0)", "Reliable (1)")
	p.NominalY("Risky (0)", "Reliable (1)")
	return writePNG(w, p)
}

func setUnitAxes(p *plot.Plot) {
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.02
}

// curveXYs copies finite curve points. A curve with no points becomes the
// origin so plotter.NewLine accepts it.
func curveXYs(c validation.Curve) plotter.XYs {
	xys := make(plotter.XYs, 0, len(c.X)+1)
	for i := range c.X {
		if isFinite(c.X[i]) && isFinite(c.Y[i]) {
			xys = append(xys, plotter.XY{X: c.X[i], Y: c.Y[i]})
		}
	}
	if len(xys) == 0 {
		xys = append(xys, plotter.XY{})
	}
	return xys
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}
