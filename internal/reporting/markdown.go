package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"wallet-risk-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Wallet Credit Score Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("| Data Version | %s |\n", r.Run.DataVersion))
	sb.WriteString(fmt.Sprintf("| Label Policy | %s |\n", r.Run.PolicyVersion))
	sb.WriteString(fmt.Sprintf("| Model Selection | %s |\n", r.Run.Selection))
	sb.WriteString(fmt.Sprintf("| Folds | %d |\n", r.Run.Folds))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", r.Run.Seed))
	sb.WriteString(fmt.Sprintf("| Generator Version | %s |\n", r.Run.GeneratorVersion))
	sb.WriteString("\n")

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Input Files | %d |\n", r.DataSummary.Sources))
	sb.WriteString(fmt.Sprintf("| Deposits | %d |\n", r.DataSummary.Deposits))
	sb.WriteString(fmt.Sprintf("| Wallets | %d |\n", r.DataSummary.Wallets))
	sb.WriteString(fmt.Sprintf("| Assets | %d |\n", r.DataSummary.Assets))
	sb.WriteString(fmt.Sprintf("| Total Deposited (USD) | %.2f |\n", r.DataSummary.TotalUSD))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", formatDate(r.DataSummary.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", formatDate(r.DataSummary.DateRangeEnd)))
	sb.WriteString("\n")

	// Labels
	sb.WriteString("## Labels\n\n")
	sb.WriteString("> Labels come from a heuristic rule (" + r.Run.PolicyVersion + "), not from observed repayment\n")
	sb.WriteString("> or liquidation outcomes. The model learns to reproduce the rule; scores measure\n")
	sb.WriteString("> similarity to rule-reliable wallets, not creditworthiness.\n\n")
	sb.WriteString("| Label | Wallets | Share |\n")
	sb.WriteString("|-------|---------|-------|\n")
	sb.WriteString(fmt.Sprintf("| %s (0) | %d | %s |\n", domain.LabelRisky, r.Labels.Risky, percent(r.Labels.Risky, r.Labels.Total())))
	sb.WriteString(fmt.Sprintf("| %s (1) | %d | %s |\n", domain.LabelReliable, r.Labels.Reliable, percent(r.Labels.Reliable, r.Labels.Total())))
	sb.WriteString("\n")

	if len(r.Sufficiency) > 0 {
		sb.WriteString("### Data Sufficiency\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range r.Sufficiency {
			status := "PASS"
			if !c.Pass {
				status = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
		}
		sb.WriteString("\n")
	}

	// Evaluation
	ev := r.Evaluation
	sb.WriteString("## Cross-Validation (out-of-fold)\n\n")
	if len(r.FoldAccuracy) > 0 {
		sb.WriteString("| Fold | Accuracy |\n")
		sb.WriteString("|------|----------|\n")
		for i, acc := range r.FoldAccuracy {
			sb.WriteString(fmt.Sprintf("| %d | %.4f |\n", i+1, acc))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Classification Report\n\n")
	sb.WriteString("| Class | Precision | Recall | F1 | Support |\n")
	sb.WriteString("|-------|-----------|--------|----|---------|\n")
	for label, c := range ev.Classes {
		sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %d |\n",
			domain.Label(label), c.Precision, c.Recall, c.F1, c.Support))
	}
	sb.WriteString(fmt.Sprintf("| macro avg | %.4f | %.4f | %.4f | %d |\n",
		ev.MacroAvg.Precision, ev.MacroAvg.Recall, ev.MacroAvg.F1, ev.MacroAvg.Support))
	sb.WriteString(fmt.Sprintf("| weighted avg | %.4f | %.4f | %.4f | %d |\n",
		ev.WeightedAvg.Precision, ev.WeightedAvg.Recall, ev.WeightedAvg.F1, ev.WeightedAvg.Support))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Accuracy: %.4f | ROC AUC: %s | Average Precision: %.4f\n\n",
		ev.Accuracy, formatMetric(ev.ROCAUC), ev.AveragePrecision))

	cm := ev.Confusion
	sb.WriteString("### Confusion Matrix\n\n")
	sb.WriteString("| Actual \\ Predicted | Risky | Reliable |\n")
	sb.WriteString("|--------------------|-------|----------|\n")
	sb.WriteString(fmt.Sprintf("| Risky | %d (%.2f%%) | %d (%.2f%%) |\n", cm.TN, cm.Percent(cm.TN), cm.FP, cm.Percent(cm.FP)))
	sb.WriteString(fmt.Sprintf("| Reliable | %d (%.2f%%) | %d (%.2f%%) |\n", cm.FN, cm.Percent(cm.FN), cm.TP, cm.Percent(cm.TP)))
	sb.WriteString("\n")
	sb.WriteString("Plots: `roc_curve.png`, `pr_curve.png`, `feature_importance.png`\n\n")

	// Feature Importance
	sb.WriteString("## Feature Importance\n\n")
	if len(r.Features) > 0 {
		sb.WriteString("| Feature | Mean abs(contribution) | Gain Share |\n")
		sb.WriteString("|---------|------------------------|------------|\n")
		for _, f := range r.Features {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f |\n", f.Name, f.MeanAbsContribution, f.Gain))
		}
	} else {
		sb.WriteString("No feature importance available.\n")
	}
	sb.WriteString("\n")

	// Top Wallets
	sb.WriteString(fmt.Sprintf("## Top %d Wallets\n\n", len(r.TopWallets)))
	if len(r.TopWallets) > 0 {
		sb.WriteString("| Rank | Account | Credit Score |\n")
		sb.WriteString("|------|---------|--------------|\n")
		for _, s := range r.TopWallets {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.2f |\n", s.Rank, s.AccountID, s.Score))
		}
	} else {
		sb.WriteString("No wallets scored.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func percent(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}
