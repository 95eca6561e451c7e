package pipeline

import (
	"fmt"
	"strings"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/labeling"
	"wallet-risk-lab/internal/reporting"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check in evaluation order.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// Failed returns the names of failing checks joined by ", ".
func (r *SufficiencyResult) Failed() string {
	var names []string
	for _, c := range r.Checks {
		if !c.Pass {
			names = append(names, fmt.Sprintf("%s %s (want %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	return strings.Join(names, ", ")
}

// Rows converts the checks for the report.
func (r *SufficiencyResult) Rows() []reporting.SufficiencyCheckRow {
	rows := make([]reporting.SufficiencyCheckRow, len(r.Checks))
	for i, c := range r.Checks {
		rows[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return rows
}

// CheckSufficiency validates that labeled wallets can be split into folds
// stratified folds: every fold needs at least one wallet of each class.
func CheckSufficiency(labeled []*domain.LabeledWallet, folds int) *SufficiencyResult {
	risky, reliable := labeling.Counts(labeled)

	result := &SufficiencyResult{AllPass: true}
	add := func(c SufficiencyCheck) {
		result.Checks = append(result.Checks, c)
		if !c.Pass {
			result.AllPass = false
		}
	}

	threshold := fmt.Sprintf(">= %d", folds)

	// Check 1: enough wallets for the fold count
	add(SufficiencyCheck{
		Name:      "Wallets",
		Threshold: threshold,
		Actual:    fmt.Sprintf("%d", len(labeled)),
		Pass:      len(labeled) >= folds,
	})

	// Check 2: risky class covers every fold
	add(SufficiencyCheck{
		Name:      fmt.Sprintf("%s wallets (label 0)", domain.LabelRisky),
		Threshold: threshold,
		Actual:    fmt.Sprintf("%d", risky),
		Pass:      risky >= folds,
	})

	// Check 3: reliable class covers every fold
	add(SufficiencyCheck{
		Name:      fmt.Sprintf("%s wallets (label 1)", domain.LabelReliable),
		Threshold: threshold,
		Actual:    fmt.Sprintf("%d", reliable),
		Pass:      reliable >= folds,
	})

	return result
}
