package labeling

import "wallet-risk-lab/internal/domain"

// Engagement rule identity and default thresholds.
const (
	EngagementRuleName    = "engagement-rule"
	EngagementRuleVersion = "v1"

	DefaultMinTxCount  = 3
	DefaultMinTotalUSD = 10.0
)

// EngagementRule labels a wallet reliable when it is both active and
// non-trivial: tx_count > MinTxCount and total_usd > MinTotalUSD.
// Both comparisons are strict.
type EngagementRule struct {
	minTxCount  int
	minTotalUSD float64
}

// NewEngagementRule creates the rule with the given thresholds.
func NewEngagementRule(minTxCount int, minTotalUSD float64) *EngagementRule {
	return &EngagementRule{minTxCount: minTxCount, minTotalUSD: minTotalUSD}
}

// DefaultEngagementRule uses tx_count > 3 and total_usd > 10.
func DefaultEngagementRule() *EngagementRule {
	return NewEngagementRule(DefaultMinTxCount, DefaultMinTotalUSD)
}

func (r *EngagementRule) Name() string    { return EngagementRuleName }
func (r *EngagementRule) Version() string { return EngagementRuleVersion }

// Label applies the rule.
func (r *EngagementRule) Label(v *domain.WalletFeatureVector) domain.Label {
	if v.TxCount > r.minTxCount && v.TotalUSD > r.minTotalUSD {
		return domain.LabelReliable
	}
	return domain.LabelRisky
}

var _ Policy = (*EngagementRule)(nil)
