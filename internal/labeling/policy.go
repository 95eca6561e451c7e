// Package labeling derives weak supervision labels from wallet features.
//
// Labels are heuristics standing in for missing ground truth: a model
// trained on them learns to reproduce the rule, not true creditworthiness.
package labeling

import (
	"errors"
	"fmt"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// ErrUnknownPolicy is returned when a policy name is not registered.
var ErrUnknownPolicy = errors.New("unknown label policy")

// Policy maps a wallet's features to a weak label.
// Implementations must be pure and deterministic.
type Policy interface {
	Name() string
	Version() string
	Label(v *domain.WalletFeatureVector) domain.Label
}

// Tag returns "name/version" for reports and run records.
func Tag(p Policy) string {
	return p.Name() + "/" + p.Version()
}

// Apply labels every vector with p, preserving order.
func Apply(p Policy, vectors []*domain.WalletFeatureVector) []*domain.LabeledWallet {
	tag := Tag(p)
	out := make([]*domain.LabeledWallet, len(vectors))
	for i, v := range vectors {
		out[i] = &domain.LabeledWallet{
			Features:      v,
			Label:         p.Label(v),
			PolicyVersion: tag,
		}
	}
	return out
}

// Counts returns the number of risky and reliable labels.
func Counts(wallets []*domain.LabeledWallet) (risky, reliable int) {
	for _, w := range wallets {
		if w.Label == domain.LabelReliable {
			reliable++
		} else {
			risky++
		}
	}
	return risky, reliable
}

// Params configures a policy built from the registry.
type Params struct {
	MinTxCount  int     // label requires tx_count > MinTxCount
	MinTotalUSD float64 // label requires total_usd > MinTotalUSD
}

var registry = map[string]func(Params) Policy{
	EngagementRuleName: func(p Params) Policy { return NewEngagementRule(p.MinTxCount, p.MinTotalUSD) },
}

// New builds a registered policy by name.
func New(name string, params Params) (Policy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPolicy)
	}
	return build(params), nil
}

// Names lists registered policy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
