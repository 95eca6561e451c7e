package domain

// Label is the weak supervision target derived from wallet features.
// It is a heuristic, not verified ground truth.
type Label int

// Label values.
const (
	LabelRisky    Label = 0
	LabelReliable Label = 1
)

// String returns the report name of the label.
func (l Label) String() string {
	if l == LabelReliable {
		return "Reliable"
	}
	return "Risky"
}

// LabeledWallet pairs a wallet with its weak label and the policy that produced it.
type LabeledWallet struct {
	Features      *WalletFeatureVector
	Label         Label
	PolicyVersion string // e.g. "engagement-rule/v1"
}

// Labels extracts the label column as ints.
func Labels(wallets []*LabeledWallet) []int {
	y := make([]int, len(wallets))
	for i, w := range wallets {
		y[i] = int(w.Label)
	}
	return y
}
