package domain

// CreditScore is the final 0-100 reliability score for one wallet.
type CreditScore struct {
	RunID       string
	AccountID   string
	Probability float64 // model probability of LabelReliable
	Score       float64 // round(Probability*100, 2), within [0, 100]
	Rank        int     // 1-based, by Score DESC then AccountID ASC
}
