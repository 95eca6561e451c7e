package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"wallet-risk-lab/internal/domain"
)

// WriteScoresCSV writes account_id,credit_score rows in rank order.
func WriteScoresCSV(w io.Writer, scores []*domain.CreditScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"account_id", "credit_score"}); err != nil {
		return err
	}
	for _, s := range scores {
		if err := cw.Write([]string{s.AccountID, formatFloat(s.Score, 2)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeaturesCSV writes every wallet's features, heuristic label and
// score, in account_id order.
func WriteFeaturesCSV(w io.Writer, labeled []*domain.LabeledWallet, scores []*domain.CreditScore) error {
	byAccount := make(map[string]*domain.CreditScore, len(scores))
	for _, s := range scores {
		byAccount[s.AccountID] = s
	}

	header := append([]string{"account_id"}, domain.FeatureNames...)
	header = append(header, "label", "credit_score", "rank")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, lw := range labeled {
		v := lw.Features
		row := []string{v.AccountID}
		for _, x := range v.Row() {
			row = append(row, formatFloat(x, -1))
		}
		row = append(row, strconv.Itoa(int(lw.Label)))
		if s, ok := byAccount[v.AccountID]; ok {
			row = append(row, formatFloat(s.Score, 2), strconv.Itoa(s.Rank))
		} else {
			row = append(row, "", "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
