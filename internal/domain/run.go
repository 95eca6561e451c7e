package domain

import "time"

// Model selection strategies for the deployed scorer.
const (
	SelectionRefit    = "refit"     // retrain on all wallets after cross validation
	SelectionEnsemble = "ensemble"  // average probabilities of all fold models
	SelectionLastFold = "last_fold" // keep the final fold's model
)

// RunRecord describes one scoring run.
type RunRecord struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	DataVersion      string // fingerprint of the input deposits
	PolicyVersion    string
	Selection        string
	Folds            int
	Seed             int64
	DepositCount     int
	WalletCount      int
	ReliableCount    int
	OOFAccuracy      float64
	OOFROCAUC        float64
	GeneratorVersion string
}
