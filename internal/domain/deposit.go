package domain

import "time"

// RawDeposit is one deposit event as it appears in an input document.
// Raw holds the JSON object; Source and Index locate it for error messages.
type RawDeposit struct {
	Raw    string // JSON object text
	Source string // input file path
	Index  int    // position within the source's deposits array
}

// NormalizedDeposit is a RawDeposit with typed, flattened fields.
// One-to-one with RawDeposit.
type NormalizedDeposit struct {
	ID          string    // deposit id, empty if absent
	Hash        string    // transaction hash, empty if absent
	AccountID   string    // account.id
	AssetSymbol string    // asset.symbol
	AmountUSD   float64   // amountUSD
	Timestamp   time.Time // block time, UTC
}
