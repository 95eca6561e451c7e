package normalization

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"wallet-risk-lab/internal/domain"
)

// Raw record field paths.
const (
	pathAmountUSD   = "amountUSD"
	pathTimestamp   = "timestamp"
	pathAccountID   = "account.id"
	pathAssetSymbol = "asset.symbol"
	pathID          = "id"
	pathHash        = "hash"
)

// Normalize converts raw deposits into typed records, preserving order.
// The first malformed record aborts the batch; no rows are skipped.
func Normalize(raw []domain.RawDeposit) ([]domain.NormalizedDeposit, error) {
	out := make([]domain.NormalizedDeposit, len(raw))
	for i := range raw {
		d, err := NormalizeOne(raw[i])
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// NormalizeOne converts a single raw deposit.
// Errors name the source file and record index.
func NormalizeOne(r domain.RawDeposit) (domain.NormalizedDeposit, error) {
	rec := gjson.Parse(r.Raw)

	amount, err := parseAmount(rec.Get(pathAmountUSD))
	if err != nil {
		return domain.NormalizedDeposit{}, recordError(r, err)
	}

	ts, err := parseTimestamp(rec.Get(pathTimestamp))
	if err != nil {
		return domain.NormalizedDeposit{}, recordError(r, err)
	}

	accountID, err := requireString(rec, pathAccountID)
	if err != nil {
		return domain.NormalizedDeposit{}, recordError(r, err)
	}

	assetSymbol, err := requireString(rec, pathAssetSymbol)
	if err != nil {
		return domain.NormalizedDeposit{}, recordError(r, err)
	}

	return domain.NormalizedDeposit{
		ID:          rec.Get(pathID).String(),
		Hash:        rec.Get(pathHash).String(),
		AccountID:   accountID,
		AssetSymbol: assetSymbol,
		AmountUSD:   amount,
		Timestamp:   ts,
	}, nil
}

func recordError(r domain.RawDeposit, err error) error {
	return fmt.Errorf("%s: deposit %d: %w", r.Source, r.Index, err)
}

// parseAmount accepts a decimal string or a JSON number.
// Negative values are rejected: monetary features must stay non-negative.
func parseAmount(v gjson.Result) (float64, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return 0, fmt.Errorf("%s: %w", pathAmountUSD, domain.ErrMissingField)
	}

	var text string
	switch v.Type {
	case gjson.String:
		text = strings.TrimSpace(v.Str)
	case gjson.Number:
		text = v.Raw
	default:
		return 0, fmt.Errorf("%s %s: %w", pathAmountUSD, v.Raw, domain.ErrMalformedAmount)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", pathAmountUSD, text, domain.ErrMalformedAmount)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%s %q is negative: %w", pathAmountUSD, text, domain.ErrMalformedAmount)
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s %q exceeds float64 range: %w", pathAmountUSD, text, domain.ErrMalformedAmount)
	}
	return f, nil
}

// parseTimestamp accepts integer epoch seconds as a number or a string.
func parseTimestamp(v gjson.Result) (time.Time, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return time.Time{}, fmt.Errorf("%s: %w", pathTimestamp, domain.ErrMissingField)
	}

	var text string
	switch v.Type {
	case gjson.String:
		text = strings.TrimSpace(v.Str)
	case gjson.Number:
		text = v.Raw
	default:
		return time.Time{}, fmt.Errorf("%s %s: %w", pathTimestamp, v.Raw, domain.ErrMalformedTimestamp)
	}

	secs, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: %w", pathTimestamp, text, domain.ErrMalformedTimestamp)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// requireString extracts a nested identifier; absent or empty values fail.
func requireString(rec gjson.Result, path string) (string, error) {
	v := rec.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return "", fmt.Errorf("%s: %w", path, domain.ErrMissingField)
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "", fmt.Errorf("%s is empty: %w", path, domain.ErrMissingField)
	}
	return s, nil
}
