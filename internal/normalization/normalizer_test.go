package normalization

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wallet-risk-lab/internal/domain"
)

func raw(text string) domain.RawDeposit {
	return domain.RawDeposit{Raw: text, Source: "chunk_0.json", Index: 7}
}

func TestNormalizeOne_Basic(t *testing.T) {
	d, err := NormalizeOne(raw(`{
		"id": "dep-1",
		"hash": "0xabc",
		"amountUSD": "1234.5678",
		"timestamp": 1600000000,
		"account": {"id": "0xWallet"},
		"asset": {"symbol": "USDC", "name": "USD Coin"}
	}`))
	if err != nil {
		t.Fatalf("NormalizeOne failed: %v", err)
	}

	if d.AmountUSD != 1234.5678 {
		t.Errorf("Expected amount 1234.5678, got %v", d.AmountUSD)
	}
	if !d.Timestamp.Equal(time.Unix(1600000000, 0)) {
		t.Errorf("Expected timestamp 1600000000, got %v", d.Timestamp.Unix())
	}
	if d.Timestamp.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp, got %v", d.Timestamp.Location())
	}
	if d.AccountID != "0xWallet" {
		t.Errorf("Expected account 0xWallet, got %q", d.AccountID)
	}
	if d.AssetSymbol != "USDC" {
		t.Errorf("Expected asset USDC, got %q", d.AssetSymbol)
	}
	if d.ID != "dep-1" || d.Hash != "0xabc" {
		t.Errorf("Expected id/hash dep-1/0xabc, got %q/%q", d.ID, d.Hash)
	}
}

func TestNormalizeOne_NumericForms(t *testing.T) {
	// amountUSD as a JSON number, timestamp as a string
	d, err := NormalizeOne(raw(`{"amountUSD": 5, "timestamp": "86400", "account": {"id": "0xA"}, "asset": {"symbol": "DAI"}}`))
	if err != nil {
		t.Fatalf("NormalizeOne failed: %v", err)
	}
	if d.AmountUSD != 5 {
		t.Errorf("Expected amount 5, got %v", d.AmountUSD)
	}
	if d.Timestamp.Unix() != 86400 {
		t.Errorf("Expected timestamp 86400, got %d", d.Timestamp.Unix())
	}
}

func TestNormalizeOne_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  string
		want error
	}{
		{"non-numeric amount", `{"amountUSD": "abc", "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedAmount},
		{"negative amount", `{"amountUSD": "-1", "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedAmount},
		{"amount beyond float64", `{"amountUSD": "1e400", "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedAmount},
		{"numeric amount beyond float64", `{"amountUSD": 1e400, "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedAmount},
		{"boolean amount", `{"amountUSD": true, "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedAmount},
		{"missing amount", `{"timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMissingField},
		{"fractional timestamp", `{"amountUSD": "1", "timestamp": 1.5, "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMalformedTimestamp},
		{"missing timestamp", `{"amountUSD": "1", "account": {"id": "a"}, "asset": {"symbol": "s"}}`, domain.ErrMissingField},
		{"missing account", `{"amountUSD": "1", "timestamp": 1, "asset": {"symbol": "s"}}`, domain.ErrMissingField},
		{"account without id", `{"amountUSD": "1", "timestamp": 1, "account": {}, "asset": {"symbol": "s"}}`, domain.ErrMissingField},
		{"empty account id", `{"amountUSD": "1", "timestamp": 1, "account": {"id": ""}, "asset": {"symbol": "s"}}`, domain.ErrMissingField},
		{"missing asset symbol", `{"amountUSD": "1", "timestamp": 1, "account": {"id": "a"}, "asset": {}}`, domain.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeOne(raw(tt.rec))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "chunk_0.json: deposit 7") {
				t.Errorf("Error should locate the record, got %q", err.Error())
			}
		})
	}
}

func TestNormalize_FailFast(t *testing.T) {
	deposits := []domain.RawDeposit{
		raw(`{"amountUSD": "1", "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`),
		raw(`{"amountUSD": "oops", "timestamp": 1, "account": {"id": "a"}, "asset": {"symbol": "s"}}`),
		raw(`{"amountUSD": "2", "timestamp": 1, "account": {"id": "b"}, "asset": {"symbol": "s"}}`),
	}

	out, err := Normalize(deposits)
	if !errors.Is(err, domain.ErrMalformedAmount) {
		t.Fatalf("Expected ErrMalformedAmount, got %v", err)
	}
	if out != nil {
		t.Errorf("Expected no partial output, got %d records", len(out))
	}
}

func TestNormalize_PreservesOrder(t *testing.T) {
	deposits := []domain.RawDeposit{
		raw(`{"amountUSD": "1", "timestamp": 30, "account": {"id": "c"}, "asset": {"symbol": "s"}}`),
		raw(`{"amountUSD": "2", "timestamp": 10, "account": {"id": "a"}, "asset": {"symbol": "s"}}`),
		raw(`{"amountUSD": "3", "timestamp": 20, "account": {"id": "b"}, "asset": {"symbol": "s"}}`),
	}

	out, err := Normalize(deposits)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, d := range out {
		if d.AccountID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], d.AccountID)
		}
	}
}
