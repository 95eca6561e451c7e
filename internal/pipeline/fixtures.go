package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// fixtureEpoch is 2024-01-01 00:00:00 UTC.
const fixtureEpoch int64 = 1704067200

const secondsPerDay = 86400

// FixtureFiles lists the documents written by WriteFixtures, in load order.
var FixtureFiles = []string{"deposits_0.json", "deposits_1.json", "deposits_2.json"}

type fixtureDeposit struct {
	ID        string         `json:"id"`
	Hash      string         `json:"hash"`
	AmountUSD string         `json:"amountUSD"`
	Timestamp int64          `json:"timestamp"`
	Account   fixtureAccount `json:"account"`
	Asset     fixtureAsset   `json:"asset"`
}

type fixtureAccount struct {
	ID string `json:"id"`
}

type fixtureAsset struct {
	Symbol string `json:"symbol"`
}

type fixtureDocument struct {
	Deposits []fixtureDeposit `json:"deposits"`
}

var fixtureAssets = []string{"USDC", "DAI", "WETH", "USDT"}

// WriteFixtures writes a deterministic demonstration dataset into dir
// and returns the file paths. It contains wallet "0xA" (one 5 USD deposit
// per file on the same day, labeled risky), wallet "0xB" (five 3 USD
// deposits on distinct days, labeled reliable) and synthetic wallets
// covering both labels.
func WriteFixtures(dir string) ([]string, error) {
	docs := make([]fixtureDocument, len(FixtureFiles))
	n := 0
	add := func(file int, d fixtureDeposit) {
		n++
		d.ID = fmt.Sprintf("dep_%04d", n)
		d.Hash = fmt.Sprintf("0x%064x", n)
		docs[file].Deposits = append(docs[file].Deposits, d)
	}

	for file := range FixtureFiles {
		add(file, deposit("0xA", "USDC", 5, fixtureEpoch))
	}
	for day := int64(0); day < 5; day++ {
		add(int(day)%len(FixtureFiles), deposit("0xB", "USDC", 3, fixtureEpoch+day*secondsPerDay))
	}

	for i := 0; i < 40; i++ {
		account := fmt.Sprintf("0x%040x", i+1)
		txCount := 1 + i%7
		base := 2.5 + float64(i%5)*3
		for j := 0; j < txCount; j++ {
			amount := base + float64(j)
			if i%11 == 0 {
				amount = 0.5 // frequent but tiny: stays under the total threshold
			}
			ts := fixtureEpoch + int64(i)*3600 + int64(j)*secondsPerDay*int64(1+i%3)
			add((i+j)%len(FixtureFiles), deposit(account, fixtureAssets[(i+j)%len(fixtureAssets)], amount, ts))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, len(FixtureFiles))
	for i, name := range FixtureFiles {
		data, err := json.MarshalIndent(docs[i], "", "  ")
		if err != nil {
			return nil, err
		}
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], data, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func deposit(account, asset string, amountUSD float64, ts int64) fixtureDeposit {
	return fixtureDeposit{
		AmountUSD: strconv.FormatFloat(amountUSD, 'f', 2, 64),
		Timestamp: ts,
		Account:   fixtureAccount{ID: account},
		Asset:     fixtureAsset{Symbol: asset},
	}
}
