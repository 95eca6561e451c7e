package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// ComputeDataVersion fingerprints a deposit set using SHA256.
// Formula: SHA256(sorted(SHA256(raw_i)) joined by "|")
// Independent of file names and record order; any change to a record's
// JSON text changes the result. Returns hex-encoded hash (64 characters).
func ComputeDataVersion(deposits []domain.RawDeposit) string {
	digests := make([]string, len(deposits))
	for i, d := range deposits {
		sum := sha256.Sum256([]byte(d.Raw))
		digests[i] = hex.EncodeToString(sum[:])
	}
	sort.Strings(digests)

	h := sha256.New()
	for i, d := range digests {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}
