// Package fingerprint computes the identity of a run configuration.
//
// Two configurations that would produce the same trace share a fingerprint.
// The ledger stores it with each run so outputs of different configurations
// are never mixed in one destination.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRunConfig = "datasetgen/run-config/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Of returns the fingerprint of a run configuration given as a JSON-like
// value (maps, slices, strings, numbers, bools).
func Of(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainRunConfig, data), nil
}

// Short returns the first 12 hex digits of a fingerprint for display.
func Short(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
