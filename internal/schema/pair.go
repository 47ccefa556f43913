// Package schema defines the canonical market-data types shared across the scanner pipeline.
package schema

import "strings"

// CanonicalPair is the cross-venue join key in BASE_USDT form.
type CanonicalPair string

// Canonicalize normalizes a venue-native symbol to its canonical BASE_USDT key.
// Separators are stripped, the USDT suffix is required, and the base leg must be
// plain uppercase alphanumerics. Anything else yields ok=false.
func Canonicalize(symbol string) (CanonicalPair, bool) {
	s := strings.TrimSpace(symbol)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	if !strings.HasSuffix(s, "USDT") {
		return "", false
	}
	base := strings.TrimSuffix(s, "USDT")
	if base == "" {
		return "", false
	}
	for _, r := range base {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", false
		}
	}
	return CanonicalPair(base + "_USDT"), true
}

// Base returns the base leg of the pair (BTC for BTC_USDT).
func (p CanonicalPair) Base() string {
	return strings.TrimSuffix(string(p), "_USDT")
}

func (p CanonicalPair) String() string { return string(p) }
