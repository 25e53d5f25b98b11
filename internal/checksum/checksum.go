package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for text content.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Namespace derives a stable, non-reversible key from a secret such as an
// API token, so state can be partitioned per token without storing it.
func Namespace(prefix, secret string) string {
	return prefix + ":" + SumString(secret)[:16]
}
