// Package fingerprint computes content fingerprints for uploaded media.
// Two byte-identical uploads always share a fingerprint, regardless of
// filename or upload order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
