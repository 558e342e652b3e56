package inbound

import (
	"crypto/sha256"
	"encoding/hex"
)

// contentHash is the dedupe fingerprint fallback for channels whose
// raw message carries no stable platform message id (spec §4.12.2).
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
