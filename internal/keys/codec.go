package keys

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the unsalted SHA-256 hex digest of raw.
// Any string, including the empty string, has a digest.
func Digest(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Verify reports whether raw hashes to storedDigest.
// The comparison is constant time.
func Verify(raw, storedDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(raw)), []byte(storedDigest)) == 1
}
