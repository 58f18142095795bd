package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint identifies a secret in logs without revealing it.
// It returns the first 8 hex digits of the sha256 hash, empty for an empty secret.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	hasher := sha256.New()
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))[:8]
}
