package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// StorageKey is the L2 key for a cache key. Everything under
// "replaycache:<ns>:" belongs to the store.
func StorageKey(ns, key string) string {
	return "replaycache:" + ns + ":entry:" + key
}

// Redact returns a short, stable fingerprint of key for logs.
func Redact(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
