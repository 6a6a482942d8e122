// Package canonhash fingerprints Go values by hashing their canonical JSON
// form. encoding/json marshals struct fields in declaration order and map
// keys sorted, which is enough canonicalization for the fixed shapes hashed
// here.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the lowercase hex SHA-256 of v's JSON encoding.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes returns the lowercase hex SHA-256 of raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
