// Package token provides hashing for refresh tokens stored server-side and
// generation of per-user key material.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// HashSHA256Hex returns the SHA-256 hex digest of s.
//
// Refresh tokens are persisted only as this digest: a leaked sessions table
// does not yield redeemable tokens.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns the HMAC-SHA256 hex digest of s under key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Digest computes the at-rest form of a refresh token.
type Digest func(string) string

// NewDigest selects the registry digest: plain SHA-256, or HMAC-SHA256 when
// a registry key is configured. The keyed form additionally ties stored
// digests to the key, so a database dump alone cannot be checked against
// candidate tokens.
func NewDigest(key []byte) Digest {
	if len(key) == 0 {
		return HashSHA256Hex
	}
	return func(s string) string {
		return HashHMACSHA256Hex(s, key)
	}
}

// NewKeyMaterialHex returns 32 random bytes hex-encoded. Each user gets one
// at sign-up; the messaging clients feed it into their key derivation. It has
// no role in authentication.
func NewKeyMaterialHex() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
