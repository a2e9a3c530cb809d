// Package password implements Argon2id password hashing with a server-side
// pepper, plus a bounded worker pool that keeps hashing off the request path.
package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19 // argon2.Version (0x13)

// Params controls Argon2id hashing cost. MemoryKiB is in KiB as required by
// argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is a conservative baseline for interactive logins.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies peppered Argon2id hashes.
//
// The pepper is a process-wide secret applied as an HMAC-SHA256 pre-hash of
// the plaintext, so a stolen database alone is not enough for offline
// cracking. It never appears in the encoded hash string.
type Hasher struct {
	params Params
	pepper []byte
}

// NewHasher constructs a Hasher. The pepper must be non-empty.
func NewHasher(pepper []byte, params Params) (*Hasher, error) {
	if len(pepper) == 0 {
		return nil, fmt.Errorf("password: empty pepper")
	}
	if params.Parallelism == 0 || params.Iterations == 0 || params.MemoryKiB < 8*1024 {
		return nil, fmt.Errorf("password: params below safe minimums")
	}
	if params.SaltLength < 8 || params.KeyLength < 16 {
		return nil, fmt.Errorf("password: salt/key length below safe minimums")
	}
	return &Hasher{params: params, pepper: pepper}, nil
}

func (h *Hasher) pre(plaintext string) []byte {
	m := hmac.New(sha256.New, h.pepper)
	_, _ = m.Write([]byte(plaintext))
	return m.Sum(nil)
}

// Hash returns a PHC-style encoded hash:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// A fresh random salt is generated per call.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}

	key := argon2.IDKey(
		h.pre(plaintext),
		salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the encoded hash. Malformed or
// unsupported hash strings verify as false; they never panic or error out of
// the authentication path.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false
	}

	// Anti-DoS boundary: refuse hashes whose stored parameters wildly exceed
	// our configured cost, so an attacker-controlled hash string cannot force
	// pathological resource usage.
	if !withinBounds(params, h.params) {
		return false
	}

	key := argon2.IDKey(
		h.pre(plaintext),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

// dummySalt is a fixed salt used to burn a computation for sign-in attempts
// against nonexistent usernames, so the "unknown user" path costs the same as
// the "wrong password" path.
var dummySalt = []byte("nanochat-dummy-s")

// VerifyDummy runs one full Argon2id computation and always reports false.
func (h *Hasher) VerifyDummy(plaintext string) bool {
	key := argon2.IDKey(
		h.pre(plaintext),
		dummySalt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)
	// Compare against an impossible value; result is always false.
	return subtle.ConstantTimeCompare(key, make([]byte, len(key)+1)) == 1
}

func withinBounds(got, limit Params) bool {
	if got.MemoryKiB > limit.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limit.Iterations*2 {
		return false
	}
	if got.Parallelism > limit.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses a PHC Argon2id string into params, salt and expected key.
func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, fmt.Errorf("password: invalid hash format")
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Params{}, nil, nil, fmt.Errorf("password: unsupported hash version")
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: invalid hash params")
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, fmt.Errorf("password: invalid hash params")
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: invalid salt encoding")
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("password: invalid key encoding")
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
