// Package crypto implements password hashing and one-time reset tokens.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// Params are Argon2id cost parameters.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams is tuned for server-side hashing.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// SaltLen is the length of generated salts.
const SaltLen = 16

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hasher hashes passwords with fixed Argon2id parameters.
type Hasher struct{ p Params }

// NewHasher returns a hasher; a zero Params selects DefaultParams.
func NewHasher(p Params) Hasher {
	if p == (Params{}) {
		p = DefaultParams
	}
	return Hasher{p: p}
}

// Hash derives a hash of password under a freshly generated salt.
func (h Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive([]byte(password), salt), salt, nil
}

// Verify reports whether password matches hash under salt.
func (h Hasher) Verify(password string, salt, hash []byte) bool {
	got := h.derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, hash) == 1
}

func (h Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}

// NewResetToken returns a URL-safe one-time token and the hash to store.
func NewResetToken() (token string, hash []byte, err error) {
	b, err := RandBytes(24)
	if err != nil {
		return "", nil, err
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken returns the stored form of a reset token.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// TokenMatches compares a presented token with a stored hash in constant time.
func TokenMatches(token string, stored []byte) bool {
	if len(stored) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(HashToken(token), stored) == 1
}
