// Package password derives and verifies salted PBKDF2-SHA256 credentials.
//
// The stored hash is self-describing: pbkdf2-sha256$<iterations>$<base64 key>.
// The salt is stored base64 encoded in its own column. Verify never returns
// an error: malformed stored values simply fail verification.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 100_000
	DefaultSaltLen    = 16
	DefaultKeyLen     = 32

	minIterations = 1_000
	maxIterations = 10_000_000

	scheme = "pbkdf2-sha256"
)

type Hasher struct {
	iterations int
	saltLen    int
	keyLen     int
}

// NewHasher returns a Hasher that hashes new credentials with the given
// number of PBKDF2 rounds. Counts below the floor are raised to it.
func NewHasher(iterations int) *Hasher {
	if iterations < minIterations {
		iterations = minIterations
	}
	return &Hasher{
		iterations: iterations,
		saltLen:    DefaultSaltLen,
		keyLen:     DefaultKeyLen,
	}
}

func (h *Hasher) Iterations() int {
	return h.iterations
}

// Hash derives a key from password under a fresh random salt at the
// configured cost.
func (h *Hasher) Hash(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, h.saltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := derive(password, saltBytes, h.iterations, h.keyLen)
	return encode(h.iterations, key), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// Verify re-derives the key at the cost recorded in the stored hash and
// compares it in constant time.
func (h *Hasher) Verify(password, hash, salt string) bool {
	iterations, expected, ok := decode(hash)
	if !ok {
		return false
	}
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}

	actual := derive(password, saltBytes, iterations, len(expected))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// NeedsRehash reports whether hash was derived at a cost other than the
// configured one, or cannot be parsed at all.
func (h *Hasher) NeedsRehash(hash string) bool {
	iterations, key, ok := decode(hash)
	return !ok || iterations != h.iterations || len(key) != h.keyLen
}

func derive(password string, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
}

func encode(iterations int, key []byte) string {
	return scheme + "$" + strconv.Itoa(iterations) + "$" + base64.StdEncoding.EncodeToString(key)
}

func decode(hash string) (int, []byte, bool) {
	parts := strings.Split(hash, "$")
	if len(parts) != 3 || parts[0] != scheme {
		return 0, nil, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < minIterations || iterations > maxIterations {
		return 0, nil, false
	}
	key, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(key) < DefaultKeyLen {
		return 0, nil, false
	}
	return iterations, key, true
}
