package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Hasher produces short, stable fingerprints used inside dedup keys
type Hasher struct {
	length int
}

// NewHasher creates a hasher truncating hex digests to length characters.
// A length <= 0 or above 64 keeps the full SHA-256 digest.
func NewHasher(length int) *Hasher {
	if length <= 0 || length > sha256.Size*2 {
		length = sha256.Size * 2
	}
	return &Hasher{length: length}
}

// DefaultHasher returns a hasher producing 12 character fingerprints
func DefaultHasher() *Hasher {
	return NewHasher(12)
}

// Hash computes a truncated hex SHA-256 of data
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:h.length]
}

// HashFields fingerprints a set of fields independent of their order.
// URL fields have their scheme and host lower-cased and trailing slashes
// dropped, so "HTTPS://RPC/" and "https://rpc" collapse to one fingerprint
// while paths, which are case-sensitive, stay apart.
func (h *Hasher) HashFields(fields ...string) string {
	normalized := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(normalizeField(f), "/")
		if f != "" {
			normalized = append(normalized, f)
		}
	}
	sort.Strings(normalized)
	return h.Hash([]byte(strings.Join(normalized, "|")))
}

func normalizeField(f string) string {
	f = strings.TrimSpace(f)
	u, err := url.Parse(f)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return f
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
