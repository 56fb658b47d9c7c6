package utils

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// ParseChainID parses an EIP-155 chain id given as 0x-prefixed hex or decimal.
// Leading zeros are accepted, so "0x01" and "1" are the same chain.
func ParseChainID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty chain id")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") && strings.ContainsAny(s, "abcdefABCDEF") {
		s = "0x" + s
	}
	n, ok := math.ParseBig256(s)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", s)
	}
	return n, nil
}

// NormalizeChainID returns the decimal form of a chain id, or "" when it
// cannot be parsed
func NormalizeChainID(s string) string {
	n, err := ParseChainID(s)
	if err != nil {
		return ""
	}
	return n.String()
}

// OriginHost returns the lower-cased host[:port] of a caller url.
// Inputs without a scheme are treated as bare hosts.
func OriginHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
