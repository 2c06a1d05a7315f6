package store

import "strings"

// NormalizeAddress lowercases an address and adds a missing 0x prefix.
func NormalizeAddress(addr string) string {
	return normalizeHex(addr)
}

// NormalizeHash is NormalizeAddress for 32-byte userOp and tx hashes.
func NormalizeHash(hash string) string {
	return normalizeHex(hash)
}

func normalizeHex(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}
