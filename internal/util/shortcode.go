package util

import (
	"crypto/rand"
	"fmt"
)

// Ambiguous characters (0/O, 1/I) are excluded so codes survive being read
// over a counter or printed on a receipt.
const shortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ShortCodeLength is the length of session, batch and bill numbers.
const ShortCodeLength = 6

// NewShortCode returns a random uppercase alphanumeric code. Uniqueness is
// enforced by the store's scoped unique constraints; callers retry on
// collision.
func NewShortCode() (string, error) {
	buf := make([]byte, ShortCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = shortCodeAlphabet[int(b)%len(shortCodeAlphabet)]
	}
	return string(buf), nil
}
