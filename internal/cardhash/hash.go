// Package cardhash fingerprints card content so that re-importing the same
// card into a deck can be detected.
package cardhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize joins the front and back after cleaning each part.
// Each part is lowercased, trimmed and has CRLF line endings folded to LF.
func Normalize(front, back string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// The newline keeps "ab"+"c" and "a"+"bc" apart.
	return normalizePart(front) + "\n" + normalizePart(back)
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(front, back string) string {
	sum := sha256.Sum256([]byte(Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}
