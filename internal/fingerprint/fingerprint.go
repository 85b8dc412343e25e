package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knolbox/internal/parser"
)

// normalize trims whitespace, lowercases and normalizes line endings.
func normalize(part string) string {
	p := strings.ToLower(part)
	p = strings.ReplaceAll(p, "\r\n", "\n")
	return strings.TrimSpace(p)
}

func sum(parts ...string) string {
	// Fields are joined with a newline so "ab"+"c" and "a"+"bc" differ.
	h := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return fmt.Sprintf("%x", h)
}

// Key identifies a deck entry across edits: only the front counts, so fixing
// a translation keeps the same card.
func Key(e parser.Entry) string {
	return sum(normalize(e.Front))
}

// Content hashes everything the entry carries, detail fields included, so any
// edit worth propagating changes it.
func Content(e parser.Entry) string {
	parts := []string{normalize(e.Front), normalize(e.Back)}
	for _, f := range e.Detail {
		parts = append(parts, normalize(f.Name)+":"+normalize(f.Value))
	}
	return sum(parts...)
}
