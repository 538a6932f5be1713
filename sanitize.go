package mdsa

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/mdsa/pkg/domain"
)

// DefaultMaxQueryBytes bounds the size of a request query.
const DefaultMaxQueryBytes = 8192

// SanitizeQuery enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return.
func SanitizeQuery(query string, maxBytes int) (string, error) {
	if maxBytes > 0 && len(query) > maxBytes {
		// Rejected rather than truncated so the routed text is what the caller sent.
		return "", fmt.Errorf("%w: size=%d limit=%d", domain.ErrQueryTooLarge, len(query), maxBytes)
	}
	if !utf8.ValidString(query) {
		return "", domain.ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	clean := true
	for _, r := range query {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return query, nil
	}

	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
