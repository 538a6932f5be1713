package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultContentPatterns catch e-mail addresses, US social security numbers
// and payment card numbers in free text.
var DefaultContentPatterns = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\b\d{3}-\d{2}-\d{4}\b`,
	`\b(?:\d[ \-]?){13,16}\b`,
}

// PIIConfig selects what is redacted before a document is persisted.
type PIIConfig struct {
	// MetadataKeys masks the value of every metadata key matching a pattern.
	MetadataKeys []string
	// ContentPatterns masks every match inside the document content.
	ContentPatterns []string
}

type piiMiddleware struct {
	next    ports.DocumentStore
	keys    []*regexp.Regexp
	content []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that redacts documents on Save.
// Patterns must compile; invalid ones panic like regexp.MustCompile.
func NewPIIMiddleware(config PIIConfig) Middleware {
	keys := compileAll(config.MetadataKeys)
	content := compileAll(config.ContentPatterns)
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &piiMiddleware{next: next, keys: keys, content: content}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, doc domain.Document) error {
	// Copy so the caller's in-memory document keeps the original values.
	redacted := doc
	redacted.Metadata = make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		if matchesAny(k, m.keys) {
			v = Mask
		}
		redacted.Metadata[k] = v
	}
	for _, p := range m.content {
		redacted.Content = p.ReplaceAllString(redacted.Content, Mask)
	}
	return m.next.Save(ctx, redacted)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	return m.next.List(ctx, scope, domainID)
}

// Helpers

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
