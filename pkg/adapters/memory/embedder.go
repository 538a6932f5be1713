package memory

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// DefaultDimension is the vector size of HashEmbedder.
const DefaultDimension = 512

// HashEmbedder implements ports.Embedder with hashed bag-of-words vectors.
// It needs no model weights, so routing works offline and deterministically.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates an embedder with dim buckets (DefaultDimension when dim <= 0).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

// Embed returns the L2-normalized term-frequency vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}
	if n := floats.Norm(vec, 2); n > 0 {
		floats.Scale(1/n, vec)
	}
	return vec, nil
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "your": {}, "are": {},
	"was": {}, "were": {}, "what": {}, "that": {}, "this": {}, "from": {}, "have": {},
	"has": {}, "not": {}, "but": {}, "can": {}, "how": {}, "into": {}, "then": {},
	"than": {}, "its": {}, "our": {}, "all": {}, "any": {}, "please": {}, "need": {},
}

// Tokenize lower-cases text and splits it on anything that is not a letter or digit.
// Tokens shorter than three runes and common stop words are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop || len([]rune(f)) < 3 {
			continue
		}
		out = append(out, f)
	}
	return out
}
