package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
)

const (
	DefaultMinLength   = 3
	DefaultNGramSize   = 3
	DefaultMaxNGramRep = 3
)

var (
	leadingRoleRE  = regexp.MustCompile(`(?i)^\s*(?:system|user|assistant)\s*:\s*`)
	trailingRoleRE = regexp.MustCompile(`(?im)^\s*(?:system|user|assistant)\s*:`)
)

// Validator checks generated responses.
type Validator struct {
	MinLength   int
	NGramSize   int
	MaxNGramRep int
}

// NewValidator returns a Validator with the default limits.
func NewValidator() *Validator {
	return &Validator{
		MinLength:   DefaultMinLength,
		NGramSize:   DefaultNGramSize,
		MaxNGramRep: DefaultMaxNGramRep,
	}
}

// Validate cleans text and reports its quality. Role echoes are stripped:
// leading "Assistant:" style prefixes are removed and anything after a
// line that opens a new turn is cut. The returned error wraps
// domain.ErrValidation when the response must be rejected.
func (v *Validator) Validate(text string) (string, domain.ValidationReport, error) {
	report := domain.ValidationReport{Valid: true}

	cleaned := text
	for leadingRoleRE.MatchString(cleaned) {
		cleaned = leadingRoleRE.ReplaceAllString(cleaned, "")
	}
	if loc := trailingRoleRE.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[:loc[0]]
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != strings.TrimSpace(text) {
		report.Sanitized = true
		report.Issues = append(report.Issues, "role leakage removed")
	}

	if n := len([]rune(cleaned)); n < v.MinLength {
		report.Valid = false
		report.Issues = append(report.Issues, fmt.Sprintf("response too short (%d < %d)", n, v.MinLength))
		return cleaned, report, fmt.Errorf("%w: response too short", domain.ErrValidation)
	}

	if gram, count := mostRepeatedNGram(cleaned, v.NGramSize); count > v.MaxNGramRep {
		report.Repetitive = true
		report.Issues = append(report.Issues, fmt.Sprintf("%q repeated %d times", gram, count))
	}
	return cleaned, report, nil
}

func mostRepeatedNGram(text string, n int) (string, int) {
	words := strings.Fields(strings.ToLower(text))
	if n <= 0 || len(words) < n {
		return "", 0
	}
	counts := make(map[string]int)
	best, bestCount := "", 0
	for i := 0; i+n <= len(words); i++ {
		g := strings.Join(words[i:i+n], " ")
		counts[g]++
		if counts[g] > bestCount {
			best, bestCount = g, counts[g]
		}
	}
	return best, bestCount
}
