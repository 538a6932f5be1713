// Package reasoner decides when a query needs decomposition and turns it
// into an ordered plan of domain tasks.
package reasoner

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Indicator names a complexity heuristic that fired for a query.
type Indicator string

const (
	IndicatorMultipleVerbs   Indicator = "multiple_verbs"
	IndicatorSequencing      Indicator = "sequencing"
	IndicatorMultipleDomains Indicator = "multiple_domains"
	IndicatorConditional     Indicator = "conditional"
	IndicatorLongQuery       Indicator = "long_query"
	IndicatorLowConfidence   Indicator = "low_confidence"
)

const (
	DefaultAlpha          = 0.7
	DefaultBeta           = 0.3
	DefaultLengthNorm     = 50
	DefaultLongQueryWords = 25
)

// ComplexityResult is the outcome of Analyze.
type ComplexityResult struct {
	Score      float64     `json:"complexity_score"`
	IsComplex  bool        `json:"is_complex"`
	Indicators []Indicator `json:"indicators,omitempty"`
	Clauses    []Clause    `json:"clauses,omitempty"`
}

// Has reports whether ind fired.
func (r ComplexityResult) Has(ind Indicator) bool {
	for _, i := range r.Indicators {
		if i == ind {
			return true
		}
	}
	return false
}

// Analyzer scores query complexity. It is stateless and safe for concurrent use.
type Analyzer struct {
	alpha, beta    float64
	threshold      float64
	lengthNorm     int
	longQueryWords int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithThreshold sets θ: queries scoring above it are complex.
func WithThreshold(t float64) AnalyzerOption {
	return func(a *Analyzer) {
		a.threshold = t
	}
}

// WithWeights sets α (confidence weight) and β (length weight).
func WithWeights(alpha, beta float64) AnalyzerOption {
	return func(a *Analyzer) {
		a.alpha, a.beta = alpha, beta
	}
}

// WithLengthNorm sets the word count at which the length term saturates.
func WithLengthNorm(words int) AnalyzerOption {
	return func(a *Analyzer) {
		if words > 0 {
			a.lengthNorm = words
		}
	}
}

// NewAnalyzer creates an Analyzer with the default weights.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		alpha:          DefaultAlpha,
		beta:           DefaultBeta,
		threshold:      domain.DefaultComplexityThreshold,
		lengthNorm:     DefaultLengthNorm,
		longQueryWords: DefaultLongQueryWords,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns θ.
func (a *Analyzer) Threshold() float64 {
	return a.threshold
}

// Analyze scores query given the router's best confidence and the number of
// domains the query matched.
//
//	score = α·(1 − maxConfidence) + β·min(1, words/lengthNorm)
//
// A query that splits into two or more clauses is complex regardless of score.
func (a *Analyzer) Analyze(query string, maxConfidence float64, matchedDomains int) ComplexityResult {
	words := strings.Fields(query)
	conf := math.Max(0, math.Min(1, maxConfidence))
	length := math.Min(1, float64(len(words))/float64(a.lengthNorm))

	res := ComplexityResult{
		Score:   a.alpha*(1-conf) + a.beta*length,
		Clauses: SplitClauses(query),
	}
	res.Score = math.Max(0, math.Min(1, res.Score))

	if countVerbs(query) >= 2 {
		res.Indicators = append(res.Indicators, IndicatorMultipleVerbs)
	}
	if sequenceRE.MatchString(query) {
		res.Indicators = append(res.Indicators, IndicatorSequencing)
	}
	if matchedDomains >= 2 {
		res.Indicators = append(res.Indicators, IndicatorMultipleDomains)
	}
	if conditionalRE.MatchString(query) {
		res.Indicators = append(res.Indicators, IndicatorConditional)
	}
	if len(words) > a.longQueryWords {
		res.Indicators = append(res.Indicators, IndicatorLongQuery)
	}
	if conf < 1-a.threshold {
		res.Indicators = append(res.Indicators, IndicatorLowConfidence)
	}

	res.IsComplex = res.Score > a.threshold || len(res.Clauses) >= 2
	return res
}

// Clause is one unit of a query after splitting on connectors.
type Clause struct {
	Text string `json:"text"`
	// Sequential is true when the clause was introduced by a sequencing
	// connector and therefore depends on the clause before it.
	Sequential bool `json:"sequential"`
}

var (
	sequenceRE    = regexp.MustCompile(`(?i)(?:\s*[,;]\s*|\s+)(?:and then|after that|afterwards|followed by|subsequently|finally|then)\s+|\s*;\s*`)
	conditionalRE = regexp.MustCompile(`(?i)\b(?:if|unless|otherwise|whether|in case)\b`)
	leadingRE     = regexp.MustCompile(`(?i)^(?:first(?:ly)?|please)[,\s]+`)
)

// imperatives are verbs that start an independent instruction when they
// follow "and".
var imperatives = map[string]bool{
	"analyze": true, "book": true, "calculate": true, "cancel": true,
	"check": true, "compare": true, "compute": true, "convert": true,
	"create": true, "draft": true, "estimate": true, "explain": true,
	"extract": true, "find": true, "fix": true, "generate": true,
	"install": true, "list": true, "pay": true, "refund": true,
	"reset": true, "review": true, "schedule": true, "search": true,
	"send": true, "show": true, "submit": true, "summarize": true,
	"transfer": true, "update": true, "validate": true, "verify": true,
	"deploy": true, "write": true,
}

// SplitClauses splits query on sequencing connectors ("then", "after that",
// ";") and on "and" followed by an imperative verb. Empty clauses are dropped.
func SplitClauses(query string) []Clause {
	var out []Clause
	rest := query
	sequential := false
	for _, loc := range appendEnd(sequenceRE.FindAllStringIndex(query, -1), len(query)) {
		segment := query[len(query)-len(rest) : loc[0]]
		rest = query[loc[1]:]
		for i, part := range splitOnAnd(segment) {
			if text := cleanClause(part); text != "" {
				out = append(out, Clause{Text: text, Sequential: sequential && i == 0 && len(out) > 0})
			}
		}
		sequential = true
	}
	return out
}

func appendEnd(locs [][]int, end int) [][]int {
	return append(locs, []int{end, end})
}

func splitOnAnd(segment string) []string {
	words := strings.Fields(segment)
	var parts []string
	start := 0
	for i := 1; i < len(words)-1; i++ {
		if strings.EqualFold(strings.TrimRight(words[i], ","), "and") && imperatives[normalizeWord(words[i+1])] {
			parts = append(parts, strings.Join(words[start:i], " "))
			start = i + 1
		}
	}
	return append(parts, strings.Join(words[start:], " "))
}

func cleanClause(s string) string {
	s = strings.TrimSpace(s)
	s = leadingRE.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " ,;.")
	return strings.TrimSpace(s)
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
}

func countVerbs(query string) int {
	n := 0
	for _, w := range strings.Fields(query) {
		if imperatives[normalizeWord(w)] {
			n++
		}
	}
	return n
}
