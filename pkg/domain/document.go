package domain

import "time"

// Scope identifies which corpus a document lives in.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// Document is a unit of knowledge owned by exactly one corpus.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Scope     Scope             `json:"scope"`
	DomainID  string            `json:"domain_id,omitempty"`
	Seq       uint64            `json:"seq"`
	CreatedAt time.Time         `json:"created_at"`
}

// HasTags reports whether the document carries every tag in tags.
func (d Document) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, t := range d.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RetrievalResult is the ranked output of one corpus lookup.
type RetrievalResult struct {
	Documents       []Document `json:"documents"`
	Scores          []float64  `json:"scores"`
	RetrievalTimeMS float64    `json:"retrieval_time_ms"`
}

// Len returns the number of retrieved documents.
func (r RetrievalResult) Len() int {
	return len(r.Documents)
}
