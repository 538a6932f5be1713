package executor

import (
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
)

// QueryPlaceholder is replaced by the user query in domain prompt templates.
const QueryPlaceholder = "{query}"

// Turn is one exchange of a chat history.
type Turn = domain.Turn

// BuildPrompt renders the generation prompt: retrieved context, then chat
// history, then the domain template applied to query. The system prompt is
// passed to the backend separately.
func BuildPrompt(d domain.Domain, query string, contextDocs []string, history []Turn) string {
	var b strings.Builder

	if len(contextDocs) > 0 {
		b.WriteString("Context:\n")
		for _, doc := range contextDocs {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(doc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation:\n")
		for _, t := range history {
			b.WriteString(roleLabel(t.Role))
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(t.Content))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	tmpl := d.PromptTemplate
	switch {
	case tmpl == "":
		b.WriteString(query)
	case strings.Contains(tmpl, QueryPlaceholder):
		b.WriteString(strings.ReplaceAll(tmpl, QueryPlaceholder, query))
	default:
		b.WriteString(tmpl)
		b.WriteString("\n")
		b.WriteString(query)
	}
	return b.String()
}

func roleLabel(role string) string {
	switch strings.ToLower(role) {
	case "assistant", "bot", "model":
		return "Assistant"
	case "system":
		return "System"
	default:
		return "User"
	}
}
