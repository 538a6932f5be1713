package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
)

// PlanOverlay carries execution outcomes to style on the plan graph.
type PlanOverlay struct {
	Results []domain.TaskResult
	// Current is the task being executed, if any.
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a task plan.
// Edges point from a dependency to the task that waits on it. Tasks get a
// subroutine shape when they need tools and a rectangle otherwise; the
// overlay colors completed and failed tasks.
func GenerateMermaid(tasks []domain.Task, overlay *PlanOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, t := range tasks {
		safeID := sanitizeMermaidID(t.ID)

		opener, closer := "[", "]"
		if len(t.ToolsNeeded) > 0 {
			opener, closer = "[[", "]]"
		}

		label := t.ID
		if t.Domain != "" {
			label = fmt.Sprintf("%s <br/> %s", t.ID, t.Domain)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(t.ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef completed fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, r := range overlay.Results {
			safeID := sanitizeMermaidID(r.TaskID)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			class := "completed"
			if r.Status == domain.TaskFailed {
				class = "failed"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", safeID, class)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
