// Package tui renders orchestrator output for terminals.
package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWordWrap = 100

// NewRenderer returns a function that renders markdown using glamour,
// wrapped to the terminal width when stdout is a terminal.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(wordWrap()),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func wordWrap() int {
	if !IsTerminal() {
		return defaultWordWrap
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 4 {
		return defaultWordWrap
	}
	return w - 4
}
