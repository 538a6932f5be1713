package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the MDSA banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  __  __ ____  ____    _    ", "#818cf8"},
		{" |  \\/  |  _ \\/ ___|  / \\   ", "#a78bfa"},
		{" | |\\/| | | | \\___ \\ / _ \\  ", "#c084fc"},
		{" | |  | | |_| |___) / ___ \\ ", "#e879f9"},
		{" |_|  |_|____/|____/_/   \\_\\", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
