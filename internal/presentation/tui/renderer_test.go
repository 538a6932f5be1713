package tui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/internal/presentation/tui"
)

func TestRenderer_KeepsText(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("**Transfer** scheduled")
	require.NoError(t, err)
	assert.Contains(t, out, "Transfer")
	assert.Contains(t, out, "scheduled")
}

func TestPrintBanner_IncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
}
