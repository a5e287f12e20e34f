package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/duzhibot/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "a buffer is not a terminal")
	assert.Equal(t, 7, strings.Count(out, "\n"))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, tui.IsTerminal(&bytes.Buffer{}))
}

func TestNewRenderer(t *testing.T) {
	render, err := tui.NewRenderer()
	require.NoError(t, err)

	out, err := render("**bold** reply")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "reply")
}
