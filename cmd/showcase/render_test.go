package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	showcase "github.com/flywave/go-showcase"
)

func TestApplyEngravingFlags(t *testing.T) {
	cfg := showcase.Default()
	cfg.Engraving.Lines[0].Text = "Cuvée"
	cfg.Engraving.Lines[1].Text = "2019"

	cmd := renderCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--line2", "Reserve", "--font", "gentilis"}))
	applyEngraving(cmd, &cfg)
	assert.Equal(t, "Cuvée", cfg.Engraving.Lines[0].Text)
	assert.Equal(t, "Reserve", cfg.Engraving.Lines[1].Text)
	assert.Equal(t, "gentilis", cfg.Engraving.Font)

	cmd = renderCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--line1="}))
	applyEngraving(cmd, &cfg)
	assert.Empty(t, cfg.Engraving.Lines[0].Text)
	assert.Equal(t, "Reserve", cfg.Engraving.Lines[1].Text)
	assert.Equal(t, "gentilis", cfg.Engraving.Font)
}

func TestRenderRejectsRepeatedLineFlag(t *testing.T) {
	cmd := renderCmd()
	assert.Error(t, cmd.ParseFlags([]string{"--line", "A"}))
}
