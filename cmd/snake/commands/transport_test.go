package commands

import (
	"testing"

	"github.com/gridsnake/engine/config"
	"github.com/stretchr/testify/require"
)

func TestNewWorldFitsNarrowBoard(t *testing.T) {
	prev := config.CanvasWidth
	defer func() { config.CanvasWidth = prev }()
	config.CanvasWidth = 40

	w := newWorld("me", 1, false)
	require.Equal(t, 4, w.Grid().Width)
	require.Len(t, w.Local().Body, 4)
	require.NotPanics(t, func() { w.Step() })
}
