package commands

import (
	"testing"

	"github.com/gridsnake/engine/rules"
	termbox "github.com/nsf/termbox-go"
	"github.com/stretchr/testify/require"
)

func TestKeyCode(t *testing.T) {
	tests := []struct {
		key  termbox.Key
		code int
		ok   bool
	}{
		{termbox.KeyArrowLeft, rules.KeyLeft, true},
		{termbox.KeyArrowUp, rules.KeyUp, true},
		{termbox.KeyArrowRight, rules.KeyRight, true},
		{termbox.KeyArrowDown, rules.KeyDown, true},
		{termbox.KeyEnter, 0, false},
	}
	for _, test := range tests {
		code, ok := keyCode(test.key)
		require.Equal(t, test.ok, ok)
		require.Equal(t, test.code, code)
	}
}

func TestRelayURL(t *testing.T) {
	prev := relayAddr
	defer func() { relayAddr = prev }()

	relayAddr = "ws://localhost:3005/"
	require.Equal(t, "ws://localhost:3005/rooms/my%20room/socket", relayURL("my room"))
}
