package commands

import (
	"sync"

	termbox "github.com/nsf/termbox-go"
)

const localColor = termbox.ColorGreen

var defaultColors = []termbox.Attribute{
	termbox.ColorBlue,
	termbox.ColorMagenta,
	termbox.ColorYellow,
	termbox.ColorCyan,
	termbox.ColorRed,
	termbox.ColorWhite,
}

// palette hands every remote snake a color, stable for as long as the
// process runs.
type palette struct {
	mu     sync.Mutex
	colors []termbox.Attribute
	next   int
	byID   map[string]termbox.Attribute
}

func newPalette(colors []termbox.Attribute) *palette {
	return &palette{colors: colors, byID: map[string]termbox.Attribute{}}
}

func (p *palette) color(id string) termbox.Attribute {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.byID[id]; ok {
		return c
	}
	c := p.colors[p.next]
	p.next = (p.next + 1) % len(p.colors)
	p.byID[id] = c
	return c
}
