package commands

import (
	"fmt"

	"github.com/gridsnake/engine/rules"
	"github.com/mattn/go-runewidth"
	termbox "github.com/nsf/termbox-go"
)

const (
	defaultColor = termbox.ColorDefault
	bgColor      = termbox.ColorDefault
	foodRune     = '●'
)

// terminal draws snapshots with termbox, two columns per cell so cells come
// out roughly square.
type terminal struct {
	colors *palette
	left   int
	top    int
}

func newTerminal() *terminal {
	return &terminal{colors: newPalette(defaultColors), left: 2, top: 2}
}

func (t *terminal) Render(snap rules.Snapshot) error {
	if err := termbox.Clear(defaultColor, defaultColor); err != nil {
		return err
	}

	t.renderTitle(snap)
	t.renderBoard(snap.Grid)
	for _, s := range snap.Snakes {
		color := t.colors.color(s.ID)
		if s.ID == snap.LocalID {
			color = localColor
		}
		for _, c := range s.Body {
			t.setCell(c, ' ', color, color)
		}
	}
	t.setCell(snap.Food, foodRune, termbox.ColorRed, bgColor)
	t.renderScores(snap)

	return termbox.Flush()
}

func (t *terminal) setCell(c rules.Cell, ch rune, fg, bg termbox.Attribute) {
	x, y := t.left+2*c.X, t.top+c.Y+1
	termbox.SetCell(x, y, ch, fg, bg)
	termbox.SetCell(x+1, y, ' ', fg, bg)
}

func (t *terminal) renderTitle(snap rules.Snapshot) {
	tbprint(t.left, t.top-1, defaultColor, defaultColor,
		fmt.Sprintf("Snake! - Score %d - Turn %d - arrows to steer, q to quit", snap.LocalScore, snap.Turn))
}

func (t *terminal) renderScores(snap rules.Snapshot) {
	x := t.left + 2*snap.Grid.Width + 3
	for i, s := range snap.Snakes {
		color := t.colors.color(s.ID)
		if s.ID == snap.LocalID {
			color = localColor
		}
		termbox.SetCell(x, t.top+1+i, ' ', color, color)
		tbprint(x+2, t.top+1+i, defaultColor, defaultColor, fmt.Sprintf("%.8s %d", s.ID, s.Score))
	}
}

func (t *terminal) renderBoard(g rules.Grid) {
	var (
		left   = t.left
		top    = t.top
		right  = left + 2*g.Width
		bottom = top + g.Height + 1
	)
	for i := top + 1; i < bottom; i++ {
		termbox.SetCell(left-1, i, '│', defaultColor, bgColor)
		termbox.SetCell(right, i, '│', defaultColor, bgColor)
	}

	termbox.SetCell(left-1, top, '┌', defaultColor, bgColor)
	termbox.SetCell(left-1, bottom, '└', defaultColor, bgColor)
	termbox.SetCell(right, top, '┐', defaultColor, bgColor)
	termbox.SetCell(right, bottom, '┘', defaultColor, bgColor)

	fill(left, top, 2*g.Width, 1, termbox.Cell{Ch: '─'})
	fill(left, bottom, 2*g.Width, 1, termbox.Cell{Ch: '─'})
}

func fill(x, y, w, h int, cell termbox.Cell) {
	for ly := 0; ly < h; ly++ {
		for lx := 0; lx < w; lx++ {
			termbox.SetCell(x+lx, y+ly, cell.Ch, cell.Fg, cell.Bg)
		}
	}
}

func tbprint(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x += runewidth.RuneWidth(c)
	}
}

// keyCode maps termbox arrow keys to the browser key codes the world takes.
func keyCode(k termbox.Key) (int, bool) {
	switch k {
	case termbox.KeyArrowLeft:
		return rules.KeyLeft, true
	case termbox.KeyArrowUp:
		return rules.KeyUp, true
	case termbox.KeyArrowRight:
		return rules.KeyRight, true
	case termbox.KeyArrowDown:
		return rules.KeyDown, true
	}
	return 0, false
}
