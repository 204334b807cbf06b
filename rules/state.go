package rules

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedState is the cause of every remote state rejected by Validate.
var ErrMalformedState = errors.New("rules: malformed snake state")

// SnakeState is the published form of a snake.
type SnakeState struct {
	ID        string    `json:"id"`
	Body      []Cell    `json:"body"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
}

// Head returns the first body cell, or false for an empty body.
func (s SnakeState) Head() (Cell, bool) {
	if len(s.Body) == 0 {
		return Cell{}, false
	}
	return s.Body[0], true
}

// Clone returns a deep copy.
func (s SnakeState) Clone() SnakeState {
	s.Body = cloneCells(s.Body)
	return s
}

// Validate checks a state reported by a peer before it is allowed onto the
// board: it needs an id, at least one cell, a real direction, a non-negative
// score and every cell inside the grid.
func (s SnakeState) Validate(grid Grid) error {
	if s.ID == "" {
		return errors.Wrap(ErrMalformedState, "missing id")
	}
	if len(s.Body) == 0 {
		return errors.Wrapf(ErrMalformedState, "snake %s: empty body", s.ID)
	}
	if !s.Direction.Valid() {
		return errors.Wrapf(ErrMalformedState, "snake %s: invalid direction %d", s.ID, int(s.Direction))
	}
	if s.Score < 0 {
		return errors.Wrapf(ErrMalformedState, "snake %s: negative score %d", s.ID, s.Score)
	}
	for i, c := range s.Body {
		if !grid.Contains(c) {
			return errors.Wrapf(ErrMalformedState, "snake %s: cell %d %s outside %dx%d grid",
				s.ID, i, c, grid.Width, grid.Height)
		}
	}
	return nil
}

// EncodeBody writes cells in the compact text form: one "x,y" pair per line.
func EncodeBody(cells []Cell) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		parts = append(parts, strconv.Itoa(c.X)+","+strconv.Itoa(c.Y))
	}
	return strings.Join(parts, "\n")
}

// DecodeBody parses the form written by EncodeBody.
func DecodeBody(encoded string) ([]Cell, error) {
	if encoded == "" {
		return []Cell{}, nil
	}
	lines := strings.Split(encoded, "\n")
	cells := make([]Cell, 0, len(lines))
	for i, line := range lines {
		pair := strings.SplitN(line, ",", 2)
		if len(pair) != 2 {
			return nil, errors.Wrapf(ErrMalformedState, "body line %d: %q", i, line)
		}
		x, err := strconv.Atoi(strings.TrimSpace(pair[0]))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedState, "body line %d: bad x %q", i, pair[0])
		}
		y, err := strconv.Atoi(strings.TrimSpace(pair[1]))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedState, "body line %d: bad y %q", i, pair[1])
		}
		cells = append(cells, Cell{X: x, Y: y})
	}
	return cells, nil
}

// CompactState is a SnakeState with its body in the compact text form, the
// shape snakes are kept in by the redis and file backends.
type CompactState struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Direction Direction `json:"direction"`
	Score     int       `json:"score"`
}

// Compact converts to the compact form.
func (s SnakeState) Compact() CompactState {
	return CompactState{
		ID:        s.ID,
		Body:      EncodeBody(s.Body),
		Direction: s.Direction,
		Score:     s.Score,
	}
}

// Expand parses the body back into cells.
func (c CompactState) Expand() (SnakeState, error) {
	body, err := DecodeBody(c.Body)
	if err != nil {
		return SnakeState{}, errors.Wrapf(err, "snake %s", c.ID)
	}
	return SnakeState{
		ID:        c.ID,
		Body:      body,
		Direction: c.Direction,
		Score:     c.Score,
	}, nil
}
