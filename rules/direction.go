package rules

import (
	"github.com/pkg/errors"
)

// Direction is the heading of a snake.
type Direction int

// The zero Direction is invalid so a state with a missing direction is caught
// during validation.
const (
	Up Direction = iota + 1
	Down
	Left
	Right
)

var directionNames = map[Direction]string{
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

// Browser key codes for the arrow keys.
const (
	KeyLeft  = 37
	KeyUp    = 38
	KeyRight = 39
	KeyDown  = 40
)

// ErrInvalidDirection is returned when decoding an unknown direction name.
var ErrInvalidDirection = errors.New("rules: invalid direction")

// Valid reports whether d is one of the four headings.
func (d Direction) Valid() bool {
	_, ok := directionNames[d]
	return ok
}

// Opposite returns the reverse heading.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return d
}

// Step returns the neighbouring cell in this direction.
func (d Direction) Step(c Cell) Cell {
	switch d {
	case Up:
		return Cell{X: c.X, Y: c.Y - 1}
	case Down:
		return Cell{X: c.X, Y: c.Y + 1}
	case Left:
		return Cell{X: c.X - 1, Y: c.Y}
	case Right:
		return Cell{X: c.X + 1, Y: c.Y}
	}
	return c
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return "invalid"
}

// MarshalText encodes the direction as its lowercase name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, errors.Wrapf(ErrInvalidDirection, "value %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a lowercase direction name.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection parses "up", "down", "left" or "right".
func ParseDirection(name string) (Direction, error) {
	for d, n := range directionNames {
		if n == name {
			return d, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidDirection, "%q", name)
}

// KeyDirection maps an arrow key code to a direction.
func KeyDirection(code int) (Direction, bool) {
	switch code {
	case KeyLeft:
		return Left, true
	case KeyUp:
		return Up, true
	case KeyRight:
		return Right, true
	case KeyDown:
		return Down, true
	}
	return 0, false
}
