package rules

import (
	"fmt"
	"math"
)

// Cell is a single square on the board. Cells are 0-indexed from the top left.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Equal checks if 2 cells are the same x,y coordinate
func (c Cell) Equal(other Cell) bool {
	return c.X == other.X && c.Y == other.Y
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Random is the source of randomness used for spawning. *rand.Rand satisfies
// it.
type Random interface {
	Float64() float64
}

// Grid is the fixed size board every snake and the food live on. Everything
// outside of [0, Width) x [0, Height) is wall.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewGrid derives the board dimensions from a canvas size and the size of a
// single cell, the same way a 450x450 canvas with 10px cells becomes a 45x45
// board.
func NewGrid(canvasWidth, canvasHeight, cellWidth int) Grid {
	if cellWidth <= 0 {
		cellWidth = 1
	}
	return Grid{
		Width:  canvasWidth / cellWidth,
		Height: canvasHeight / cellWidth,
	}
}

// Contains reports whether the cell is on the board.
func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// Area is the number of cells on the board.
func (g Grid) Area() int {
	return g.Width * g.Height
}

// RandomCell picks a cell with round(random * (dimension-1)) on each axis.
// The rounding makes the first and last row/column half as likely as the
// others; this is kept so boards behave the same as existing clients.
func (g Grid) RandomCell(r Random) Cell {
	return Cell{
		X: roundedPick(r, g.Width),
		Y: roundedPick(r, g.Height),
	}
}

func roundedPick(r Random, dimension int) int {
	if dimension <= 1 {
		return 0
	}
	return int(math.Round(r.Float64() * float64(dimension-1)))
}
