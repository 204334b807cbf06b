package rules

// FoodSpawner decides where the next food goes.
type FoodSpawner interface {
	Spawn(grid Grid, occupied Occupancy) Cell
}

// RandomFood places food on any cell of the board, occupied or not. Food may
// appear under a snake; that snake simply eats it if its head passes over.
type RandomFood struct {
	Rand Random
}

// Spawn implements FoodSpawner.
func (f RandomFood) Spawn(grid Grid, _ Occupancy) Cell {
	return grid.RandomCell(f.Rand)
}

// FreeCellFood places food on a cell no snake covers, picked uniformly. When
// the board is full it falls back to RandomFood.
type FreeCellFood struct {
	Rand Random
}

// Spawn implements FoodSpawner.
func (f FreeCellFood) Spawn(grid Grid, occupied Occupancy) Cell {
	free := freeCells(grid, occupied)
	if len(free) == 0 {
		return grid.RandomCell(f.Rand)
	}
	i := int(f.Rand.Float64() * float64(len(free)))
	if i >= len(free) {
		i = len(free) - 1
	}
	return free[i]
}

func freeCells(grid Grid, occupied Occupancy) []Cell {
	free := make([]Cell, 0, grid.Area()-occupied.Len())
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			c := Cell{X: x, Y: y}
			if !occupied.Contains(c) {
				free = append(free, c)
			}
		}
	}
	return free
}
