package rules

// CollisionKind is the outcome of testing a candidate head cell.
type CollisionKind int

const (
	// CollisionNone means the cell is free.
	CollisionNone CollisionKind = iota
	// CollisionWall is when the head leaves the board.
	CollisionWall
	// CollisionBody is when the head lands on any snake body, its own included.
	CollisionBody
)

func (k CollisionKind) String() string {
	switch k {
	case CollisionNone:
		return "none"
	case CollisionWall:
		return "wall-collision"
	case CollisionBody:
		return "body-collision"
	}
	return "unknown"
}

// Obstacles answers whether a cell is blocked.
type Obstacles interface {
	Contains(Cell) bool
}

// CheckCollision tests a candidate head against the walls first and the
// obstacle set second.
func CheckCollision(head Cell, grid Grid, obstacles Obstacles) CollisionKind {
	if !grid.Contains(head) {
		return CollisionWall
	}
	if obstacles != nil && obstacles.Contains(head) {
		return CollisionBody
	}
	return CollisionNone
}

// Occupancy counts how many body segments cover each cell. Counting instead
// of a plain set lets overlapping snakes be added and removed independently.
type Occupancy map[Cell]int

// Add covers every cell once more.
func (o Occupancy) Add(cells ...Cell) {
	for _, c := range cells {
		o[c]++
	}
}

// Remove uncovers every cell once.
func (o Occupancy) Remove(cells ...Cell) {
	for _, c := range cells {
		n := o[c]
		if n <= 1 {
			delete(o, c)
			continue
		}
		o[c] = n - 1
	}
}

// Contains reports whether any segment covers c.
func (o Occupancy) Contains(c Cell) bool {
	return o[c] > 0
}

// Count is the number of segments covering c.
func (o Occupancy) Count(c Cell) int {
	return o[c]
}

// Len is the number of distinct covered cells.
func (o Occupancy) Len() int {
	return len(o)
}

// Cells returns every distinct covered cell in no particular order.
func (o Occupancy) Cells() []Cell {
	cells := make([]Cell, 0, len(o))
	for c := range o {
		cells = append(cells, c)
	}
	return cells
}

// vacating is an obstacle view with one segment lifted off a cell: the tail
// of a snake that is about to move without growing.
type vacating struct {
	occupied Occupancy
	cell     Cell
}

func (v vacating) Contains(c Cell) bool {
	if c == v.cell {
		return v.occupied.Count(c) > 1
	}
	return v.occupied.Contains(c)
}

// ObstaclesFor returns the obstacle set seen by s on its next move. The board
// must already include s's own body. When the move will not grow the snake its
// tail is about to be vacated and is not an obstacle, unless some other
// segment also covers that cell.
func ObstaclesFor(s *Snake, occupied Occupancy, grew bool) Obstacles {
	if grew {
		return occupied
	}
	return vacating{occupied: occupied, cell: s.Tail()}
}
