package rules

// Snake is an ordered list of body cells, head first.
//
// direction is the heading requested for the next move while heading is the
// one the last move used. Reversal is judged against heading so a burst of
// key presses between two ticks can never turn the snake back onto its neck.
type Snake struct {
	id        string
	body      []Cell
	direction Direction
	heading   Direction
	score     int
}

// NewSnake creates a snake with a copy of body.
func NewSnake(id string, body []Cell, direction Direction) *Snake {
	s := &Snake{id: id}
	s.Reset(body, direction, 0)
	return s
}

// ID is the stable player identifier.
func (s *Snake) ID() string { return s.id }

// Direction is the heading the next move will use.
func (s *Snake) Direction() Direction { return s.direction }

// Score is the amount of food eaten since the last reset.
func (s *Snake) Score() int { return s.score }

// Len is the number of body segments.
func (s *Snake) Len() int { return len(s.body) }

// Body returns a copy of the body cells, head first.
func (s *Snake) Body() []Cell {
	return cloneCells(s.body)
}

// Head returns the first cell in the body.
func (s *Snake) Head() Cell {
	s.mustHaveBody()
	return s.body[0]
}

// Tail returns the last cell in the body.
func (s *Snake) Tail() Cell {
	s.mustHaveBody()
	return s.body[len(s.body)-1]
}

// SetDirection changes the heading used by the next move. Turning back onto
// the current heading is ignored and reported as false.
func (s *Snake) SetDirection(d Direction) bool {
	if !d.Valid() || d == s.heading.Opposite() {
		return false
	}
	s.direction = d
	return true
}

// PeekNextHead returns where the head will be after the next move without
// moving the snake.
func (s *Snake) PeekNextHead() Cell {
	return s.direction.Step(s.Head())
}

// Advance puts head at the front of the body. When the snake did not grow the
// tail is dropped so the length stays the same, otherwise the tail is kept and
// the score goes up by one.
func (s *Snake) Advance(head Cell, grew bool) {
	s.mustHaveBody()
	if grew {
		s.body = append([]Cell{head}, s.body...)
		s.score++
	} else {
		copy(s.body[1:], s.body[:len(s.body)-1])
		s.body[0] = head
	}
	s.heading = s.direction
}

// Reset replaces the body, heading and score wholesale.
func (s *Snake) Reset(body []Cell, direction Direction, score int) {
	if len(body) == 0 {
		panic("rules: snake reset with an empty body")
	}
	s.body = cloneCells(body)
	s.direction = direction
	s.heading = direction
	s.score = score
}

// State returns a copy of the snake suitable for publishing.
func (s *Snake) State() SnakeState {
	return SnakeState{
		ID:        s.id,
		Body:      s.Body(),
		Direction: s.direction,
		Score:     s.score,
	}
}

func (s *Snake) mustHaveBody() {
	if len(s.body) == 0 {
		panic("rules: snake " + s.id + " has an empty body")
	}
}

func cloneCells(cells []Cell) []Cell {
	out := make([]Cell, len(cells))
	copy(out, cells)
	return out
}

// StartingBody builds a horizontal body of the given length along the top
// row, head on the right: [(n-1,0) ... (0,0)].
func StartingBody(length int) []Cell {
	if length < 1 {
		length = 1
	}
	body := make([]Cell, 0, length)
	for x := length - 1; x >= 0; x-- {
		body = append(body, Cell{X: x, Y: 0})
	}
	return body
}
