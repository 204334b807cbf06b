package filestore

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gridsnake/engine/rules"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	text   string
	err    error
	closed bool
}

func (w *mockWriter) WriteString(s string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	w.text += s
	return len(s), nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func basicSnake() rules.SnakeState {
	return rules.SnakeState{
		ID:        "snake1",
		Body:      []rules.Cell{{X: 4, Y: 4}, {X: 4, Y: 3}},
		Direction: rules.Down,
		Score:     2,
	}
}

func TestWritePut(t *testing.T) {
	w := &mockWriter{}
	err := writePut(w, basicSnake())
	require.NoError(t, err)
	require.Equal(t, `{"op":"put","id":"snake1","snake":{"id":"snake1","body":"4,4\n4,3","direction":"down","score":2}}`+"\n", w.text)

	e := entry{}
	require.NoError(t, json.Unmarshal([]byte(w.text), &e))
	s, err := e.Snake.Expand()
	require.NoError(t, err)
	require.Equal(t, basicSnake(), s)
}

func TestWriteRemove(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, writeRemove(w, "snake1"))
	require.Equal(t, `{"op":"remove","id":"snake1"}`+"\n", w.text)
}

func TestWriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("fail")}
	require.NotNil(t, writePut(w, basicSnake()))
	require.NotNil(t, writeRemove(w, "snake1"))
}
