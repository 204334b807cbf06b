package rules

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSnakeState_Validate(t *testing.T) {
	g := Grid{Width: 10, Height: 10}
	valid := SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}, Direction: Up, Score: 3}
	require.NoError(t, valid.Validate(g))

	tests := []struct {
		Name  string
		State SnakeState
	}{
		{"MissingID", SnakeState{Body: []Cell{{X: 1, Y: 1}}, Direction: Up}},
		{"EmptyBody", SnakeState{ID: "p2", Direction: Up}},
		{"NoDirection", SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}}},
		{"NegativeScore", SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}, Direction: Up, Score: -1}},
		{"OutOfRange", SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}, {X: 10, Y: 1}}, Direction: Up}},
		{"Negative", SnakeState{ID: "p2", Body: []Cell{{X: -1, Y: 1}}, Direction: Up}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			err := test.State.Validate(g)
			require.Error(t, err)
			require.Equal(t, ErrMalformedState, errors.Cause(err))
		})
	}
}

func TestSnakeState_JSON(t *testing.T) {
	s := SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}, Direction: Up, Score: 3}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"p2","body":[{"x":1,"y":1}],"direction":"up","score":3}`, string(data))

	var decoded SnakeState
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, s, decoded)
}

func TestSnakeState_Clone(t *testing.T) {
	s := SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}, Direction: Up}
	c := s.Clone()
	c.Body[0].X = 5
	require.Equal(t, 1, s.Body[0].X)
}

func TestBodyCodec(t *testing.T) {
	body := []Cell{{X: 4, Y: 0}, {X: 3, Y: 0}, {X: 12, Y: 40}}
	encoded := EncodeBody(body)
	require.Equal(t, "4,0\n3,0\n12,40", encoded)

	decoded, err := DecodeBody(encoded)
	require.NoError(t, err)
	require.Equal(t, body, decoded)

	empty, err := DecodeBody("")
	require.NoError(t, err)
	require.Empty(t, empty)

	for _, bad := range []string{"4", "a,1", "1,b", "1,1\n2"} {
		_, err := DecodeBody(bad)
		require.Error(t, err, bad)
		require.Equal(t, ErrMalformedState, errors.Cause(err))
	}
}

func TestCompactState(t *testing.T) {
	s := SnakeState{ID: "p2", Body: []Cell{{X: 2, Y: 1}, {X: 1, Y: 1}}, Direction: Left, Score: 1}
	c := s.Compact()
	require.Equal(t, "2,1\n1,1", c.Body)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"p2","body":"2,1\n1,1","direction":"left","score":1}`, string(data))

	back, err := c.Expand()
	require.NoError(t, err)
	require.Equal(t, s, back)

	c.Body = "2;1"
	_, err = c.Expand()
	require.Equal(t, ErrMalformedState, errors.Cause(err))
}
