package json0

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

// Every op list that applies cleanly must round-trip through its inverse.
func TestInvertRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ops   []Op
	}{
		{
			name:  "object ops",
			value: `{"a":1,"b":2}`,
			ops: []Op{
				{Path: Path{"c"}, Payload: ObjectInsert{Value: int64(3)}},
				{Path: Path{"a"}, Payload: ObjectReplace{New: "x", Old: int64(1)}},
				{Path: Path{"b"}, Payload: ObjectDelete{Value: int64(2)}},
			},
		},
		{
			name:  "list ops",
			value: `{"l":[1,2,3]}`,
			ops: []Op{
				{Path: Path{"l", 1}, Payload: ListDelete{Value: int64(2)}},
				{Path: Path{"l", 0}, Payload: ListReplace{New: int64(9), Old: int64(1)}},
				{Path: Path{"l", 2}, Payload: ListInsert{Value: int64(4)}},
			},
		},
		{
			name:  "numbers and strings",
			value: `{"n":10,"f":1.5,"s":"hello"}`,
			ops: []Op{
				{Path: Path{"n"}, Payload: NumberAdd{Value: int64(-4)}},
				{Path: Path{"f"}, Payload: NumberAdd{Value: float64(2)}},
				{Path: Path{"s", 5}, Payload: StringInsert{Text: "!"}},
				{Path: Path{"s", 0}, Payload: StringDelete{Text: "he"}},
			},
		},
		{
			name:  "subtype",
			value: `{"s":"abc"}`,
			ops: []Op{{
				Path: Path{"s"},
				Payload: SubtypeOp{Name: "text0", Ops: []TextOp{
					{Pos: 0, Delete: "a"},
					{Pos: 2, Insert: "xyz"},
				}},
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := decode(t, tc.value)
			applied, err := Apply(tc.ops, v)
			assert.Equal(t, err, nil)

			inv, err := Invert(tc.ops)
			assert.Equal(t, err, nil)
			back, err := Apply(inv, applied)
			assert.Equal(t, err, nil)
			assert.Equal(t, Equal(back, v), true)
		})
	}
}

func TestInvertTwiceIsIdentity(t *testing.T) {
	ops := []Op{
		{Path: Path{"a"}, Payload: ObjectInsert{Value: int64(1)}},
		{Path: Path{"l", 0}, Payload: ListDelete{Value: "x"}},
		{Path: Path{"n"}, Payload: NumberAdd{Value: int64(7)}},
		{Path: Path{"s", 2}, Payload: StringDelete{Text: "ab"}},
	}
	inv, err := Invert(ops)
	assert.Equal(t, err, nil)
	twice, err := Invert(inv)
	assert.Equal(t, err, nil)
	assert.Equal(t, twice, ops)
}

func TestInvertNegatesNumericAdds(t *testing.T) {
	inv, err := Invert([]Op{{Path: Path{"n"}, Payload: NumberAdd{Value: int64(5)}}})
	assert.Equal(t, err, nil)
	assert.Equal(t, inv[0].Payload, NumberAdd{Value: int64(-5)})

	inv, err = Invert([]Op{{Path: Path{"n"}, Payload: NumberAdd{Value: float64(2.5)}}})
	assert.Equal(t, err, nil)
	assert.Equal(t, inv[0].Payload, NumberAdd{Value: float64(-2.5)})
}

func TestAppendMergesAdjacentAdds(t *testing.T) {
	list := []Op{{Path: Path{"n"}, Payload: NumberAdd{Value: int64(1)}}}
	list = Append(Op{Path: Path{"n"}, Payload: NumberAdd{Value: int64(2)}}, list)
	assert.Equal(t, len(list), 1)
	assert.Equal(t, list[0].Payload, NumberAdd{Value: int64(3)})

	// Different paths stay separate.
	list = Append(Op{Path: Path{"m"}, Payload: NumberAdd{Value: int64(2)}}, list)
	assert.Equal(t, len(list), 2)

	// Mixed numeric kinds stay separate.
	list = Append(Op{Path: Path{"m"}, Payload: NumberAdd{Value: float64(1)}}, list)
	assert.Equal(t, len(list), 3)
}
