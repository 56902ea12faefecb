package json0

import (
	"testing"

	json "github.com/goccy/go-json"

	"github.com/go-playground/assert/v2"
)

func TestOpWireRoundTrip(t *testing.T) {
	ops := []Op{
		{Path: Path{"a"}, Payload: ObjectInsert{Value: int64(1)}},
		{Path: Path{"a"}, Payload: ObjectDelete{Value: int64(1)}},
		{Path: Path{"a"}, Payload: ObjectReplace{New: int64(2), Old: int64(1)}},
		{Path: Path{"l", 0}, Payload: ListInsert{Value: "x"}},
		{Path: Path{"l", 0}, Payload: ListDelete{Value: "x"}},
		{Path: Path{"l", 1}, Payload: ListReplace{New: "y", Old: "x"}},
		{Path: Path{"n"}, Payload: NumberAdd{Value: int64(3)}},
		{Path: Path{"n"}, Payload: NumberAdd{Value: float64(1.5)}},
		{Path: Path{"s", 4}, Payload: StringInsert{Text: "hi"}},
		{Path: Path{"s", 4}, Payload: StringDelete{Text: "hi"}},
		{Path: Path{"s"}, Payload: SubtypeOp{Name: "text0", Ops: []TextOp{{Pos: 1, Insert: "a"}}}},
	}
	for _, op := range ops {
		data, err := json.Marshal(op)
		assert.Equal(t, err, nil)
		var back Op
		err = json.Unmarshal(data, &back)
		assert.Equal(t, err, nil)
		assert.Equal(t, back, op)
	}
}

func TestOpWireShape(t *testing.T) {
	data, err := json.Marshal(Op{Path: Path{"numClicks"}, Payload: ObjectReplace{New: int64(6), Old: int64(5)}})
	assert.Equal(t, err, nil)
	assert.Equal(t, string(data), `{"p":["numClicks"],"oi":6,"od":5}`)
}

// Explicit nulls are legal payload values and distinct from absent keys.
func TestOpUnmarshalNullPayload(t *testing.T) {
	var op Op
	err := json.Unmarshal([]byte(`{"p":["a"],"oi":null}`), &op)
	assert.Equal(t, err, nil)
	assert.Equal(t, op.Payload, ObjectInsert{Value: nil})
}

func TestOpUnmarshalRejectsAmbiguousForms(t *testing.T) {
	var op Op
	err := json.Unmarshal([]byte(`{"p":["a"],"oi":1,"li":2}`), &op)
	assert.Equal(t, errorsIs(err, ErrUnsupportedOperation), true)

	err = json.Unmarshal([]byte(`{"p":["a"]}`), &op)
	assert.Equal(t, errorsIs(err, ErrUnsupportedOperation), true)
}

func TestOpUnmarshalNumericPath(t *testing.T) {
	var op Op
	err := json.Unmarshal([]byte(`{"p":["l",2],"li":"x"}`), &op)
	assert.Equal(t, err, nil)
	assert.Equal(t, op.Path, Path{"l", 2})
}
