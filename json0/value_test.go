package json0

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
)

func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

func TestDecodePreservesNumericKind(t *testing.T) {
	v, err := Decode([]byte(`{"i":5,"f":5.0,"e":1e2,"neg":-3}`))
	assert.Equal(t, err, nil)
	m := v.(map[string]any)
	assert.Equal(t, m["i"], int64(5))
	assert.Equal(t, m["f"], float64(5))
	assert.Equal(t, m["e"], float64(100))
	assert.Equal(t, m["neg"], int64(-3))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []byte(`{"a":[1,2.5,"x",null,true],"b":{"c":"d"}}`)
	v, err := Decode(in)
	assert.Equal(t, err, nil)
	out, err := Encode(v)
	assert.Equal(t, err, nil)
	v2, err := Decode(out)
	assert.Equal(t, err, nil)
	assert.Equal(t, Equal(v, v2), true)
}

func TestGet(t *testing.T) {
	v, _ := Decode([]byte(`{"a":{"b":[10,20,30]}}`))

	got, ok, err := Get(v, Path{"a", "b", 1})
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)
	assert.Equal(t, got, int64(20))

	// Missing terminal is the undefined sentinel, not an error.
	_, ok, err = Get(v, Path{"a", "missing"})
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)

	_, ok, err = Get(v, Path{"a", "b", 3})
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, false)

	// Missing or wrong-kind parents are invalid paths.
	_, _, err = Get(v, Path{"missing", "b"})
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)
	_, _, err = Get(v, Path{"a", "b", 0, "x"})
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)
	_, _, err = Get(v, Path{"a", 0})
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)
}

func TestSet(t *testing.T) {
	v, _ := Decode([]byte(`{"a":{"b":[10]}}`))

	v, err := Set(v, Path{"a", "c"}, int64(1))
	assert.Equal(t, err, nil)
	got, ok, _ := Get(v, Path{"a", "c"})
	assert.Equal(t, ok, true)
	assert.Equal(t, got, int64(1))

	// Index equal to the length appends.
	v, err = Set(v, Path{"a", "b", 1}, int64(20))
	assert.Equal(t, err, nil)
	got, _, _ = Get(v, Path{"a", "b"})
	assert.Equal(t, got, []any{int64(10), int64(20)})

	// Parents must already exist.
	_, err = Set(v, Path{"x", "y"}, int64(1))
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)

	_, err = Set(v, Path{}, int64(1))
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)
}

func TestEqualIsKindSensitive(t *testing.T) {
	assert.Equal(t, Equal(int64(1), float64(1)), false)
	assert.Equal(t, Equal(int64(1), int64(1)), true)
	a, _ := Decode([]byte(`{"x":[1,{"y":null}]}`))
	b, _ := Decode([]byte(`{"x":[1,{"y":null}]}`))
	assert.Equal(t, Equal(a, b), true)
	c, _ := Decode([]byte(`{"x":[1,{"y":0}]}`))
	assert.Equal(t, Equal(a, c), false)
}

func TestCloneIsDeep(t *testing.T) {
	v, _ := Decode([]byte(`{"a":[1,2]}`))
	cl := Clone(v)
	cl.(map[string]any)["a"].([]any)[0] = int64(99)
	got, _, _ := Get(v, Path{"a", 0})
	assert.Equal(t, got, int64(1))
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath([]any{"a", float64(2), int64(3)})
	assert.Equal(t, err, nil)
	assert.Equal(t, p, Path{"a", 2, 3})

	_, err = ParsePath([]any{float64(1.5)})
	assert.Equal(t, errorsIs(err, ErrInvalidPath), true)
}
