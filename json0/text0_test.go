package json0

import (
	"testing"

	json "github.com/goccy/go-json"

	"github.com/go-playground/assert/v2"
)

func TestApplyText(t *testing.T) {
	s, err := ApplyText([]TextOp{
		{Pos: 0, Insert: "foo"},
		{Pos: 3, Insert: "bar"},
		{Pos: 1, Delete: "oo"},
	}, "")
	assert.Equal(t, err, nil)
	assert.Equal(t, s, "fbar")
}

func TestApplyTextErrors(t *testing.T) {
	_, err := ApplyText([]TextOp{{Pos: 4, Insert: "x"}}, "abc")
	assert.Equal(t, errorsIs(err, ErrIndexOutOfRange), true)

	_, err = ApplyText([]TextOp{{Pos: 0, Delete: "xyz"}}, "abc")
	assert.Equal(t, errorsIs(err, ErrOldDataMismatch), true)
}

func TestInvertText(t *testing.T) {
	ops := []TextOp{
		{Pos: 0, Insert: "ab"},
		{Pos: 2, Delete: "cd"},
	}
	s, err := ApplyText(ops, "cdef")
	assert.Equal(t, err, nil)
	assert.Equal(t, s, "abef")

	back, err := ApplyText(InvertText(ops), s)
	assert.Equal(t, err, nil)
	assert.Equal(t, back, "cdef")
}

func TestTextOpWireRoundTrip(t *testing.T) {
	ops := []TextOp{
		{Pos: 2, Insert: "hi"},
		{Pos: 0, Delete: "x"},
	}
	data, err := json.Marshal(ops)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(data), `[{"p":[2],"i":"hi"},{"p":[0],"d":"x"}]`)

	var back []TextOp
	err = json.Unmarshal(data, &back)
	assert.Equal(t, err, nil)
	assert.Equal(t, back, ops)
}
