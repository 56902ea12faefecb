// text0.go
package json0

import (
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
)

// Subtype is an embedded OT type dispatched through t/o operations.
type Subtype interface {
	// DecodeOps parses the raw o payload into the subtype's native op form.
	DecodeOps(raw json.RawMessage) (any, error)
	// Apply applies decoded ops to the value at the operation's path.
	Apply(ops any, value any) (any, error)
	// Invert returns ops that undo the given ops.
	Invert(ops any) (any, error)
}

var (
	subtypeMu sync.RWMutex
	subtypes  = map[string]Subtype{
		"text0": text0Type{},
	}
)

// RegisterSubtype installs a subtype under its wire name.
func RegisterSubtype(name string, st Subtype) {
	subtypeMu.Lock()
	defer subtypeMu.Unlock()
	subtypes[name] = st
}

func lookupSubtype(name string) (Subtype, bool) {
	subtypeMu.RLock()
	defer subtypeMu.RUnlock()
	st, ok := subtypes[name]
	return st, ok
}

// TextOp is a single TEXT0 operation: an insert or delete at a UTF-16
// offset in a plain string.
type TextOp struct {
	Pos    int
	Insert string
	Delete string
}

// textWireOp is the wire shape {p:[offset], i?, d?}.
type textWireOp struct {
	P []int   `json:"p"`
	I *string `json:"i,omitempty"`
	D *string `json:"d,omitempty"`
}

func (op TextOp) MarshalJSON() ([]byte, error) {
	w := textWireOp{P: []int{op.Pos}}
	if op.Insert != "" {
		w.I = &op.Insert
	}
	if op.Delete != "" {
		w.D = &op.Delete
	}
	return json.Marshal(w)
}

func (op *TextOp) UnmarshalJSON(data []byte) error {
	var w textWireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.P) != 1 {
		return fmt.Errorf("%w: text0 op needs a single offset", ErrInvalidPath)
	}
	op.Pos = w.P[0]
	if w.I != nil {
		op.Insert = *w.I
	}
	if w.D != nil {
		op.Delete = *w.D
	}
	return nil
}

// ApplyText applies TEXT0 ops to s in list order.
func ApplyText(ops []TextOp, s string) (string, error) {
	for i, op := range ops {
		var err error
		s, err = applyTextOne(op, s)
		if err != nil {
			return "", fmt.Errorf("text0 op %d: %w", i, err)
		}
	}
	return s, nil
}

func applyTextOne(op TextOp, s string) (string, error) {
	if op.Insert != "" {
		b, ok := byteOffset(s, op.Pos)
		if !ok {
			return "", fmt.Errorf("%w: insert at %d in string of length %d", ErrIndexOutOfRange, op.Pos, utf16Length(s))
		}
		return s[:b] + op.Insert + s[b:], nil
	}
	if op.Delete != "" {
		start, ok := byteOffset(s, op.Pos)
		if !ok {
			return "", fmt.Errorf("%w: delete at %d in string of length %d", ErrIndexOutOfRange, op.Pos, utf16Length(s))
		}
		end, ok := byteOffset(s, op.Pos+utf16Length(op.Delete))
		if !ok {
			return "", fmt.Errorf("%w: delete range %d+%d", ErrIndexOutOfRange, op.Pos, utf16Length(op.Delete))
		}
		if s[start:end] != op.Delete {
			return "", fmt.Errorf("%w: delete at %d", ErrOldDataMismatch, op.Pos)
		}
		return s[:start] + s[end:], nil
	}
	return s, nil
}

// InvertText swaps inserts and deletes.
func InvertText(ops []TextOp) []TextOp {
	out := make([]TextOp, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		out = append(out, TextOp{Pos: op.Pos, Insert: op.Delete, Delete: op.Insert})
	}
	return out
}

// text0Type adapts the TEXT0 functions to the Subtype interface.
type text0Type struct{}

func (text0Type) DecodeOps(raw json.RawMessage) (any, error) {
	var ops []TextOp
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (text0Type) Apply(ops any, value any) (any, error) {
	list, ok := ops.([]TextOp)
	if !ok {
		return nil, fmt.Errorf("%w: text0 ops %T", ErrInvalidJSONData, ops)
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: text0 target %T", ErrInvalidJSONData, value)
	}
	return ApplyText(list, s)
}

func (text0Type) Invert(ops any) (any, error) {
	list, ok := ops.([]TextOp)
	if !ok {
		return nil, fmt.Errorf("%w: text0 ops %T", ErrInvalidJSONData, ops)
	}
	return InvertText(list), nil
}
