// op.go
package json0

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Op is a single JSON0 operation: a path plus exactly one payload variant.
type Op struct {
	Path    Path
	Payload OpPayload
}

// OpPayload is the closed sum of JSON0 payload forms.
type OpPayload interface {
	isOpPayload()
}

// ObjectInsert sets a mapping key that must not yet exist (wire: oi).
type ObjectInsert struct {
	Value any
}

// ObjectDelete removes a mapping key whose current value must equal Value
// (wire: od).
type ObjectDelete struct {
	Value any
}

// ObjectReplace swaps a mapping value; Old must match the pre-image
// (wire: oi+od).
type ObjectReplace struct {
	New any
	Old any
}

// ListInsert inserts into a sequence at the path's terminal index (wire: li).
type ListInsert struct {
	Value any
}

// ListDelete removes a sequence element whose current value must equal Value
// (wire: ld).
type ListDelete struct {
	Value any
}

// ListReplace swaps a sequence element; Old must match the pre-image
// (wire: li+ld).
type ListReplace struct {
	New any
	Old any
}

// NumberAdd adds Value to the number at the path. Value is int64 or float64
// and must match the target's kind (wire: na).
type NumberAdd struct {
	Value any
}

// StringInsert inserts Text into a string at the path's terminal UTF-16
// offset (wire: si).
type StringInsert struct {
	Text string
}

// StringDelete removes Text, which must match the substring at the path's
// terminal UTF-16 offset (wire: sd).
type StringDelete struct {
	Text string
}

// SubtypeOp replaces the value at the path with the result of a registered
// subtype's apply (wire: t+o).
type SubtypeOp struct {
	Name string
	Ops  any
}

func (ObjectInsert) isOpPayload()  {}
func (ObjectDelete) isOpPayload()  {}
func (ObjectReplace) isOpPayload() {}
func (ListInsert) isOpPayload()    {}
func (ListDelete) isOpPayload()    {}
func (ListReplace) isOpPayload()   {}
func (NumberAdd) isOpPayload()     {}
func (StringInsert) isOpPayload()  {}
func (StringDelete) isOpPayload()  {}
func (SubtypeOp) isOpPayload()     {}

// wireOp is the raw wire shape. RawMessage pointers distinguish an absent
// key from an explicit null.
type wireOp struct {
	Path []any            `json:"p"`
	OI   *json.RawMessage `json:"oi,omitempty"`
	OD   *json.RawMessage `json:"od,omitempty"`
	LI   *json.RawMessage `json:"li,omitempty"`
	LD   *json.RawMessage `json:"ld,omitempty"`
	NA   *json.RawMessage `json:"na,omitempty"`
	SI   *string          `json:"si,omitempty"`
	SD   *string          `json:"sd,omitempty"`
	T    string           `json:"t,omitempty"`
	O    *json.RawMessage `json:"o,omitempty"`
}

func rawOf(v any) (*json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(data)
	return &raw, nil
}

// MarshalJSON emits the canonical short-key wire form.
func (op Op) MarshalJSON() ([]byte, error) {
	w := wireOp{Path: op.Path}
	if w.Path == nil {
		w.Path = Path{}
	}
	var err error
	switch p := op.Payload.(type) {
	case ObjectInsert:
		w.OI, err = rawOf(p.Value)
	case ObjectDelete:
		w.OD, err = rawOf(p.Value)
	case ObjectReplace:
		if w.OI, err = rawOf(p.New); err == nil {
			w.OD, err = rawOf(p.Old)
		}
	case ListInsert:
		w.LI, err = rawOf(p.Value)
	case ListDelete:
		w.LD, err = rawOf(p.Value)
	case ListReplace:
		if w.LI, err = rawOf(p.New); err == nil {
			w.LD, err = rawOf(p.Old)
		}
	case NumberAdd:
		w.NA, err = rawOf(p.Value)
	case StringInsert:
		w.SI = &p.Text
	case StringDelete:
		w.SD = &p.Text
	case SubtypeOp:
		w.T = p.Name
		w.O, err = rawOf(p.Ops)
	default:
		return nil, fmt.Errorf("%w: missing payload", ErrUnsupportedOperation)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func decodeRaw(raw *json.RawMessage) (any, error) {
	return Decode([]byte(*raw))
}

// UnmarshalJSON parses the wire form, rejecting ambiguous key combinations.
func (op *Op) UnmarshalJSON(data []byte) error {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	path, err := ParsePath(w.Path)
	if err != nil {
		return err
	}
	op.Path = path

	kinds := 0
	if w.OI != nil || w.OD != nil {
		kinds++
	}
	if w.LI != nil || w.LD != nil {
		kinds++
	}
	if w.NA != nil {
		kinds++
	}
	if w.SI != nil {
		kinds++
	}
	if w.SD != nil {
		kinds++
	}
	if w.T != "" {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("%w: %d payload forms at %v", ErrUnsupportedOperation, kinds, op.Path)
	}

	switch {
	case w.OI != nil && w.OD != nil:
		n, err := decodeRaw(w.OI)
		if err != nil {
			return err
		}
		o, err := decodeRaw(w.OD)
		if err != nil {
			return err
		}
		op.Payload = ObjectReplace{New: n, Old: o}
	case w.OI != nil:
		v, err := decodeRaw(w.OI)
		if err != nil {
			return err
		}
		op.Payload = ObjectInsert{Value: v}
	case w.OD != nil:
		v, err := decodeRaw(w.OD)
		if err != nil {
			return err
		}
		op.Payload = ObjectDelete{Value: v}
	case w.LI != nil && w.LD != nil:
		n, err := decodeRaw(w.LI)
		if err != nil {
			return err
		}
		o, err := decodeRaw(w.LD)
		if err != nil {
			return err
		}
		op.Payload = ListReplace{New: n, Old: o}
	case w.LI != nil:
		v, err := decodeRaw(w.LI)
		if err != nil {
			return err
		}
		op.Payload = ListInsert{Value: v}
	case w.LD != nil:
		v, err := decodeRaw(w.LD)
		if err != nil {
			return err
		}
		op.Payload = ListDelete{Value: v}
	case w.NA != nil:
		v, err := decodeRaw(w.NA)
		if err != nil {
			return err
		}
		switch v.(type) {
		case int64, float64:
		default:
			return fmt.Errorf("%w: na operand %T", ErrInvalidJSONData, v)
		}
		op.Payload = NumberAdd{Value: v}
	case w.SI != nil:
		op.Payload = StringInsert{Text: *w.SI}
	case w.SD != nil:
		op.Payload = StringDelete{Text: *w.SD}
	case w.T != "":
		var inner any
		if w.O != nil {
			inner, err = decodeSubtypeOps(w.T, *w.O)
			if err != nil {
				return err
			}
		}
		op.Payload = SubtypeOp{Name: w.T, Ops: inner}
	}
	return nil
}

// decodeSubtypeOps gives a registered subtype a chance to decode its inner
// operation list into its native form; unknown subtypes keep the raw tree so
// Apply can report ErrUnsupportedSubtype with full context.
func decodeSubtypeOps(name string, raw json.RawMessage) (any, error) {
	if st, ok := lookupSubtype(name); ok {
		return st.DecodeOps(raw)
	}
	return Decode(raw)
}
