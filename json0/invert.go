// invert.go
package json0

import "fmt"

// Invert returns ops that, applied to the post-state of the input list,
// restore the pre-state. The result reverses the list order and rewrites
// each op: oi and od swap, li and ld swap, si and sd swap, na negates,
// subtype ops delegate to the subtype's invert. Paths pass through.
func Invert(ops []Op) ([]Op, error) {
	out := make([]Op, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		inv, err := invertOne(ops[i])
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func invertOne(op Op) (Op, error) {
	switch p := op.Payload.(type) {
	case ObjectInsert:
		return Op{Path: op.Path, Payload: ObjectDelete{Value: p.Value}}, nil
	case ObjectDelete:
		return Op{Path: op.Path, Payload: ObjectInsert{Value: p.Value}}, nil
	case ObjectReplace:
		return Op{Path: op.Path, Payload: ObjectReplace{New: p.Old, Old: p.New}}, nil
	case ListInsert:
		return Op{Path: op.Path, Payload: ListDelete{Value: p.Value}}, nil
	case ListDelete:
		return Op{Path: op.Path, Payload: ListInsert{Value: p.Value}}, nil
	case ListReplace:
		return Op{Path: op.Path, Payload: ListReplace{New: p.Old, Old: p.New}}, nil
	case NumberAdd:
		switch n := p.Value.(type) {
		case int64:
			return Op{Path: op.Path, Payload: NumberAdd{Value: -n}}, nil
		case float64:
			return Op{Path: op.Path, Payload: NumberAdd{Value: -n}}, nil
		default:
			return Op{}, fmt.Errorf("%w: na operand %T", ErrInvalidJSONData, p.Value)
		}
	case StringInsert:
		return Op{Path: op.Path, Payload: StringDelete{Text: p.Text}}, nil
	case StringDelete:
		return Op{Path: op.Path, Payload: StringInsert{Text: p.Text}}, nil
	case SubtypeOp:
		st, ok := lookupSubtype(p.Name)
		if !ok {
			return Op{}, fmt.Errorf("%w: %q", ErrUnsupportedSubtype, p.Name)
		}
		inner, err := st.Invert(p.Ops)
		if err != nil {
			return Op{}, err
		}
		return Op{Path: op.Path, Payload: SubtypeOp{Name: p.Name, Ops: inner}}, nil
	default:
		return Op{}, fmt.Errorf("%w at %v", ErrUnsupportedOperation, op.Path)
	}
}

// Append extends a pending op list with op such that applying the result is
// equivalent to applying the list then op. Adjacent numeric adds on the same
// path merge; everything else concatenates.
func Append(op Op, list []Op) []Op {
	if len(list) > 0 {
		last := list[len(list)-1]
		if la, ok := last.Payload.(NumberAdd); ok {
			if na, ok2 := op.Payload.(NumberAdd); ok2 && pathEqual(last.Path, op.Path) {
				if merged, ok3 := addSameKind(la.Value, na.Value); ok3 {
					list[len(list)-1] = Op{Path: last.Path, Payload: NumberAdd{Value: merged}}
					return list
				}
			}
		}
	}
	return append(list, op)
}

func pathEqual(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func addSameKind(a, b any) (any, bool) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return x + y, true
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x + y, true
		}
	}
	return nil, false
}
