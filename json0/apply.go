// apply.go
package json0

import (
	"fmt"
	"strings"
)

// Apply applies ops to value strictly in list order and returns the new
// value. The input value is never mutated: operations run against a deep
// clone, so a failed list leaves the caller's value intact.
func Apply(ops []Op, value any) (any, error) {
	out := Clone(value)
	for i, op := range ops {
		var err error
		out, err = applyOne(op, out)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}
	return out, nil
}

func applyOne(op Op, root any) (any, error) {
	if len(op.Path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parentPath := op.Path[:len(op.Path)-1]
	last := op.Path[len(op.Path)-1]

	switch p := op.Payload.(type) {
	case ObjectInsert:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			m, key, err := mapSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			if _, present := m[key]; present {
				return nil, fmt.Errorf("%w: oi at existing key %q", ErrOldDataMismatch, key)
			}
			m[key] = p.Value
			return m, nil
		})
	case ObjectDelete:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			m, key, err := mapSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			cur, present := m[key]
			if !present || !Equal(cur, p.Value) {
				return nil, fmt.Errorf("%w: od at %v", ErrOldDataMismatch, op.Path)
			}
			delete(m, key)
			return m, nil
		})
	case ObjectReplace:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			m, key, err := mapSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			cur, present := m[key]
			if !present || !Equal(cur, p.Old) {
				return nil, fmt.Errorf("%w: od at %v", ErrOldDataMismatch, op.Path)
			}
			m[key] = p.New
			return m, nil
		})
	case ListInsert:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			s, idx, err := listSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			if idx > len(s) {
				return nil, fmt.Errorf("%w: li index %d past length %d", ErrInvalidPath, idx, len(s))
			}
			s = append(s, nil)
			copy(s[idx+1:], s[idx:])
			s[idx] = p.Value
			return s, nil
		})
	case ListDelete:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			s, idx, err := listSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			if idx >= len(s) {
				return nil, fmt.Errorf("%w: ld index %d past length %d", ErrInvalidPath, idx, len(s))
			}
			if !Equal(s[idx], p.Value) {
				return nil, fmt.Errorf("%w: ld at %v", ErrOldDataMismatch, op.Path)
			}
			return append(s[:idx], s[idx+1:]...), nil
		})
	case ListReplace:
		return updateParent(root, parentPath, func(parent any) (any, error) {
			s, idx, err := listSlot(parent, last, op.Path)
			if err != nil {
				return nil, err
			}
			if idx >= len(s) {
				return nil, fmt.Errorf("%w: ld index %d past length %d", ErrInvalidPath, idx, len(s))
			}
			if !Equal(s[idx], p.Old) {
				return nil, fmt.Errorf("%w: ld at %v", ErrOldDataMismatch, op.Path)
			}
			s[idx] = p.New
			return s, nil
		})
	case NumberAdd:
		return updateValue(root, op.Path, func(cur any) (any, error) {
			switch n := cur.(type) {
			case int64:
				d, ok := p.Value.(int64)
				if !ok {
					return nil, fmt.Errorf("%w: na %T onto int at %v", ErrInvalidJSONData, p.Value, op.Path)
				}
				return n + d, nil
			case float64:
				d, ok := p.Value.(float64)
				if !ok {
					return nil, fmt.Errorf("%w: na %T onto float at %v", ErrInvalidJSONData, p.Value, op.Path)
				}
				return n + d, nil
			default:
				return nil, fmt.Errorf("%w: na target %T at %v", ErrInvalidJSONData, cur, op.Path)
			}
		})
	case StringInsert:
		off, ok := last.(int)
		if !ok {
			return nil, fmt.Errorf("%w: si offset %v", ErrInvalidPath, last)
		}
		return updateValue(root, parentPath, func(cur any) (any, error) {
			s, ok := cur.(string)
			if !ok {
				return nil, fmt.Errorf("%w: si target %T at %v", ErrInvalidPath, cur, parentPath)
			}
			b, ok := byteOffset(s, off)
			if !ok {
				return nil, fmt.Errorf("%w: si offset %d in string of length %d", ErrIndexOutOfRange, off, utf16Length(s))
			}
			return s[:b] + p.Text + s[b:], nil
		})
	case StringDelete:
		off, ok := last.(int)
		if !ok {
			return nil, fmt.Errorf("%w: sd offset %v", ErrInvalidPath, last)
		}
		return updateValue(root, parentPath, func(cur any) (any, error) {
			s, ok := cur.(string)
			if !ok {
				return nil, fmt.Errorf("%w: sd target %T at %v", ErrInvalidPath, cur, parentPath)
			}
			start, ok := byteOffset(s, off)
			if !ok {
				return nil, fmt.Errorf("%w: sd offset %d in string of length %d", ErrIndexOutOfRange, off, utf16Length(s))
			}
			end, ok := byteOffset(s, off+utf16Length(p.Text))
			if !ok {
				return nil, fmt.Errorf("%w: sd range %d+%d in string of length %d", ErrIndexOutOfRange, off, utf16Length(p.Text), utf16Length(s))
			}
			if !strings.HasPrefix(s[start:], p.Text) {
				return nil, fmt.Errorf("%w: sd at %v", ErrOldDataMismatch, op.Path)
			}
			return s[:start] + s[end:], nil
		})
	case SubtypeOp:
		st, ok := lookupSubtype(p.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedSubtype, p.Name)
		}
		return updateValue(root, op.Path, func(cur any) (any, error) {
			return st.Apply(p.Ops, cur)
		})
	default:
		return nil, fmt.Errorf("%w at %v", ErrUnsupportedOperation, op.Path)
	}
}

// updateValue replaces the existing value at path with fn's result. Unlike
// Set it requires the terminal to exist.
func updateValue(root any, path Path, fn func(cur any) (any, error)) (any, error) {
	if len(path) == 0 {
		return fn(root)
	}
	return updateParent(root, path[:len(path)-1], func(parent any) (any, error) {
		switch p := parent.(type) {
		case map[string]any:
			key, ok := path[len(path)-1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key at %v", ErrInvalidPath, path)
			}
			cur, present := p[key]
			if !present {
				return nil, fmt.Errorf("%w: missing value at %v", ErrInvalidPath, path)
			}
			next, err := fn(cur)
			if err != nil {
				return nil, err
			}
			p[key] = next
			return p, nil
		case []any:
			idx, ok := path[len(path)-1].(int)
			if !ok {
				return nil, fmt.Errorf("%w: non-integer index at %v", ErrInvalidPath, path)
			}
			if idx < 0 || idx >= len(p) {
				return nil, fmt.Errorf("%w: index %d at %v", ErrInvalidPath, idx, path)
			}
			next, err := fn(p[idx])
			if err != nil {
				return nil, err
			}
			p[idx] = next
			return p, nil
		default:
			return nil, fmt.Errorf("%w: %T is not a container at %v", ErrInvalidPath, parent, path[:len(path)-1])
		}
	})
}

func mapSlot(parent any, last any, path Path) (map[string]any, string, error) {
	m, ok := parent.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: %T is not a mapping at %v", ErrInvalidPath, parent, path)
	}
	key, ok := last.(string)
	if !ok {
		return nil, "", fmt.Errorf("%w: non-string key %v at %v", ErrInvalidPath, last, path)
	}
	return m, key, nil
}

func listSlot(parent any, last any, path Path) ([]any, int, error) {
	s, ok := parent.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %T is not a sequence at %v", ErrInvalidPath, parent, path)
	}
	idx, ok := last.(int)
	if !ok || idx < 0 {
		return nil, 0, fmt.Errorf("%w: index %v at %v", ErrInvalidPath, last, path)
	}
	return s, idx, nil
}
