// value.go
//
// Package json0 implements the JSON0 operational transform type, with the
// TEXT0 string subtype embedded at string leaves.
//
// JSON values are the native Go sum: nil, bool, int64, float64, string,
// []any and map[string]any. Decoding preserves the numeric kind: a lexically
// integral number decodes to int64, everything else to float64. The
// "undefined" lookup sentinel is expressed as the second return of Get; it is
// never serialized.
//
// String offsets (si/sd and TEXT0 positions) are UTF-16 code units, matching
// JavaScript-origin ShareDB peers. Offsets that land inside a surrogate pair
// are rejected as out of range.
package json0

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Path addresses a subtree. Tokens are string (mapping key) or int
// (sequence index).
type Path []any

func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, tok := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%v", tok)
	}
	b.WriteByte(']')
	return b.String()
}

// ParsePath normalizes a decoded JSON array into a Path. Numeric tokens
// arrive as int64 or float64 from the decoder and become int.
func ParsePath(raw []any) (Path, error) {
	p := make(Path, len(raw))
	for i, tok := range raw {
		switch v := tok.(type) {
		case string:
			p[i] = v
		case int:
			p[i] = v
		case int64:
			p[i] = int(v)
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("%w: non-integer path token %v", ErrInvalidPath, v)
			}
			p[i] = int(v)
		default:
			return nil, fmt.Errorf("%w: path token %T", ErrInvalidPath, tok)
		}
	}
	return p, nil
}

// Decode parses a JSON byte stream into a value, preserving numeric kinds.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v)
}

// Encode serializes a value to JSON.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Normalize converts an arbitrary Go value into the canonical tree form by
// round-tripping it through JSON. Used when callers hand entity structs or
// literals to the proxy.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// normalize rewrites decoder output in place: json.Number becomes int64 or
// float64 depending on its lexical form.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			n, err := t.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: number %q", ErrInvalidJSONData, s)
			}
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrInvalidJSONData, s)
		}
		return f, nil
	case []any:
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	case map[string]any:
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

// Get reads the child addressed by path. A missing terminal returns
// ok == false (the undefined sentinel); a missing or wrong-kind parent
// returns ErrInvalidPath.
func Get(root any, path Path) (any, bool, error) {
	cur := root
	for i, tok := range path {
		switch parent := cur.(type) {
		case map[string]any:
			key, ok := tok.(string)
			if !ok {
				return nil, false, fmt.Errorf("%w: non-string key %v at %v", ErrInvalidPath, tok, path[:i+1])
			}
			child, present := parent[key]
			if !present {
				if i == len(path)-1 {
					return nil, false, nil
				}
				return nil, false, fmt.Errorf("%w: missing parent at %v", ErrInvalidPath, path[:i+1])
			}
			cur = child
		case []any:
			idx, ok := tok.(int)
			if !ok {
				return nil, false, fmt.Errorf("%w: non-integer index %v at %v", ErrInvalidPath, tok, path[:i+1])
			}
			if idx < 0 || idx >= len(parent) {
				if i == len(path)-1 && idx >= 0 {
					return nil, false, nil
				}
				return nil, false, fmt.Errorf("%w: index %d at %v", ErrInvalidPath, idx, path[:i+1])
			}
			cur = parent[idx]
		default:
			return nil, false, fmt.Errorf("%w: %T is not a container at %v", ErrInvalidPath, cur, path[:i])
		}
	}
	return cur, true, nil
}

// Set writes v at path, replacing or creating the terminal element in its
// parent container. Parents must already exist and be of the right kind.
// Setting a sequence index equal to the length appends. The (possibly new)
// root is returned.
func Set(root any, path Path, v any) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return updateParent(root, path[:len(path)-1], func(parent any) (any, error) {
		switch p := parent.(type) {
		case map[string]any:
			key, ok := path[len(path)-1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key at %v", ErrInvalidPath, path)
			}
			p[key] = v
			return p, nil
		case []any:
			idx, ok := path[len(path)-1].(int)
			if !ok {
				return nil, fmt.Errorf("%w: non-integer index at %v", ErrInvalidPath, path)
			}
			if idx < 0 || idx > len(p) {
				return nil, fmt.Errorf("%w: index %d at %v", ErrInvalidPath, idx, path)
			}
			if idx == len(p) {
				return append(p, v), nil
			}
			p[idx] = v
			return p, nil
		default:
			return nil, fmt.Errorf("%w: %T is not a container at %v", ErrInvalidPath, parent, path[:len(path)-1])
		}
	})
}

// updateParent navigates to the container addressed by parentPath, applies
// fn to it and writes the (possibly reallocated) result back along the path.
func updateParent(root any, parentPath Path, fn func(parent any) (any, error)) (any, error) {
	if len(parentPath) == 0 {
		return fn(root)
	}
	tok := parentPath[0]
	switch p := root.(type) {
	case map[string]any:
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key %v", ErrInvalidPath, tok)
		}
		child, present := p[key]
		if !present {
			return nil, fmt.Errorf("%w: missing parent %q", ErrInvalidPath, key)
		}
		updated, err := updateParent(child, parentPath[1:], fn)
		if err != nil {
			return nil, err
		}
		p[key] = updated
		return p, nil
	case []any:
		idx, ok := tok.(int)
		if !ok {
			return nil, fmt.Errorf("%w: non-integer index %v", ErrInvalidPath, tok)
		}
		if idx < 0 || idx >= len(p) {
			return nil, fmt.Errorf("%w: index %d", ErrInvalidPath, idx)
		}
		updated, err := updateParent(p[idx], parentPath[1:], fn)
		if err != nil {
			return nil, err
		}
		p[idx] = updated
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a container", ErrInvalidPath, root)
	}
}

// Clone deep-copies a value.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports structural equality. Numeric kind matters: int64(1) and
// float64(1) are not equal.
func Equal(a, b any) bool {
	switch ta := a.(type) {
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, present := tb[k]
			if !present || !Equal(va, vb) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// utf16RuneLen reports the number of UTF-16 code units needed to encode r,
// or -1 if r cannot be encoded (mirrors unicode/utf16.RuneLen, which is not
// available on the Go version this module is built with).
func utf16RuneLen(r rune) int {
	switch {
	case r < 0:
		return -1
	case 0 <= r && r < 0xd800:
		return 1
	case 0xe000 <= r && r < 0x10000:
		return 1
	case 0x10000 <= r && r <= 0x10ffff:
		return 2
	default:
		return -1
	}
}

// utf16Length returns the length of s in UTF-16 code units.
func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16RuneLen(r)
	}
	return n
}

// byteOffset converts a UTF-16 code-unit offset into a byte offset in s.
// The second return is false when the offset is negative, past the end, or
// inside a surrogate pair.
func byteOffset(s string, off16 int) (int, bool) {
	if off16 < 0 {
		return 0, false
	}
	u := 0
	for i, r := range s {
		if u == off16 {
			return i, true
		}
		if u > off16 {
			return 0, false
		}
		u += utf16RuneLen(r)
	}
	if u == off16 {
		return len(s), true
	}
	return 0, false
}
