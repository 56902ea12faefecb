// proxy.go
package sharekit

import (
	"fmt"

	"github.com/LSX-s-Software/share-kit/json0"
)

// Transaction accumulates the operations produced by one Change call. It
// keeps a working copy of the snapshot so each operation is validated
// against the state left by the ones before it; an operation whose
// preconditions fail is never enqueued.
type Transaction struct {
	value any
	ops   []json0.Op
}

func newTransaction(snapshot any) *Transaction {
	return &Transaction{value: json0.Clone(snapshot)}
}

// push validates op against the working value and records it.
func (tx *Transaction) push(op json0.Op) error {
	next, err := json0.Apply([]json0.Op{op}, tx.value)
	if err != nil {
		return err
	}
	tx.value = next
	tx.ops = json0.Append(op, tx.ops)
	return nil
}

// Proxy addresses one slot of the document snapshot. Descendants are
// obtained with Key and Index; mutators enqueue operations on the shared
// transaction instead of touching the snapshot directly.
type Proxy struct {
	tx   *Transaction
	path json0.Path
}

// Key descends into a mapping entry.
func (p *Proxy) Key(key string) *Proxy {
	child := make(json0.Path, len(p.path), len(p.path)+1)
	copy(child, p.path)
	return &Proxy{tx: p.tx, path: append(child, key)}
}

// Index descends into a sequence element.
func (p *Proxy) Index(i int) *Proxy {
	child := make(json0.Path, len(p.path), len(p.path)+1)
	copy(child, p.path)
	return &Proxy{tx: p.tx, path: append(child, i)}
}

// Value returns the slot's current value within the transaction, or
// ok == false when the slot is empty.
func (p *Proxy) Value() (any, bool, error) {
	return json0.Get(p.tx.value, p.path)
}

// Set writes v into the slot: an insert when the slot is empty, a replace
// carrying the pre-image otherwise. v may be any JSON-marshalable value.
func (p *Proxy) Set(v any) error {
	if len(p.path) == 0 {
		return fmt.Errorf("%w: cannot set the document root", json0.ErrInvalidPath)
	}
	value, err := json0.Normalize(v)
	if err != nil {
		return err
	}
	cur, ok, err := json0.Get(p.tx.value, p.path)
	if err != nil {
		return err
	}
	parent, _, err := json0.Get(p.tx.value, p.path[:len(p.path)-1])
	if err != nil {
		return err
	}
	switch parent.(type) {
	case map[string]any:
		if ok {
			return p.tx.push(json0.Op{Path: p.path, Payload: json0.ObjectReplace{New: value, Old: cur}})
		}
		return p.tx.push(json0.Op{Path: p.path, Payload: json0.ObjectInsert{Value: value}})
	case []any:
		if ok {
			return p.tx.push(json0.Op{Path: p.path, Payload: json0.ListReplace{New: value, Old: cur}})
		}
		return p.tx.push(json0.Op{Path: p.path, Payload: json0.ListInsert{Value: value}})
	default:
		return fmt.Errorf("%w: parent of %v is not a container", json0.ErrInvalidPath, p.path)
	}
}

// Remove deletes the slot, carrying the pre-image.
func (p *Proxy) Remove() error {
	if len(p.path) == 0 {
		return fmt.Errorf("%w: cannot remove the document root", json0.ErrInvalidPath)
	}
	cur, ok, err := json0.Get(p.tx.value, p.path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: remove at empty slot %v", json0.ErrInvalidPath, p.path)
	}
	parent, _, err := json0.Get(p.tx.value, p.path[:len(p.path)-1])
	if err != nil {
		return err
	}
	switch parent.(type) {
	case map[string]any:
		return p.tx.push(json0.Op{Path: p.path, Payload: json0.ObjectDelete{Value: cur}})
	case []any:
		return p.tx.push(json0.Op{Path: p.path, Payload: json0.ListDelete{Value: cur}})
	default:
		return fmt.Errorf("%w: parent of %v is not a container", json0.ErrInvalidPath, p.path)
	}
}

// Insert inserts v into the sequence at this slot at index i.
func (p *Proxy) Insert(i int, v any) error {
	value, err := json0.Normalize(v)
	if err != nil {
		return err
	}
	path := make(json0.Path, len(p.path), len(p.path)+1)
	copy(path, p.path)
	return p.tx.push(json0.Op{Path: append(path, i), Payload: json0.ListInsert{Value: value}})
}

// Add adds delta to the number at this slot. Delta must match the target's
// numeric kind: int kinds for int targets, float kinds for float targets.
func (p *Proxy) Add(delta any) error {
	var value any
	switch n := delta.(type) {
	case int:
		value = int64(n)
	case int64:
		value = n
	case float64:
		value = n
	default:
		return fmt.Errorf("%w: add operand %T", json0.ErrInvalidJSONData, delta)
	}
	return p.tx.push(json0.Op{Path: p.path, Payload: json0.NumberAdd{Value: value}})
}

// InsertText splices s into the string at this slot at UTF-16 offset off.
func (p *Proxy) InsertText(off int, s string) error {
	path := make(json0.Path, len(p.path), len(p.path)+1)
	copy(path, p.path)
	return p.tx.push(json0.Op{Path: append(path, off), Payload: json0.StringInsert{Text: s}})
}

// DeleteText removes s, which must be the substring at UTF-16 offset off.
func (p *Proxy) DeleteText(off int, s string) error {
	path := make(json0.Path, len(p.path), len(p.path)+1)
	copy(path, p.path)
	return p.tx.push(json0.Op{Path: append(path, off), Payload: json0.StringDelete{Text: s}})
}
