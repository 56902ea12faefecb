// doc.go
package sharekit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	json "github.com/goccy/go-json"
)

// Doc is a typed handle on a registered Document. Handles are
// back-references: the connection's registry keeps the only owning
// reference, and dropping a handle cancels nothing — call Delete to
// terminate cleanly.
type Doc[E any] struct {
	doc *Document
}

// GetDocument returns the document registered under (collection, key),
// creating a blank one on first request. Requesting an existing document
// with a different entity type fails with ErrDocumentEntityType.
func GetDocument[E any](c *Connection, collection, key string) (*Doc[E], error) {
	d, err := c.getDocument(collection, key, typeFor[E]())
	if err != nil {
		return nil, err
	}
	return &Doc[E]{doc: d}, nil
}

// SubscribeDocument obtains the document and sends its subscribe frame. It
// returns once the frame is written; the snapshot arrives on the value
// stream.
func SubscribeDocument[E any](ctx context.Context, c *Connection, collection, key string) (*Doc[E], error) {
	h, err := GetDocument[E](c, collection, key)
	if err != nil {
		return nil, err
	}
	if err := h.doc.subscribe(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateDocument creates a document under a fresh unique key and submits
// its create operation.
func CreateDocument[E any](ctx context.Context, c *Connection, collection string, entity E) (*Doc[E], error) {
	h, err := GetDocument[E](c, collection, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := h.Create(ctx, entity); err != nil {
		return nil, err
	}
	return h, nil
}

// ID returns the document's identity.
func (h *Doc[E]) ID() DocumentID {
	return h.doc.ID()
}

// State returns the document's lifecycle state.
func (h *Doc[E]) State() DocState {
	return h.doc.State()
}

// Version returns the last server-confirmed version.
func (h *Doc[E]) Version() (uint64, bool) {
	return h.doc.Version()
}

// Entity returns the current decoded entity.
func (h *Doc[E]) Entity() E {
	var zero E
	v, ok := h.doc.entityValue().(E)
	if !ok {
		return zero
	}
	return v
}

// Subscribe sends the subscribe frame. Valid once, on a blank document.
func (h *Doc[E]) Subscribe(ctx context.Context) error {
	return h.doc.subscribe(ctx)
}

// Create installs entity as the initial snapshot and submits the create
// operation.
func (h *Doc[E]) Create(ctx context.Context, entity E) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	return h.doc.create(ctx, raw, "")
}

// Delete tombstones the document and submits the delete operation.
func (h *Doc[E]) Delete(ctx context.Context) error {
	return h.doc.deleteDoc(ctx)
}

// Change collects operations from fn's proxy mutations, applies them to the
// local snapshot and submits them as one update. An fn that enqueues
// nothing is a no-op.
func (h *Doc[E]) Change(ctx context.Context, fn func(*Proxy) error) error {
	return h.doc.change(ctx, fn)
}

// Watch returns the typed value stream: every update delivers the newly
// decoded entity. Slow consumers drop intermediate snapshots.
func (h *Doc[E]) Watch() <-chan E {
	src := h.doc.watch()
	out := make(chan E, watcherBuffer)
	go func() {
		for v := range src {
			e, ok := v.(E)
			if !ok {
				continue
			}
			select {
			case out <- e:
			default:
			}
		}
	}()
	return out
}
