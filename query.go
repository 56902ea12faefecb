// query.go
package sharekit

import (
	"context"
	"log"
	"reflect"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/LSX-s-Software/share-kit/wire"
)

// Query is a subscribed list of documents kept in server order by diff
// frames.
type Query struct {
	conn       *Connection
	id         uint64
	collection string
	entityType reflect.Type

	mu       sync.Mutex
	docs     []*Document
	watchers []chan []any
}

func newQuery(conn *Connection, id uint64, collection string, entityType reflect.Type) *Query {
	return &Query{
		conn:       conn,
		id:         id,
		collection: collection,
		entityType: entityType,
	}
}

// installEntry obtains the entry's document, installs its snapshot and
// sends its subscribe frame so future ops flow to it.
func (q *Query) installEntry(ctx context.Context, entry wire.QueryEntry) (*Document, bool) {
	d, err := q.conn.getDocument(q.collection, entry.Document, q.entityType)
	if err != nil {
		log.Printf("query %d: %v", q.id, err)
		return nil, false
	}
	if err := d.put(entry.Data, entry.Version, entry.Type); err != nil {
		log.Printf("query %d: %v", q.id, err)
		return nil, false
	}
	if err := d.sendSubscribeFrame(ctx); err != nil {
		log.Printf("query %d: subscribe %s: %v", q.id, d.id, err)
	}
	return d, true
}

// put installs the initial result list.
func (q *Query) put(ctx context.Context, entries []wire.QueryEntry) {
	docs := make([]*Document, 0, len(entries))
	for _, entry := range entries {
		if d, ok := q.installEntry(ctx, entry); ok {
			docs = append(docs, d)
		}
	}
	q.mu.Lock()
	q.docs = docs
	q.mu.Unlock()
	q.publish()
}

// sync applies a diff list to the published sequence.
func (q *Query) sync(ctx context.Context, diffs []wire.QueryDiff) {
	q.mu.Lock()
	for _, diff := range diffs {
		switch diff.Type {
		case wire.DiffMove:
			if diff.From < 0 || diff.HowMany < 0 || diff.From+diff.HowMany > len(q.docs) ||
				diff.To < 0 || diff.To > len(q.docs)-diff.HowMany {
				log.Printf("query %d: dropping out-of-range move %+v", q.id, diff)
				continue
			}
			seg := slices.Clone(q.docs[diff.From : diff.From+diff.HowMany])
			q.docs = slices.Delete(q.docs, diff.From, diff.From+diff.HowMany)
			q.docs = slices.Insert(q.docs, diff.To, seg...)
		case wire.DiffInsert:
			if diff.Index < 0 || diff.Index > len(q.docs) {
				log.Printf("query %d: dropping out-of-range insert %+v", q.id, diff)
				continue
			}
			inserted := make([]*Document, 0, len(diff.Values))
			for _, entry := range diff.Values {
				if d, ok := q.installEntry(ctx, entry); ok {
					inserted = append(inserted, d)
				}
			}
			q.docs = slices.Insert(q.docs, diff.Index, inserted...)
		case wire.DiffRemove:
			if diff.Index < 0 || diff.HowMany < 0 || diff.Index+diff.HowMany > len(q.docs) {
				log.Printf("query %d: dropping out-of-range remove %+v", q.id, diff)
				continue
			}
			q.docs = slices.Delete(q.docs, diff.Index, diff.Index+diff.HowMany)
		default:
			log.Printf("query %d: dropping unknown diff type %q", q.id, diff.Type)
		}
	}
	q.mu.Unlock()
	q.publish()
}

// publish snapshots the entity sequence to every watcher.
func (q *Query) publish() {
	q.mu.Lock()
	entities := make([]any, len(q.docs))
	for i, d := range q.docs {
		entities[i] = d.entityValue()
	}
	watchers := q.watchers
	q.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- entities:
		default:
			log.Printf("query %d: watcher buffer full, dropping result set", q.id)
		}
	}
}

func (q *Query) watch() <-chan []any {
	ch := make(chan []any, watcherBuffer)
	q.mu.Lock()
	q.watchers = append(q.watchers, ch)
	q.mu.Unlock()
	return ch
}

func (q *Query) results() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	entities := make([]any, len(q.docs))
	for i, d := range q.docs {
		entities[i] = d.entityValue()
	}
	return entities
}

// QueryHandle is the typed view on a Query.
type QueryHandle[E any] struct {
	q *Query
}

// SubscribeQuery subscribes a query over collection. Identical query
// expressions on the same collection share one subscription.
func SubscribeQuery[E any](ctx context.Context, c *Connection, collection string, query any) (*QueryHandle[E], error) {
	q, err := c.subscribeQuery(ctx, collection, query, typeFor[E]())
	if err != nil {
		return nil, err
	}
	return &QueryHandle[E]{q: q}, nil
}

// ID returns the query's id on this connection.
func (h *QueryHandle[E]) ID() uint64 {
	return h.q.id
}

// Results returns the current entity sequence.
func (h *QueryHandle[E]) Results() []E {
	return convertEntities[E](h.q.results())
}

// Watch returns the typed result stream: every put or diff delivers the
// full entity sequence.
func (h *QueryHandle[E]) Watch() <-chan []E {
	src := h.q.watch()
	out := make(chan []E, watcherBuffer)
	go func() {
		for vs := range src {
			select {
			case out <- convertEntities[E](vs):
			default:
			}
		}
	}()
	return out
}

func convertEntities[E any](vs []any) []E {
	out := make([]E, 0, len(vs))
	for _, v := range vs {
		if e, ok := v.(E); ok {
			out = append(out, e)
		}
	}
	return out
}
