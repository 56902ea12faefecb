// document.go
package sharekit

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/LSX-s-Software/share-kit/json0"
	"github.com/LSX-s-Software/share-kit/wire"
)

// DocumentID identifies a document within a connection.
type DocumentID struct {
	Collection string
	Key        string
}

func (id DocumentID) String() string {
	return fmt.Sprintf("%s/%s", id.Collection, id.Key)
}

// DocState is a document's lifecycle state.
type DocState int

const (
	StateBlank DocState = iota
	StatePending
	StateReady
	StatePaused
	StateDeleted
	StateFetchError
	StateNotCreated
)

func (s DocState) String() string {
	switch s {
	case StateBlank:
		return "blank"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StateDeleted:
		return "deleted"
	case StateFetchError:
		return "fetchError"
	case StateNotCreated:
		return "notCreated"
	default:
		return fmt.Sprintf("DocState(%d)", int(s))
	}
}

type docEvent int

const (
	eventFetch docEvent = iota
	eventPut
	eventApply
	eventPause
	eventResume
	eventDelete
	eventFail
	eventSetNotCreated
)

var docEventNames = map[docEvent]string{
	eventFetch:         "fetch",
	eventPut:           "put",
	eventApply:         "apply",
	eventPause:         "pause",
	eventResume:        "resume",
	eventDelete:        "delete",
	eventFail:          "fail",
	eventSetNotCreated: "setNotCreated",
}

// docTransitions is the guard table. Any (state, event) pair not listed is
// refused with ErrStateEvent. Deleted, NotCreated and FetchError are
// terminal: re-subscribing requires a new Document.
var docTransitions = map[DocState]map[docEvent]DocState{
	StateBlank: {
		eventFetch: StatePending,
		eventPut:   StateReady,
		eventFail:  StateFetchError,
	},
	StatePending: {
		eventPut:           StateReady,
		eventFail:          StateFetchError,
		eventSetNotCreated: StateNotCreated,
	},
	StateReady: {
		eventPut:    StateReady,
		eventApply:  StateReady,
		eventPause:  StatePaused,
		eventResume: StateReady,
		eventDelete: StateDeleted,
	},
	StatePaused: {
		eventApply:  StatePaused,
		eventResume: StateReady,
		eventDelete: StateDeleted,
	},
}

// watcherBuffer is the value stream channel depth. Slow consumers drop
// intermediate snapshots rather than blocking the routing loop.
const watcherBuffer = 16

// Document is the client-side mirror of one server document. It is uniquely
// owned by the connection's registry; Doc handles hold back-references only.
type Document struct {
	conn *Connection
	id   DocumentID

	mu         sync.Mutex
	typeName   string
	version    uint64
	hasVersion bool
	value      any
	entityType reflect.Type
	entity     any
	state      DocState
	inflight   wire.OperationData
	queue      []wire.OperationData
	watchers   []chan any
}

func newDocument(conn *Connection, id DocumentID, entityType reflect.Type) *Document {
	return &Document{
		conn:       conn,
		id:         id,
		typeName:   wire.DocumentTypeJSON0,
		entityType: entityType,
		state:      StateBlank,
	}
}

// ID returns the document's identity.
func (d *Document) ID() DocumentID {
	return d.id
}

// State returns the current lifecycle state.
func (d *Document) State() DocState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Version returns the last server-confirmed version; ok is false before the
// first put or create.
func (d *Document) Version() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version, d.hasVersion
}

// Value returns a deep copy of the current snapshot.
func (d *Document) Value() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return json0.Clone(d.value)
}

func (d *Document) transitionLocked(ev docEvent) error {
	next, ok := docTransitions[d.state][ev]
	if !ok {
		return fmt.Errorf("%w: %s on %s document %s", ErrStateEvent, docEventNames[ev], d.state, d.id)
	}
	d.state = next
	return nil
}

// subscribe sends the s frame. Only a blank document may subscribe; the
// fetch transition happens before the write so a concurrent second call
// fails fast, and a failed write drives the fail transition.
func (d *Document) subscribe(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateBlank {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, d.id)
	}
	if err := d.transitionLocked(eventFetch); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	if err := d.sendSubscribeFrame(ctx); err != nil {
		d.mu.Lock()
		if terr := d.transitionLocked(eventFail); terr != nil {
			log.Printf("subscribe %s: fail transition refused: %v", d.id, terr)
		}
		d.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", d.id, err)
	}
	return nil
}

// sendSubscribeFrame writes the s frame without touching document state.
// Query-installed documents reuse it after put: they already hold a snapshot
// and only need the server-side subscription.
func (d *Document) sendSubscribeFrame(ctx context.Context) error {
	var cachedVersion *uint64
	if cache := d.conn.snapshotCache(); cache != nil {
		if v, _, _, ok := cache.Load(d.id.Collection, d.id.Key); ok {
			cachedVersion = &v
		}
	}
	return d.conn.send(ctx, wire.NewSubscribeMessage(d.id.Collection, d.id.Key, cachedVersion))
}

// put installs a server snapshot, resetting the version without a
// monotonicity check.
func (d *Document) put(data json.RawMessage, version uint64, typeName string) error {
	if typeName != "" && typeName != wire.DocumentTypeJSON0 {
		return fmt.Errorf("%w: %q on %s", ErrUnsupportedType, typeName, d.id)
	}
	value, err := json0.Decode(data)
	if err != nil {
		return fmt.Errorf("put %s: %w", d.id, err)
	}

	d.mu.Lock()
	if err := d.transitionLocked(eventPut); err != nil {
		d.mu.Unlock()
		return err
	}
	d.value = value
	d.version = version
	d.hasVersion = true
	if typeName != "" {
		d.typeName = typeName
	}
	d.deriveAndNotifyLocked()
	d.mu.Unlock()

	d.storeSnapshot()
	d.drainOne(context.Background())
	return nil
}

// setNotCreated marks a pending document as absent on the server.
func (d *Document) setNotCreated() error {
	d.mu.Lock()
	err := d.transitionLocked(eventSetNotCreated)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if cache := d.conn.snapshotCache(); cache != nil {
		if cerr := cache.Delete(d.id.Collection, d.id.Key); cerr != nil {
			log.Printf("cache delete %s: %v", d.id, cerr)
		}
	}
	return nil
}

// create installs an initial snapshot at version 0 and submits the create
// operation. Allowed from Blank and from NotCreated.
func (d *Document) create(ctx context.Context, data json.RawMessage, typeName string) error {
	if typeName == "" {
		typeName = wire.DocumentTypeJSON0
	}
	if typeName != wire.DocumentTypeJSON0 {
		return fmt.Errorf("%w: %q on %s", ErrUnsupportedType, typeName, d.id)
	}
	value, err := json0.Decode(data)
	if err != nil {
		return fmt.Errorf("create %s: %w", d.id, err)
	}

	d.mu.Lock()
	if d.state != StateBlank && d.state != StateNotCreated {
		d.mu.Unlock()
		return fmt.Errorf("%w: create on %s document %s", ErrStateEvent, d.state, d.id)
	}
	d.state = StateReady
	d.value = value
	d.version = 0
	d.hasVersion = true
	d.typeName = typeName
	d.deriveAndNotifyLocked()
	d.mu.Unlock()

	return d.submit(ctx, wire.CreateOperation{Type: typeName, Data: data}, false)
}

// deleteDoc tombstones the document locally and submits the delete.
func (d *Document) deleteDoc(ctx context.Context) error {
	d.mu.Lock()
	if err := d.transitionLocked(eventDelete); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	if cache := d.conn.snapshotCache(); cache != nil {
		if err := cache.Delete(d.id.Collection, d.id.Key); err != nil {
			log.Printf("cache delete %s: %v", d.id, err)
		}
	}
	return d.submit(ctx, wire.DeleteOperation{IsDeleted: true}, false)
}

// change runs fn against a proxy, applies the collected operations locally
// and submits them. The document lock is held while fn runs, so the
// transaction sees a stable snapshot; fn must only use the proxy.
func (d *Document) change(ctx context.Context, fn func(*Proxy) error) error {
	d.mu.Lock()
	if d.value == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoSnapshot, d.id)
	}
	tx := newTransaction(d.value)
	if err := fn(&Proxy{tx: tx}); err != nil {
		d.mu.Unlock()
		return err
	}
	if len(tx.ops) == 0 {
		d.mu.Unlock()
		return nil
	}
	if err := d.transitionLocked(eventApply); err != nil {
		d.mu.Unlock()
		return err
	}
	d.value = tx.value
	d.deriveAndNotifyLocked()
	d.mu.Unlock()

	return d.submit(ctx, wire.UpdateOperation{Ops: tx.ops}, false)
}

// submit sends one operation, honoring the single-inflight discipline.
// Operations queue when the connection has no identity yet, the version is
// unset, the document is paused, or another operation is inflight. Fresh
// operations queue at the tail; requeued ones (front) go back to the head so
// the drain order stays first-in first-out.
func (d *Document) submit(ctx context.Context, data wire.OperationData, front bool) error {
	clientID := d.conn.ClientID()

	d.mu.Lock()
	if clientID == "" || !d.hasVersion || d.inflight != nil || d.state == StatePaused {
		d.enqueueLocked(data, front)
		d.mu.Unlock()
		return nil
	}
	version := d.version
	d.inflight = data
	d.mu.Unlock()

	msg, err := wire.NewOperationMessage(d.id.Collection, d.id.Key, clientID, version, data)
	if err == nil {
		err = d.conn.send(ctx, msg)
	}
	if err != nil {
		d.mu.Lock()
		d.inflight = nil
		d.enqueueLocked(data, true)
		d.mu.Unlock()
		return fmt.Errorf("submit %s: %w", d.id, err)
	}
	return nil
}

func (d *Document) enqueueLocked(data wire.OperationData, front bool) {
	if front {
		d.queue = append([]wire.OperationData{data}, d.queue...)
		return
	}
	// Queue compaction: adjacent numeric adds on the same path merge.
	if upd, ok := data.(wire.UpdateOperation); ok && len(d.queue) > 0 {
		if last, ok2 := d.queue[len(d.queue)-1].(wire.UpdateOperation); ok2 && len(upd.Ops) == 1 {
			merged := last.Ops
			for _, op := range upd.Ops {
				merged = json0.Append(op, merged)
			}
			d.queue[len(d.queue)-1] = wire.UpdateOperation{Ops: merged}
			return
		}
	}
	d.queue = append(d.queue, data)
}

// ack confirms the inflight operation: version advances to v+1, which must
// equal the prior version plus one, then the queue drains.
func (d *Document) ack(v, seq uint64) error {
	d.mu.Lock()
	if d.inflight == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: ack seq %d on %s", ErrNoInflight, seq, d.id)
	}
	if v != d.version {
		d.mu.Unlock()
		return fmt.Errorf("%w: ack at v%d, document at v%d (%s)", ErrVersionMismatch, v, d.version, d.id)
	}
	d.version = v + 1
	d.inflight = nil
	d.mu.Unlock()

	d.storeSnapshot()
	d.drainOne(context.Background())
	return nil
}

// pause stops outbound traffic; an inflight operation moves back to the
// queue head so it is re-sent first on resume.
func (d *Document) pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(eventPause); err != nil {
		return err
	}
	if d.inflight != nil {
		d.queue = append([]wire.OperationData{d.inflight}, d.queue...)
		d.inflight = nil
	}
	return nil
}

// resume re-enables outbound traffic and drains the next queued operation.
func (d *Document) resume(ctx context.Context) error {
	d.mu.Lock()
	err := d.transitionLocked(eventResume)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	d.drainOne(ctx)
	return nil
}

// drainOne pops the queue head and submits it, if the document is clear to
// send.
func (d *Document) drainOne(ctx context.Context) {
	clientID := d.conn.ClientID()

	d.mu.Lock()
	if len(d.queue) == 0 || d.inflight != nil || d.state != StateReady ||
		clientID == "" || !d.hasVersion {
		d.mu.Unlock()
		return
	}
	data := d.queue[0]
	d.queue = d.queue[1:]
	d.mu.Unlock()

	if err := d.submit(ctx, data, true); err != nil {
		log.Printf("drain %s: %v", d.id, err)
	}
}

// syncOp applies a server-broadcast operation from another client.
func (d *Document) syncOp(data wire.OperationData, v uint64) error {
	switch op := data.(type) {
	case wire.UpdateOperation:
		d.mu.Lock()
		if !d.hasVersion || v != d.version {
			d.mu.Unlock()
			return fmt.Errorf("%w: remote op at v%d, document at v%d (%s)", ErrVersionMismatch, v, d.version, d.id)
		}
		if err := d.transitionLocked(eventApply); err != nil {
			d.mu.Unlock()
			return err
		}
		newValue, err := json0.Apply(op.Ops, d.value)
		if err != nil {
			d.mu.Unlock()
			return fmt.Errorf("sync %s: %w", d.id, err)
		}
		d.value = newValue
		d.version = v + 1
		d.deriveAndNotifyLocked()
		d.mu.Unlock()

		d.storeSnapshot()
		return nil
	case wire.CreateOperation:
		return d.put(op.Data, v, op.Type)
	case wire.DeleteOperation:
		d.mu.Lock()
		err := d.transitionLocked(eventDelete)
		d.mu.Unlock()
		if err != nil {
			return err
		}
		if cache := d.conn.snapshotCache(); cache != nil {
			if cerr := cache.Delete(d.id.Collection, d.id.Key); cerr != nil {
				log.Printf("cache delete %s: %v", d.id, cerr)
			}
		}
		return nil
	default:
		return wire.ErrMissingOperationData
	}
}

// handleServerError applies the per-code recovery policy to a rejected
// operation frame.
func (d *Document) handleServerError(ctx context.Context, e *wire.Error) {
	switch e.Code {
	case wire.ErrCodeDocAlreadyCreated:
		// Another client created the document first. Discard our create; a
		// fresh subscribe snapshot will arrive.
		d.mu.Lock()
		if _, ok := d.inflight.(wire.CreateOperation); ok {
			d.inflight = nil
		}
		d.mu.Unlock()
		d.drainOne(ctx)
	case wire.ErrCodeDocWasDeleted, wire.ErrCodeDocTypeNotRecognized:
		if e.Code == wire.ErrCodeDocTypeNotRecognized {
			log.Printf("document %s: server rejected type: %s", d.id, e.Message)
		}
		d.mu.Lock()
		d.inflight = nil
		d.queue = nil
		if err := d.transitionLocked(eventDelete); err != nil {
			log.Printf("document %s: delete on %s refused: %v", d.id, e.Code, err)
		}
		d.mu.Unlock()
		if cache := d.conn.snapshotCache(); cache != nil {
			if cerr := cache.Delete(d.id.Collection, d.id.Key); cerr != nil {
				log.Printf("cache delete %s: %v", d.id, cerr)
			}
		}
	case wire.ErrCodeOpSubmitRejected:
		// Roll the rejected edit back locally by applying its inverse.
		d.mu.Lock()
		if upd, ok := d.inflight.(wire.UpdateOperation); ok {
			if inv, err := json0.Invert(upd.Ops); err != nil {
				log.Printf("document %s: rollback invert: %v", d.id, err)
			} else if rolled, err := json0.Apply(inv, d.value); err != nil {
				log.Printf("document %s: rollback apply: %v", d.id, err)
			} else {
				d.value = rolled
				d.deriveAndNotifyLocked()
			}
		}
		d.inflight = nil
		d.mu.Unlock()
		d.drainOne(ctx)
	default:
		log.Printf("document %s: server error %s: %s", d.id, e.Code, e.Message)
		d.mu.Lock()
		d.inflight = nil
		d.mu.Unlock()
		d.drainOne(ctx)
	}
}

// handleSubscribeError drives a failed subscribe into FetchError.
func (d *Document) handleSubscribeError(e *wire.Error) {
	log.Printf("subscribe %s rejected: %v", d.id, e)
	d.mu.Lock()
	if err := d.transitionLocked(eventFail); err != nil {
		log.Printf("document %s: fail transition refused: %v", d.id, err)
	}
	d.mu.Unlock()
}

// deriveAndNotifyLocked re-derives the decoded entity from the snapshot and
// publishes it on the value stream. Every snapshot mutation funnels through
// here before watchers see it. If the snapshot cannot be encoded or decoded
// into the entity type, the error is logged, the previous entity is kept and
// nothing is published.
func (d *Document) deriveAndNotifyLocked() {
	if d.entityType == nil {
		d.entity = json0.Clone(d.value)
	} else {
		raw, err := json0.Encode(d.value)
		if err != nil {
			log.Printf("document %s: entity encode: %v", d.id, err)
			return
		}
		ptr := reflect.New(d.entityType)
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			log.Printf("document %s: entity decode: %v", d.id, err)
			return
		}
		d.entity = ptr.Elem().Interface()
	}
	for _, w := range d.watchers {
		select {
		case w <- d.entity:
		default:
			log.Printf("document %s: watcher buffer full, dropping snapshot", d.id)
		}
	}
}

// watch registers a value stream channel receiving each newly decoded
// entity.
func (d *Document) watch() <-chan any {
	ch := make(chan any, watcherBuffer)
	d.mu.Lock()
	d.watchers = append(d.watchers, ch)
	d.mu.Unlock()
	return ch
}

// entityValue returns the current decoded entity.
func (d *Document) entityValue() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entity
}

// storeSnapshot upserts the confirmed snapshot into the cache. While local
// operations are inflight or queued the snapshot holds unconfirmed edits, so
// nothing is stored.
func (d *Document) storeSnapshot() {
	cache := d.conn.snapshotCache()
	if cache == nil {
		return
	}
	d.mu.Lock()
	if !d.hasVersion || d.value == nil || d.inflight != nil || len(d.queue) > 0 {
		d.mu.Unlock()
		return
	}
	version, typeName := d.version, d.typeName
	raw, err := json0.Encode(d.value)
	d.mu.Unlock()
	if err != nil {
		log.Printf("cache encode %s: %v", d.id, err)
		return
	}
	if err := cache.Store(d.id.Collection, d.id.Key, version, typeName, raw); err != nil {
		log.Printf("cache store %s: %v", d.id, err)
	}
}
