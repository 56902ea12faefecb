// connection.go
package sharekit

import (
	"context"
	"fmt"
	"log"
	"math"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"golang.org/x/exp/maps"

	"github.com/LSX-s-Software/share-kit/wire"
)

// Connection owns the socket, performs the handshake, stamps outbound
// sequence numbers, routes inbound frames and keeps the document and query
// registries. Registry access uses a reader-writer strategy: lookups under
// the read lock, registration under the write lock, with the invariant of at
// most one Document per DocumentID.
type Connection struct {
	instanceID string
	cfg        Config
	onConnect  func(*Connection)
	cache      *SnapshotCache

	mu          sync.RWMutex
	socket      Socket
	clientID    string
	defaultType string
	documents   map[DocumentID]*Document
	queries     map[uint64]*Query
	queryIDs    map[string]uint64
	seq         uint64
	nextQueryID uint64
	handshaken  bool
	closed      bool
}

func newConnection(cfg Config, onConnect func(*Connection)) *Connection {
	return &Connection{
		instanceID:  newInstanceID(),
		cfg:         cfg,
		onConnect:   onConnect,
		defaultType: wire.DocumentTypeJSON0,
		documents:   make(map[DocumentID]*Document),
		queries:     make(map[uint64]*Query),
		queryIDs:    make(map[string]uint64),
		seq:         1,
		nextQueryID: 1,
	}
}

// ClientID returns the identity assigned by the handshake, empty before it.
func (c *Connection) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// InstanceID returns the local connection instance id used in logs. It is
// stable across reconnects of the same Connection.
func (c *Connection) InstanceID() string {
	return c.instanceID
}

func (c *Connection) snapshotCache() *SnapshotCache {
	return c.cache
}

func (c *Connection) currentSocket() Socket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socket
}

func (c *Connection) attachSocket(s Socket) {
	c.mu.Lock()
	c.socket = s
	c.mu.Unlock()
}

// nextSeq returns the next outbound operation sequence. The counter must
// stay strictly increasing for the lifetime of a client session: on
// exhaustion the connection is forced down rather than wrapping.
func (c *Connection) nextSeq() (uint64, error) {
	c.mu.Lock()
	if c.seq == math.MaxUint64 {
		c.mu.Unlock()
		go c.SyncShutdown()
		return 0, ErrSequenceExhausted
	}
	s := c.seq
	c.seq++
	c.mu.Unlock()
	return s, nil
}

// send serializes msg and writes it to the socket. Operation frames are
// stamped with the next sequence number before encoding.
func (c *Connection) send(ctx context.Context, msg any) error {
	if om, ok := msg.(*wire.OperationMessage); ok {
		seq, err := c.nextSeq()
		if err != nil {
			return err
		}
		om.Sequence = seq
	}
	frame, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	sock := c.currentSocket()
	if sock == nil {
		return ErrConnectionClosed
	}
	logFrame(c.instanceID, "->", frame)
	return sock.WriteText(ctx, frame)
}

// getDocument returns the registered document, creating a blank one on
// first request. A repeat request with a different entity type is refused.
func (c *Connection) getDocument(collection, key string, entityType reflect.Type) (*Document, error) {
	id := DocumentID{Collection: collection, Key: key}

	c.mu.RLock()
	d, ok := c.documents[id]
	c.mu.RUnlock()
	if ok {
		if d.entityType != entityType {
			return nil, fmt.Errorf("%w: %s registered as %v, requested as %v", ErrDocumentEntityType, id, d.entityType, entityType)
		}
		return d, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.documents[id]; ok {
		if d.entityType != entityType {
			return nil, fmt.Errorf("%w: %s registered as %v, requested as %v", ErrDocumentEntityType, id, d.entityType, entityType)
		}
		return d, nil
	}
	d = newDocument(c, id, entityType)
	c.documents[id] = d
	return d, nil
}

func (c *Connection) document(collection, key string) (*Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.documents[DocumentID{Collection: collection, Key: key}]
	return d, ok
}

func (c *Connection) query(id uint64) (*Query, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.queries[id]
	return q, ok
}

// subscribeQuery registers a query collection, deduplicating identical
// query expressions per collection by their canonical hash.
func (c *Connection) subscribeQuery(ctx context.Context, collection string, query any, entityType reflect.Type) (*Query, error) {
	rawQuery, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hashKey := fmt.Sprintf("%s:%d", collection, xxhash.Sum64(rawQuery))

	c.mu.Lock()
	if qid, ok := c.queryIDs[hashKey]; ok {
		q := c.queries[qid]
		c.mu.Unlock()
		if q.entityType != entityType {
			return nil, fmt.Errorf("%w: query %d registered as %v, requested as %v", ErrDocumentEntityType, q.id, q.entityType, entityType)
		}
		return q, nil
	}
	qid := c.nextQueryID
	c.nextQueryID++
	q := newQuery(c, qid, collection, entityType)
	c.queries[qid] = q
	c.queryIDs[hashKey] = qid
	c.mu.Unlock()

	msg := &wire.QuerySubscribeMessage{
		Action:     wire.ActionQuerySubscribe,
		ID:         qid,
		Query:      rawQuery,
		Collection: collection,
	}
	if err := c.send(ctx, msg); err != nil {
		return nil, fmt.Errorf("subscribe query %d: %w", qid, err)
	}
	return q, nil
}

// Disconnect pauses every registered document. Queued operations survive
// and are re-sent after resume.
func (c *Connection) Disconnect() {
	c.pauseAll()
}

func (c *Connection) pauseAll() {
	c.mu.RLock()
	docs := maps.Values(c.documents)
	c.mu.RUnlock()
	for _, d := range docs {
		if err := d.pause(); err != nil {
			log.Printf("pause %s: %v", d.id, err)
		}
	}
}

func (c *Connection) resumeAll(ctx context.Context) {
	c.mu.RLock()
	docs := maps.Values(c.documents)
	c.mu.RUnlock()
	for _, d := range docs {
		if err := d.resume(ctx); err != nil {
			log.Printf("resume %s: %v", d.id, err)
		}
	}
}

// handleFrame routes one inbound frame. Dispatch is serialized on the
// socket's read pump; a frame that fails to decode is logged and dropped,
// never fatal to the connection.
func (c *Connection) handleFrame(frame []byte) {
	logFrame(c.instanceID, "<-", frame)
	action := wire.PeekAction(frame)
	if werr, ok := wire.PeekError(frame); ok {
		c.handleErrorFrame(action, frame, werr)
		return
	}
	switch action {
	case wire.ActionHandshake:
		c.handleHandshake(frame)
	case wire.ActionSubscribe:
		c.handleSubscribeReply(frame)
	case wire.ActionQuerySubscribe:
		c.handleQueryReply(frame)
	case wire.ActionQuery:
		c.handleQueryDiff(frame)
	case wire.ActionOperation:
		c.handleOperation(frame)
	default:
		log.Printf("conn %s: dropping frame with unknown action %q", c.instanceID, action)
	}
}

func (c *Connection) handleHandshake(frame []byte) {
	msg, err := wire.Decode[wire.HandshakeMessage](frame)
	if err != nil {
		log.Printf("conn %s: bad handshake frame: %v", c.instanceID, err)
		return
	}
	c.mu.Lock()
	c.clientID = msg.ID
	if msg.Type != "" {
		if msg.Type == wire.DocumentTypeJSON0 {
			c.defaultType = msg.Type
		} else {
			log.Printf("conn %s: %v: %q", c.instanceID, ErrUnsupportedType, msg.Type)
		}
	}
	first := !c.handshaken
	c.handshaken = true
	onConnect := c.onConnect
	docs := maps.Values(c.documents)
	c.mu.Unlock()

	// Operations queued before the identity arrived can go out now.
	for _, d := range docs {
		d.drainOne(context.Background())
	}
	if first && onConnect != nil {
		go onConnect(c)
	}
}

func (c *Connection) handleSubscribeReply(frame []byte) {
	msg, err := wire.Decode[wire.SubscribeMessage](frame)
	if err != nil {
		log.Printf("conn %s: bad subscribe frame: %v", c.instanceID, err)
		return
	}
	d, ok := c.document(msg.Collection, msg.Document)
	if !ok {
		log.Printf("conn %s: %v: %s/%s", c.instanceID, ErrUnknownDocument, msg.Collection, msg.Document)
		return
	}
	if msg.Data == nil {
		log.Printf("conn %s: subscribe reply for %s without snapshot", c.instanceID, d.id)
		return
	}
	if msg.Data.IsEmpty() {
		if err := d.setNotCreated(); err != nil {
			log.Printf("conn %s: %v", c.instanceID, err)
		}
		return
	}
	if err := d.put(msg.Data.Data, msg.Data.Version, msg.Data.Type); err != nil {
		log.Printf("conn %s: %v", c.instanceID, err)
	}
}

func (c *Connection) handleQueryReply(frame []byte) {
	msg, err := wire.Decode[wire.QuerySubscribeMessage](frame)
	if err != nil {
		log.Printf("conn %s: bad query subscribe frame: %v", c.instanceID, err)
		return
	}
	q, ok := c.query(msg.ID)
	if !ok {
		log.Printf("conn %s: %v: %d", c.instanceID, ErrUnknownQuery, msg.ID)
		return
	}
	q.put(context.Background(), msg.Data)
}

func (c *Connection) handleQueryDiff(frame []byte) {
	msg, err := wire.Decode[wire.QueryMessage](frame)
	if err != nil {
		log.Printf("conn %s: bad query frame: %v", c.instanceID, err)
		return
	}
	q, ok := c.query(msg.ID)
	if !ok {
		log.Printf("conn %s: %v: %d", c.instanceID, ErrUnknownQuery, msg.ID)
		return
	}
	q.sync(context.Background(), msg.Diff)
}

func (c *Connection) handleOperation(frame []byte) {
	msg, err := wire.Decode[wire.OperationMessage](frame)
	if err != nil {
		log.Printf("conn %s: bad op frame: %v", c.instanceID, err)
		return
	}
	d, ok := c.document(msg.Collection, msg.Document)
	if !ok {
		log.Printf("conn %s: %v: %s/%s", c.instanceID, ErrUnknownDocument, msg.Collection, msg.Document)
		return
	}
	if clientID := c.ClientID(); clientID != "" && msg.Source == clientID {
		if err := d.ack(msg.Version, msg.Sequence); err != nil {
			log.Printf("conn %s: %v", c.instanceID, err)
		}
		return
	}
	data, err := msg.Data()
	if err != nil {
		log.Printf("conn %s: op for %s: %v", c.instanceID, d.id, err)
		return
	}
	if err := d.syncOp(data, msg.Version); err != nil {
		log.Printf("conn %s: %v", c.instanceID, err)
	}
}

// handleErrorFrame re-decodes a rejected frame as the operation it refers
// to and applies the recovery policy.
func (c *Connection) handleErrorFrame(action wire.Action, frame []byte, werr *wire.Error) {
	switch action {
	case wire.ActionOperation:
		msg, err := wire.Decode[wire.OperationMessage](frame)
		if err != nil {
			log.Printf("conn %s: bad op error frame: %v", c.instanceID, err)
			return
		}
		d, ok := c.document(msg.Collection, msg.Document)
		if !ok {
			log.Printf("conn %s: %v: %s/%s (error %s)", c.instanceID, ErrUnknownDocument, msg.Collection, msg.Document, werr.Code)
			return
		}
		d.handleServerError(context.Background(), werr)
	case wire.ActionSubscribe:
		msg, err := wire.Decode[wire.SubscribeMessage](frame)
		if err != nil {
			log.Printf("conn %s: bad subscribe error frame: %v", c.instanceID, err)
			return
		}
		if d, ok := c.document(msg.Collection, msg.Document); ok {
			d.handleSubscribeError(werr)
		}
	default:
		log.Printf("conn %s: server error on %q frame: %v", c.instanceID, action, werr)
	}
}

// handleClose reacts to the socket closing. With reconnect configured the
// documents pause, the socket is redialed, the handshake replays with the
// retained clientID and the documents resume, draining their queues.
func (c *Connection) handleClose(err error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}
	if err != nil {
		log.Printf("conn %s: socket closed: %v", c.instanceID, err)
	}
	c.pauseAll()
	if c.cfg.Reconnect {
		go c.reconnect()
	}
}
