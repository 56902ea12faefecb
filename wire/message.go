// message.go
//
// Package wire defines the ShareDB protocol frames and their codec. All
// frames are JSON objects discriminated by the short "a" (action) key; the
// short field names are mandatory for wire compatibility with JavaScript
// ShareDB peers.
package wire

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/LSX-s-Software/share-kit/json0"
)

// Action discriminates the frame kind.
type Action string

// Constants for all protocol actions.
const (
	// ActionHandshake negotiates protocol version and assigns the clientID.
	ActionHandshake Action = "hs"

	// ActionSubscribe subscribes a document and carries its snapshot reply.
	ActionSubscribe Action = "s"

	// ActionOperation carries a create, update or delete operation.
	ActionOperation Action = "op"

	// ActionQuerySubscribe subscribes a query and carries the initial results.
	ActionQuerySubscribe Action = "qs"

	// ActionQuery carries incremental diffs for a subscribed query.
	ActionQuery Action = "q"
)

// Protocol version sent in the handshake.
const (
	ProtocolMajor = 1
	ProtocolMinor = 1
)

// DocumentTypeJSON0 is the default OT type URL.
const DocumentTypeJSON0 = "http://sharejs.org/types/JSONv0"

// Error is the error object attached to a frame that was rejected.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// The closed set of server error codes.
const (
	ErrCodeOpSubmitRejected                 = "ERR_OP_SUBMIT_REJECTED"
	ErrCodePendingOpRemovedBySubmitRejected = "ERR_PENDING_OP_REMOVED_BY_OP_SUBMIT_REJECTED"
	ErrCodeOpAlreadySubmitted               = "ERR_OP_ALREADY_SUBMITTED"
	ErrCodeSubmitTransformOpsNotFound       = "ERR_SUBMIT_TRANSFORM_OPS_NOT_FOUND"
	ErrCodeMaxSubmitRetriesExceeded         = "ERR_MAX_SUBMIT_RETRIES_EXCEEDED"
	ErrCodeDocAlreadyCreated                = "ERR_DOC_ALREADY_CREATED"
	ErrCodeDocWasDeleted                    = "ERR_DOC_WAS_DELETED"
	ErrCodeDocTypeNotRecognized             = "ERR_DOC_TYPE_NOT_RECOGNIZED"
	ErrCodeDefaultTypeMismatch              = "ERR_DEFAULT_TYPE_MISMATCH"
	ErrCodeOpNotAllowedInProjection         = "ERR_OP_NOT_ALLOWED_IN_PROJECTION"
	ErrCodeTypeCannotBeProjected            = "ERR_TYPE_CANNOT_BE_PROJECTED"
)

// HandshakeMessage is the hs frame. The client sends its retained id (empty
// on a first connect); the server echoes or assigns one and may name its
// default OT type URL.
type HandshakeMessage struct {
	Action        Action `json:"a"`
	ID            string `json:"id,omitempty"`
	Protocol      int    `json:"protocol"`
	ProtocolMinor int    `json:"protocolMinor"`
	Type          string `json:"type,omitempty"`
	Error         *Error `json:"error,omitempty"`
}

// NewHandshakeMessage builds the client-to-server hs frame.
func NewHandshakeMessage(clientID string) *HandshakeMessage {
	return &HandshakeMessage{
		Action:        ActionHandshake,
		ID:            clientID,
		Protocol:      ProtocolMajor,
		ProtocolMinor: ProtocolMinor,
	}
}

// SnapshotData is the snapshot payload of a subscribe reply. A reply whose
// SnapshotData carries neither Data nor Type signals that the document does
// not exist yet.
type SnapshotData struct {
	Version uint64          `json:"v"`
	Data    json.RawMessage `json:"data,omitempty"`
	Type    string          `json:"type,omitempty"`
}

// IsEmpty reports whether the snapshot signals a not-created document.
func (s *SnapshotData) IsEmpty() bool {
	return (len(s.Data) == 0 || string(s.Data) == "null") && s.Type == ""
}

// SubscribeMessage is the s frame, in both directions.
type SubscribeMessage struct {
	Action     Action        `json:"a"`
	Collection string        `json:"c"`
	Document   string        `json:"d"`
	Version    *uint64       `json:"v,omitempty"`
	Data       *SnapshotData `json:"data,omitempty"`
	Error      *Error        `json:"error,omitempty"`
}

// NewSubscribeMessage builds the client-to-server s frame. version is the
// client's cached version, nil when it has none.
func NewSubscribeMessage(collection, document string, version *uint64) *SubscribeMessage {
	return &SubscribeMessage{
		Action:     ActionSubscribe,
		Collection: collection,
		Document:   document,
		Version:    version,
	}
}

// CreateData is the payload of an op frame's create key.
type CreateData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OperationMessage is the op frame. Exactly one of Create, Ops and Delete is
// present.
type OperationMessage struct {
	Action     Action      `json:"a"`
	Collection string      `json:"c"`
	Document   string      `json:"d"`
	Source     string      `json:"src,omitempty"`
	Sequence   uint64      `json:"seq,omitempty"`
	Version    uint64      `json:"v"`
	Create     *CreateData `json:"create,omitempty"`
	Ops        []json0.Op  `json:"op,omitempty"`
	Delete     *bool       `json:"del,omitempty"`
	Error      *Error      `json:"error,omitempty"`
}

// QueryEntry is one document in a query's initial results or insert diff.
type QueryEntry struct {
	Document string          `json:"d"`
	Version  uint64          `json:"v"`
	Data     json.RawMessage `json:"data,omitempty"`
	Type     string          `json:"type,omitempty"`
}

// QuerySubscribeMessage is the qs frame. The query expression is any JSON.
type QuerySubscribeMessage struct {
	Action     Action          `json:"a"`
	ID         uint64          `json:"id"`
	Query      json.RawMessage `json:"q,omitempty"`
	Collection string          `json:"c"`
	Data       []QueryEntry    `json:"data,omitempty"`
	Error      *Error          `json:"error,omitempty"`
}

// Diff kinds carried by q frames.
const (
	DiffMove   = "move"
	DiffInsert = "insert"
	DiffRemove = "remove"
)

// QueryDiff is one element of a q frame's diff list, tagged by Type.
type QueryDiff struct {
	Type    string       `json:"type"`
	From    int          `json:"from,omitempty"`
	To      int          `json:"to,omitempty"`
	HowMany int          `json:"howMany,omitempty"`
	Index   int          `json:"index,omitempty"`
	Values  []QueryEntry `json:"values,omitempty"`
}

// QueryMessage is the q frame.
type QueryMessage struct {
	Action Action      `json:"a"`
	ID     uint64      `json:"id"`
	Diff   []QueryDiff `json:"diff,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}
