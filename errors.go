// errors.go
package sharekit

import "errors"

var (
	// ErrStateEvent means a document state transition not in the guard table
	// was attempted. The document is left unchanged.
	ErrStateEvent = errors.New("sharekit: illegal document state transition")

	// ErrAlreadySubscribed means Subscribe was called on a non-blank document.
	ErrAlreadySubscribed = errors.New("sharekit: document already subscribed")

	// ErrDocumentEntityType means a document or query was requested with a
	// different entity type than it was registered with.
	ErrDocumentEntityType = errors.New("sharekit: entity type mismatch")

	// ErrUnknownDocument means an inbound frame referenced an unregistered
	// document.
	ErrUnknownDocument = errors.New("sharekit: unknown document")

	// ErrUnknownQuery means an inbound frame referenced an unregistered query.
	ErrUnknownQuery = errors.New("sharekit: unknown query")

	// ErrUnsupportedType means the server named an OT type this client does
	// not implement.
	ErrUnsupportedType = errors.New("sharekit: unsupported document type")

	// ErrNoSnapshot means Change was called before the document had a value.
	ErrNoSnapshot = errors.New("sharekit: document has no snapshot")

	// ErrVersionMismatch means an ack or remote op arrived for a version
	// other than the one the document is at.
	ErrVersionMismatch = errors.New("sharekit: version mismatch")

	// ErrNoInflight means an ack arrived with no operation awaiting one.
	ErrNoInflight = errors.New("sharekit: no operation in flight")

	// ErrConnectionClosed means the connection was shut down.
	ErrConnectionClosed = errors.New("sharekit: connection closed")

	// ErrSequenceExhausted means the outbound sequence counter would wrap;
	// the connection is forced down because the server assumes monotonic
	// sequences per client session.
	ErrSequenceExhausted = errors.New("sharekit: outbound sequence exhausted")
)
