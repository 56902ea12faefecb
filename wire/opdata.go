// opdata.go
package wire

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/LSX-s-Software/share-kit/json0"
)

// ErrMissingOperationData means an op frame carried none of create/op/del.
var ErrMissingOperationData = errors.New("wire: operation frame carries no data")

// OperationData is the tagged payload of an op frame.
type OperationData interface {
	isOperationData()
}

// CreateOperation creates a document with an initial snapshot.
type CreateOperation struct {
	Type string
	Data json.RawMessage
}

// UpdateOperation applies a list of JSON0 ops.
type UpdateOperation struct {
	Ops []json0.Op
}

// DeleteOperation tombstones a document.
type DeleteOperation struct {
	IsDeleted bool
}

func (CreateOperation) isOperationData() {}
func (UpdateOperation) isOperationData() {}
func (DeleteOperation) isOperationData() {}

// NewOperationMessage builds a client-to-server op frame for data. The
// sequence is stamped by the connection's send path.
func NewOperationMessage(collection, document, source string, version uint64, data OperationData) (*OperationMessage, error) {
	msg := &OperationMessage{
		Action:     ActionOperation,
		Collection: collection,
		Document:   document,
		Source:     source,
		Version:    version,
	}
	switch d := data.(type) {
	case CreateOperation:
		msg.Create = &CreateData{Type: d.Type, Data: d.Data}
	case UpdateOperation:
		msg.Ops = d.Ops
	case DeleteOperation:
		del := d.IsDeleted
		msg.Delete = &del
	default:
		return nil, fmt.Errorf("%w: %T", ErrMissingOperationData, data)
	}
	return msg, nil
}

// Data extracts the tagged payload of an inbound op frame.
func (m *OperationMessage) Data() (OperationData, error) {
	switch {
	case m.Create != nil:
		return CreateOperation{Type: m.Create.Type, Data: m.Create.Data}, nil
	case m.Ops != nil:
		return UpdateOperation{Ops: m.Ops}, nil
	case m.Delete != nil:
		return DeleteOperation{IsDeleted: *m.Delete}, nil
	default:
		return nil, ErrMissingOperationData
	}
}
