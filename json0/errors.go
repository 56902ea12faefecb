// errors.go
package json0

import "errors"

// Errors returned by Apply and the value model. Callers match with errors.Is;
// wrapped messages carry the offending path or index.
var (
	// ErrInvalidPath means a path addresses a missing or wrong-kind parent,
	// or an operation carries an empty path.
	ErrInvalidPath = errors.New("json0: invalid path")

	// ErrOldDataMismatch means the pre-image carried by a delete/replace
	// does not match the current value, or an insert found the slot taken.
	ErrOldDataMismatch = errors.New("json0: old data mismatch")

	// ErrIndexOutOfRange means a string offset lies outside the target string.
	ErrIndexOutOfRange = errors.New("json0: index out of range")

	// ErrInvalidJSONData means an operand has the wrong JSON kind, e.g. a
	// numeric add whose operand kind differs from the target's.
	ErrInvalidJSONData = errors.New("json0: invalid json data")

	// ErrUnsupportedOperation means an operation carries no recognized
	// payload keys, or an ambiguous combination of them.
	ErrUnsupportedOperation = errors.New("json0: unsupported operation")

	// ErrUnsupportedSubtype means a t/o operation names an unregistered subtype.
	ErrUnsupportedSubtype = errors.New("json0: unsupported subtype")
)
