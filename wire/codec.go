// codec.go
package wire

import (
	json "github.com/goccy/go-json"

	"github.com/tidwall/gjson"
)

// Encode serializes a frame.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a frame into the given typed message.
func Decode[T any](frame []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// The Peek helpers read single keys off a raw frame so routing never pays a
// full decode to learn the discriminator.

// PeekAction returns the frame's action key.
func PeekAction(frame []byte) Action {
	return Action(gjson.GetBytes(frame, "a").String())
}

// PeekError returns the error object of a rejected frame, if any.
func PeekError(frame []byte) (*Error, bool) {
	res := gjson.GetBytes(frame, "error")
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	return &Error{
		Code:    res.Get("code").String(),
		Message: res.Get("message").String(),
	}, true
}

// PeekSource returns the src key of an op frame.
func PeekSource(frame []byte) string {
	return gjson.GetBytes(frame, "src").String()
}

// PeekQueryID returns the id key of a query frame.
func PeekQueryID(frame []byte) uint64 {
	return gjson.GetBytes(frame, "id").Uint()
}
