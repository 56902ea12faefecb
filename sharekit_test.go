package sharekit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/tidwall/gjson"
)

// fakeSocket records outbound frames in memory and never blocks.
type fakeSocket struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
}

var errWriteRefused = errors.New("write refused")

func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

func (s *fakeSocket) WriteText(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWriteRefused
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSocket) Close() error {
	return nil
}

func (s *fakeSocket) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *fakeSocket) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *fakeSocket) setFailWrites(fail bool) {
	s.mu.Lock()
	s.failWrites = fail
	s.mu.Unlock()
}

// newTestConnection wires a connection to a fake socket, without a
// handshake.
func newTestConnection(t *testing.T) (*Connection, *fakeSocket) {
	t.Helper()
	c := newConnection(Config{URL: "ws://test", Reconnect: false}, nil)
	sock := &fakeSocket{}
	c.attachSocket(sock)
	return c, sock
}

// handshake drives the server's hs reply into the connection.
func handshake(t *testing.T, c *Connection, clientID string) {
	t.Helper()
	c.handleFrame([]byte(`{"a":"hs","id":"` + clientID + `"}`))
	assert.Equal(t, c.ClientID(), clientID)
}

func frameField(frame []byte, path string) gjson.Result {
	return gjson.GetBytes(frame, path)
}
