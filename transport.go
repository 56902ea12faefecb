// transport.go
package sharekit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the server.
	maxMessageSize = 1 << 20

	// Delay between reconnect attempts.
	reconnectWait = 5 * time.Second
)

// Socket is the transport collaborator: it delivers framed text messages to
// the connection and accepts serialized outbound writes. The default
// implementation is a gorilla WebSocket; tests substitute an in-memory one.
type Socket interface {
	WriteText(ctx context.Context, data []byte) error
	Close() error
}

// wsSocket wraps one gorilla connection with a read pump and a serialized
// writer.
type wsSocket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// dialSocket opens a WebSocket and starts its pumps. Every inbound text
// frame goes to onFrame; onClose fires once when the read pump exits.
func dialSocket(ctx context.Context, url string, onFrame func([]byte), onClose func(error)) (*wsSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	s := &wsSocket{
		conn: conn,
		done: make(chan struct{}),
	}
	go s.readPump(onFrame, onClose)
	go s.pingLoop()
	return s, nil
}

func (s *wsSocket) readPump(onFrame func([]byte), onClose func(error)) {
	defer func() {
		s.Close()
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			onClose(err)
			return
		}
		onFrame(message)
	}
}

// pingLoop keeps the connection alive; pong handling lives in the read
// pump's deadline reset.
func (s *wsSocket) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// WriteText writes one text frame. Writes are serialized; the call returns
// once the socket has accepted the bytes.
func (s *wsSocket) WriteText(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrConnectionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}
