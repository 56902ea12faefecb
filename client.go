// client.go
package sharekit

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/LSX-s-Software/share-kit/wire"
)

// newInstanceID returns a sortable id identifying one Connection in logs.
func newInstanceID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Connect opens a WebSocket to cfg.URL, sends the handshake and returns the
// Connection. onConnect, when non-nil, runs once after the server's
// handshake reply assigns the client identity; it may be nil.
func Connect(ctx context.Context, cfg Config, onConnect func(*Connection)) (*Connection, error) {
	c := newConnection(cfg, onConnect)
	if cfg.WireLogging {
		IsWireLoggingEnabled = true
	}
	if cfg.CachePath != "" {
		cache, err := OpenSnapshotCache(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot cache: %w", err)
		}
		c.cache = cache
	}

	sock, err := dialSocket(ctx, cfg.URL, c.handleFrame, c.handleClose)
	if err != nil {
		if c.cache != nil {
			c.cache.Close()
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	c.attachSocket(sock)

	if err := c.send(ctx, wire.NewHandshakeMessage("")); err != nil {
		sock.Close()
		if c.cache != nil {
			c.cache.Close()
		}
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return c, nil
}

// reconnect redials until the socket is back, then replays the handshake
// with the retained clientID so the server resumes the session, and resumes
// the documents to drain their queues.
func (c *Connection) reconnect() {
	for {
		c.mu.RLock()
		closed := c.closed
		clientID := c.clientID
		c.mu.RUnlock()
		if closed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), reconnectWait)
		sock, err := dialSocket(ctx, c.cfg.URL, c.handleFrame, c.handleClose)
		cancel()
		if err != nil {
			log.Printf("conn %s: reconnect: %v", c.instanceID, err)
			time.Sleep(reconnectWait)
			continue
		}
		c.attachSocket(sock)

		if err := c.send(context.Background(), wire.NewHandshakeMessage(clientID)); err != nil {
			log.Printf("conn %s: reconnect handshake: %v", c.instanceID, err)
			sock.Close()
			time.Sleep(reconnectWait)
			continue
		}
		c.resumeAll(context.Background())
		log.Printf("conn %s: reconnected", c.instanceID)
		return
	}
}

// SyncShutdown tears the connection down: no reconnect, socket closed,
// snapshot cache flushed. Safe to call more than once.
func (c *Connection) SyncShutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sock := c.socket
	c.socket = nil
	c.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			log.Printf("conn %s: cache close: %v", c.instanceID, err)
		}
	}
}
