// session id <-> connection mapping and fan-out delivery
package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientConn is the slice of a websocket connection the directory
// needs. Tests substitute fakes; production wraps gorilla conns.
type ClientConn interface {
	WriteJSON(v any) error
	Close() error
}

const wsWriteTimeout = 10 * time.Second

// wsClient serializes writes to a gorilla connection, which permits
// only one concurrent writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn}
}

func (c *wsClient) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// SessionDirectory maps session ids to live connections, 1:1. It has
// its own lock so registration and delivery are never gated by the
// coordinator's state mutex.
type SessionDirectory struct {
	mu      sync.RWMutex
	clients map[string]ClientConn
}

func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{clients: make(map[string]ClientConn)}
}

// Register binds a connection to requestedID, or to a freshly generated
// id when none is requested, and returns the id in use. Supplying an id
// lets a client resume its session after a transient disconnect.
func (d *SessionDirectory) Register(conn ClientConn, requestedID string) string {
	sid := requestedID
	if sid == "" {
		sid = uuid.NewString()
	}
	d.mu.Lock()
	d.clients[sid] = conn
	d.mu.Unlock()
	return sid
}

func (d *SessionDirectory) Unregister(sessionID string) {
	d.mu.Lock()
	delete(d.clients, sessionID)
	d.mu.Unlock()
}

func (d *SessionDirectory) Get(sessionID string) (ClientConn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.clients[sessionID]
	return conn, ok
}

func (d *SessionDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// Broadcast delivers payload to every registered connection. A failed
// send is logged and skipped; it neither aborts delivery to the rest
// nor unregisters the failing session -- that stays with the normal
// disconnect path, so a transient write error can't race an in-flight
// unregister.
func (d *SessionDirectory) Broadcast(payload any) {
	d.mu.RLock()
	targets := make(map[string]ClientConn, len(d.clients))
	for sid, conn := range d.clients {
		targets[sid] = conn
	}
	d.mu.RUnlock()

	for sid, conn := range targets {
		if err := conn.WriteJSON(payload); err != nil {
			wsLog.Warnw("broadcast send failed", "session", sid, "err", err)
		}
	}
}
