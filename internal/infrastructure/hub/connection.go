package hub

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-event-hub/internal/infrastructure/logger"
)

// Transport is the exclusively owned output stream of one connection. A
// transport accepts pre-framed writes and is closed exactly once, at removal.
type Transport interface {
	Write(frame []byte) error
	Close() error
	IsClosed() bool
}

// Conn is one registered subscriber: routing identity plus its transport.
// UserID and OrgID are immutable for the connection's lifetime.
type Conn struct {
	ID     string
	UserID string
	OrgID  string

	transport Transport

	lastActivity time.Time
	activityMu   sync.RWMutex
}

// NewConn builds a connection record around an open transport. The id must be
// unique across the hub; callers generate random ids.
func NewConn(id, userID, orgID string, transport Transport) *Conn {
	return &Conn{
		ID:           id,
		UserID:       userID,
		OrgID:        orgID,
		transport:    transport,
		lastActivity: time.Now(),
	}
}

// LastActivity returns the time of the last successful write.
func (c *Conn) LastActivity() time.Time {
	c.activityMu.RLock()
	defer c.activityMu.RUnlock()
	return c.lastActivity
}

func (c *Conn) touch(now time.Time) {
	c.activityMu.Lock()
	c.lastActivity = now
	c.activityMu.Unlock()
}

// SSETransport writes frames straight to an http.ResponseWriter and flushes
// after every write.
type SSETransport struct {
	w       http.ResponseWriter
	flusher http.Flusher

	closed   bool
	closedMu sync.Mutex
}

// NewSSETransport wraps a streaming response writer. The writer must support
// flushing; buffered writers make server-sent events useless.
func NewSSETransport(w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &SSETransport{w: w, flusher: flusher}, nil
}

func (t *SSETransport) Write(frame []byte) error {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	if _, err := t.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	t.flusher.Flush()
	return nil
}

// Close marks the transport closed. The response stream itself ends when the
// HTTP handler returns.
func (t *SSETransport) Close() error {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()
	t.closed = true
	return nil
}

func (t *SSETransport) IsClosed() bool {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()
	return t.closed
}

// WebSocketTransport delivers frames as text messages over a WebSocket. Writes
// go through a bounded send buffer drained by a single write pump; a full
// buffer counts as a write failure, which forces a disconnect upstream.
type WebSocketTransport struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closed   bool
	closedMu sync.Mutex

	writeTimeout time.Duration
	logger       logger.Logger
}

// NewWebSocketTransport wraps an upgraded WebSocket connection and starts its
// write pump.
func NewWebSocketTransport(conn *websocket.Conn, log logger.Logger) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:         conn,
		send:         make(chan []byte, 256),
		done:         make(chan struct{}),
		writeTimeout: 10 * time.Second,
		logger:       log.WithField("transport", "websocket"),
	}
	go t.writePump()
	return t
}

func (t *WebSocketTransport) Write(frame []byte) error {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}

	select {
	case t.send <- frame:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Close shuts the transport down exactly once; later calls are no-ops.
func (t *WebSocketTransport) Close() error {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	t.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return t.conn.Close()
}

func (t *WebSocketTransport) IsClosed() bool {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()
	return t.closed
}

func (t *WebSocketTransport) writePump() {
	for {
		select {
		case frame := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.logger.Debugf("write pump stopping: %v", err)
				t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}
