package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-event-hub/internal/infrastructure/logger"
)

// Config tunes the liveness monitor. The eviction threshold should stay well
// above the probe interval; the reference ratio is 1:10.
type Config struct {
	ProbeInterval time.Duration
	EvictAfter    time.Duration
}

const (
	defaultProbeInterval = 30 * time.Second
	defaultEvictAfter    = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.EvictAfter <= 0 {
		c.EvictAfter = defaultEvictAfter
	}
	return c
}

// Stats is a point-in-time census of the registry.
type Stats struct {
	TotalConnections  int            `json:"totalConnections"`
	ConnectionsByOrg  map[string]int `json:"connectionsByOrg"`
	ConnectionsByUser map[string]int `json:"connectionsByUser"`
}

// Hub is the process-local event distribution broker. It owns the registry
// exclusively; all fanout, liveness and lifecycle operations go through it.
// A Hub must not be reused after Shutdown.
type Hub struct {
	cfg Config

	mu       sync.Mutex
	registry *registry
	closed   bool

	running bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New creates a hub. Start launches the liveness monitor.
func New(cfg Config, log logger.Logger) *Hub {
	return &Hub{
		cfg:      cfg.withDefaults(),
		registry: newRegistry(),
		logger:   log.WithField("component", "hub"),
	}
}

// Start launches the liveness monitor. Starting an already running or shut
// down hub is an error.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("hub has been shut down")
	}
	if h.running {
		return fmt.Errorf("hub is already running")
	}

	mctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true

	go h.runMonitor(mctx)

	h.logger.Infof("hub started, probe interval %s, evict after %s", h.cfg.ProbeInterval, h.cfg.EvictAfter)
	return nil
}

// AddConnection registers a connection and confirms the registration to the
// client with a connection control event. Ids are caller-guaranteed unique;
// a colliding id silently replaces the prior entry.
func (h *Hub) AddConnection(c *Conn) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.transport.Close()
		return
	}
	h.registry.add(c)
	total := h.registry.len()
	h.mu.Unlock()

	h.logger.WithFields(logger.Fields{
		"connection_id": c.ID,
		"user_id":       c.UserID,
		"org_id":        c.OrgID,
	}).Infof("connection registered, %d total", total)

	h.sendTo(c, NewConnectionEvent(time.Now()))
}

// RemoveConnection removes the connection and closes its transport. It is
// idempotent: every trigger path (explicit call, transport close, write
// failure, liveness eviction, shutdown) may call it, and only the first one
// to find the entry performs the removal.
func (h *Hub) RemoveConnection(id string) bool {
	h.mu.Lock()
	c, ok := h.registry.remove(id)
	total := h.registry.len()
	h.mu.Unlock()

	if !ok {
		return false
	}

	if err := c.transport.Close(); err != nil {
		h.logger.Debugf("failed to close transport for %s: %v", id, err)
	}
	h.logger.Infof("connection %s removed, %d remaining", id, total)
	return true
}

// SendToUser delivers the event to every connection registered under both the
// user and the organization. Zero matches is a no-op.
func (h *Hub) SendToUser(userID, orgID string, ev Event) {
	h.fanout(ev, func(c *Conn) bool {
		return c.UserID == userID && c.OrgID == orgID
	})
}

// SendToOrg delivers the event to every connection in the organization,
// regardless of user. Zero matches is a no-op.
func (h *Hub) SendToOrg(orgID string, ev Event) {
	h.fanout(ev, func(c *Conn) bool {
		return c.OrgID == orgID
	})
}

// SendToConnection delivers the event to a single connection by id.
func (h *Hub) SendToConnection(id string, ev Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	c, ok := h.registry.get(id)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.sendTo(c, ev)
}

// Stats counts current connections in total and per organization and user.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	conns := h.registry.snapshot()
	h.mu.Unlock()

	stats := Stats{
		TotalConnections:  len(conns),
		ConnectionsByOrg:  make(map[string]int),
		ConnectionsByUser: make(map[string]int),
	}
	for _, c := range conns {
		stats.ConnectionsByOrg[c.OrgID]++
		stats.ConnectionsByUser[c.UserID]++
	}
	return stats
}

// Shutdown stops the liveness monitor, notifies every remaining connection
// with a server_shutdown event best-effort and drains the registry. The hub
// must not be reused afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.running = false
	cancel := h.cancel
	conns := h.registry.snapshot()
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	frame, err := NewServerShutdownEvent("server is shutting down", time.Now()).Encode()
	if err != nil {
		h.logger.Errorf("failed to encode shutdown event: %v", err)
		frame = nil
	}

	for _, c := range conns {
		if frame != nil {
			if werr := c.transport.Write(frame); werr != nil {
				h.logger.Debugf("shutdown notice to %s failed: %v", c.ID, werr)
			}
		}
		h.RemoveConnection(c.ID)
	}

	h.logger.Infof("hub shut down, %d connections drained", len(conns))
}

// fanout snapshots matching connections under the lock, then delivers the
// encoded event to each outside it. Failures affect only the failing
// connection; none propagate to the caller.
func (h *Hub) fanout(ev Event, match func(*Conn) bool) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	var targets []*Conn
	for _, c := range h.registry.snapshot() {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	frame, err := ev.Encode()
	if err != nil {
		h.logger.Errorf("failed to encode %s event: %v", ev.Type, err)
		return
	}

	now := time.Now()
	for _, c := range targets {
		h.deliver(c, frame, now)
	}
}

func (h *Hub) sendTo(c *Conn, ev Event) {
	frame, err := ev.Encode()
	if err != nil {
		h.logger.Errorf("failed to encode %s event: %v", ev.Type, err)
		return
	}
	h.deliver(c, frame, time.Now())
}

// deliver writes one frame to one connection. A write failure means the
// client is gone: the connection is removed and its transport closed, and the
// error stops here.
func (h *Hub) deliver(c *Conn, frame []byte, now time.Time) {
	if err := c.transport.Write(frame); err != nil {
		h.logger.Debugf("write to %s failed, removing: %v", c.ID, err)
		h.RemoveConnection(c.ID)
		return
	}
	c.touch(now)
}
