package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go-event-hub/internal/infrastructure/logger"
)

func newTestHub() *Hub {
	return New(Config{}, &mockLogger{})
}

func addConn(h *Hub, id, userID, orgID string) (*Conn, *mockTransport) {
	mt := &mockTransport{}
	c := NewConn(id, userID, orgID, mt)
	h.AddConnection(c)
	return c, mt
}

func TestHub_AddConnectionIncrementsStats(t *testing.T) {
	h := newTestHub()

	if got := h.Stats().TotalConnections; got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}

	_, mt := addConn(h, "c1", "u1", "o1")

	if got := h.Stats().TotalConnections; got != 1 {
		t.Errorf("expected 1 connection, got %d", got)
	}

	// Registration is confirmed to the new connection only.
	frames := mt.frames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame on registration, got %d", len(frames))
	}
	ev := decodeFrame(t, frames[0])
	if ev.Type != string(EventConnection) {
		t.Errorf("expected connection event, got %s", ev.Type)
	}
	if ev.Data["status"] != "connected" {
		t.Errorf("expected status connected, got %v", ev.Data["status"])
	}

	addConn(h, "c2", "u2", "o1")
	if got := h.Stats().TotalConnections; got != 2 {
		t.Errorf("expected 2 connections, got %d", got)
	}
}

func TestHub_RemoveConnectionIdempotent(t *testing.T) {
	h := newTestHub()
	_, mt := addConn(h, "c1", "u1", "o1")

	if !h.RemoveConnection("c1") {
		t.Error("first removal should report true")
	}
	if h.RemoveConnection("c1") {
		t.Error("second removal should be a no-op")
	}
	if h.RemoveConnection("absent") {
		t.Error("removing an absent id should be a no-op")
	}

	if got := mt.closeCount(); got != 1 {
		t.Errorf("transport should be closed exactly once, got %d", got)
	}
	if got := h.Stats().TotalConnections; got != 0 {
		t.Errorf("expected 0 connections, got %d", got)
	}
}

func TestHub_RoutingPrecision(t *testing.T) {
	h := newTestHub()
	_, mtA := addConn(h, "a", "u1", "o1")
	_, mtB := addConn(h, "b", "u2", "o1")
	_, mtC := addConn(h, "c", "u1", "o2")

	mtA.reset()
	mtB.reset()
	mtC.reset()

	h.SendToUser("u1", "o1", Event{Type: EventMessageUpdate, Data: MessageUpdateData{
		MessageID: "m1",
		Status:    "completed",
	}})

	if got := len(mtA.frames()); got != 1 {
		t.Errorf("A should receive 1 event, got %d", got)
	}
	if got := len(mtB.frames()); got != 0 {
		t.Errorf("B should receive nothing, got %d", got)
	}
	if got := len(mtC.frames()); got != 0 {
		t.Errorf("C should receive nothing, got %d", got)
	}

	mtA.reset()
	h.SendToOrg("o1", NewHeartbeatEvent(time.Now()))

	if got := len(mtA.frames()); got != 1 {
		t.Errorf("A should receive the org event, got %d", got)
	}
	if got := len(mtB.frames()); got != 1 {
		t.Errorf("B should receive the org event, got %d", got)
	}
	if got := len(mtC.frames()); got != 0 {
		t.Errorf("C is in another org, got %d events", got)
	}
}

func TestHub_SendToUnknownAudienceIsNoop(t *testing.T) {
	h := newTestHub()
	h.SendToUser("nobody", "nowhere", NewHeartbeatEvent(time.Now()))
	h.SendToOrg("nowhere", NewHeartbeatEvent(time.Now()))
	h.SendToConnection("absent", NewHeartbeatEvent(time.Now()))
}

func TestHub_WriteFailureRemovesConnection(t *testing.T) {
	h := newTestHub()
	_, mt := addConn(h, "c1", "u1", "o1")

	before := h.Stats().TotalConnections
	mt.setFail(true)

	h.SendToUser("u1", "o1", NewHeartbeatEvent(time.Now()))

	if got := h.Stats().TotalConnections; got != before-1 {
		t.Errorf("expected %d connections after failing write, got %d", before-1, got)
	}
	if got := mt.closeCount(); got != 1 {
		t.Errorf("failing transport should be closed once, got %d", got)
	}

	// The connection is gone; another send to the same audience is a no-op.
	h.SendToUser("u1", "o1", NewHeartbeatEvent(time.Now()))
	if got := h.Stats().TotalConnections; got != 0 {
		t.Errorf("expected 0 connections, got %d", got)
	}
}

func TestHub_OrgFanoutSurvivesOneDeadConnection(t *testing.T) {
	h := newTestHub()
	_, mtDead := addConn(h, "dead", "u1", "o1")
	_, mtLive := addConn(h, "live", "u2", "o1")

	mtDead.reset()
	mtLive.reset()
	mtDead.setFail(true)

	h.SendToOrg("o1", NewHeartbeatEvent(time.Now()))

	if got := len(mtLive.frames()); got != 1 {
		t.Errorf("healthy connection should still receive the event, got %d", got)
	}
	if got := h.Stats().TotalConnections; got != 1 {
		t.Errorf("expected only the healthy connection to remain, got %d", got)
	}
}

func TestHub_LivenessSweep(t *testing.T) {
	h := newTestHub()
	fresh, mtFresh := addConn(h, "fresh", "u1", "o1")
	stale, mtStale := addConn(h, "stale", "u2", "o1")

	now := time.Now()
	stale.touch(now.Add(-h.cfg.EvictAfter - time.Minute))
	fresh.touch(now.Add(-time.Second))
	mtFresh.reset()
	mtStale.reset()

	h.sweep(now)

	if got := h.Stats().TotalConnections; got != 1 {
		t.Fatalf("expected stale connection evicted, got %d connections", got)
	}
	if got := len(mtStale.frames()); got != 0 {
		t.Errorf("evicted connection must not be probed, got %d frames", got)
	}
	if got := mtStale.closeCount(); got != 1 {
		t.Errorf("evicted transport should be closed once, got %d", got)
	}

	frames := mtFresh.frames()
	if len(frames) != 1 {
		t.Fatalf("fresh connection should receive one heartbeat, got %d", len(frames))
	}
	if ev := decodeFrame(t, frames[0]); ev.Type != string(EventHeartbeat) {
		t.Errorf("expected heartbeat, got %s", ev.Type)
	}
	if !fresh.LastActivity().Equal(now) {
		t.Errorf("heartbeat should advance lastActivity to probe time, got %s", fresh.LastActivity())
	}
}

func TestHub_SweepEvictionIgnoresProbeSuccess(t *testing.T) {
	h := newTestHub()
	stale, mt := addConn(h, "stale", "u1", "o1")

	// The transport still accepts writes, but the connection has shown no
	// confirmed activity within the threshold. It must be evicted anyway.
	stale.touch(time.Now().Add(-h.cfg.EvictAfter - time.Hour))
	mt.reset()

	h.sweep(time.Now())

	if got := h.Stats().TotalConnections; got != 0 {
		t.Errorf("expected eviction despite writable transport, got %d connections", got)
	}
	if got := len(mt.frames()); got != 0 {
		t.Errorf("stale connection must not receive a probe, got %d", got)
	}
}

func TestHub_ShutdownDrainsEverything(t *testing.T) {
	h := newTestHub()
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}

	_, mt1 := addConn(h, "c1", "u1", "o1")
	_, mt2 := addConn(h, "c2", "u2", "o2")
	mt1.reset()
	mt2.reset()

	h.Shutdown()

	if got := h.Stats().TotalConnections; got != 0 {
		t.Fatalf("expected empty registry after shutdown, got %d", got)
	}

	for name, mt := range map[string]*mockTransport{"c1": mt1, "c2": mt2} {
		frames := mt.frames()
		if len(frames) != 1 {
			t.Fatalf("%s: expected one shutdown notice, got %d frames", name, len(frames))
		}
		if ev := decodeFrame(t, frames[0]); ev.Type != string(EventServerShutdown) {
			t.Errorf("%s: expected server_shutdown, got %s", name, ev.Type)
		}
		if got := mt.closeCount(); got != 1 {
			t.Errorf("%s: transport should be closed once, got %d", name, got)
		}
	}

	// A tick after shutdown performs no further sends.
	mt1.reset()
	h.sweep(time.Now())
	if got := len(mt1.frames()); got != 0 {
		t.Errorf("post-shutdown sweep must not send, got %d frames", got)
	}

	// The hub is not reusable.
	addConn(h, "late", "u9", "o9")
	if got := h.Stats().TotalConnections; got != 0 {
		t.Errorf("post-shutdown registration must be a no-op, got %d", got)
	}
	h.Shutdown()
}

func TestHub_FanoutScenario(t *testing.T) {
	h := newTestHub()
	_, mtA := addConn(h, "a", "u1", "o1")
	_, mtB := addConn(h, "b", "u1", "o1")
	_, mtC := addConn(h, "c", "u2", "o1")
	mtA.reset()
	mtB.reset()
	mtC.reset()

	h.SendToUser("u1", "o1", Event{Type: EventNewMessage, Data: NewMessageData{
		MessageID:      "m1",
		ConversationID: "conv1",
		Role:           "assistant",
		Message:        "hello",
		UserID:         "u1",
		CreatedAt:      Timestamp(time.Now()),
	}})

	if got := len(mtA.frames()); got != 1 {
		t.Errorf("A should receive exactly one write, got %d", got)
	}
	if got := len(mtB.frames()); got != 1 {
		t.Errorf("B should receive exactly one write, got %d", got)
	}
	if got := len(mtC.frames()); got != 0 {
		t.Errorf("C should receive nothing, got %d", got)
	}

	ev := decodeFrame(t, mtA.frames()[0])
	if ev.Type != string(EventNewMessage) {
		t.Errorf("expected new_message, got %s", ev.Type)
	}
	if ev.Data["conversationId"] != "conv1" {
		t.Errorf("unexpected payload: %v", ev.Data)
	}

	stats := h.Stats()
	if stats.ConnectionsByUser["u1"] != 2 || stats.ConnectionsByUser["u2"] != 1 {
		t.Errorf("unexpected per-user stats: %v", stats.ConnectionsByUser)
	}
	if stats.ConnectionsByOrg["o1"] != 3 {
		t.Errorf("unexpected per-org stats: %v", stats.ConnectionsByOrg)
	}
}

func TestHub_DeadConnectionScenario(t *testing.T) {
	h := newTestHub()
	_, mt := addConn(h, "d", "u3", "o2")
	mt.reset()
	mt.setFail(true)

	h.SendToOrg("o2", NewHeartbeatEvent(time.Now()))

	if got := h.Stats().TotalConnections; got != 0 {
		t.Errorf("expected dead connection removed, got %d", got)
	}
}

func TestHub_DuplicateIDLastWriteWins(t *testing.T) {
	h := newTestHub()
	addConn(h, "dup", "u1", "o1")
	addConn(h, "dup", "u2", "o1")

	stats := h.Stats()
	if stats.TotalConnections != 1 {
		t.Fatalf("expected 1 connection, got %d", stats.TotalConnections)
	}
	if stats.ConnectionsByUser["u2"] != 1 {
		t.Errorf("expected the later registration to win: %v", stats.ConnectionsByUser)
	}
}

func TestHub_StartTwiceFails(t *testing.T) {
	h := newTestHub()
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	defer h.Shutdown()

	if err := h.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}
}

// Mock implementations for testing

type decodedEvent struct {
	Type string
	Data map[string]interface{}
}

func decodeFrame(t *testing.T, frame []byte) decodedEvent {
	t.Helper()

	s := string(frame)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("frame is not wire-framed: %q", s)
	}

	var ev struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")), &ev); err != nil {
		t.Fatalf("frame payload is not valid JSON: %v", err)
	}
	return decodedEvent{Type: ev.Type, Data: ev.Data}
}

type mockTransport struct {
	mu     sync.Mutex
	writes [][]byte
	fail   bool
	closed bool
	closes int
}

func (m *mockTransport) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("transport is closed")
	}
	if m.fail {
		return fmt.Errorf("simulated write failure")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.writes = append(m.writes, cp)
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closes++
	return nil
}

func (m *mockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *mockTransport) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

func (m *mockTransport) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *mockTransport) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type mockLogger struct{}

func (m *mockLogger) Debug(msg string)                              {}
func (m *mockLogger) Debugf(format string, args ...any)             {}
func (m *mockLogger) Info(msg string)                               {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(msg string)                               {}
func (m *mockLogger) Warnf(format string, args ...any)              {}
func (m *mockLogger) Error(msg string)                              {}
func (m *mockLogger) Errorf(format string, args ...any)             {}
func (m *mockLogger) Fatal(msg string)                              {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) WithField(key string, value any) logger.Logger { return m }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger { return m }
func (m *mockLogger) SetLevel(level logger.Level)                   {}
func (m *mockLogger) SetOutput(output io.Writer)                    {}
