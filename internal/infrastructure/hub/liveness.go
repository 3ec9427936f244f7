package hub

import (
	"context"
	"time"
)

// runMonitor drives the liveness cycle on a fixed interval until the context
// is cancelled by Shutdown.
func (h *Hub) runMonitor(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep(time.Now())
		case <-ctx.Done():
			h.logger.Info("liveness monitor stopped")
			return
		}
	}
}

// sweep runs one liveness cycle in two phases. Eviction is decided first,
// from the last confirmed activity; only then are the surviving connections
// probed. A probe write against a half-dead transport can appear to succeed,
// so it must never count as evidence of life for this cycle's decision.
func (h *Hub) sweep(now time.Time) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	conns := h.registry.snapshot()
	h.mu.Unlock()

	var live, stale []*Conn
	for _, c := range conns {
		if now.Sub(c.LastActivity()) > h.cfg.EvictAfter {
			stale = append(stale, c)
		} else {
			live = append(live, c)
		}
	}

	for _, c := range stale {
		h.logger.Infof("evicting connection %s, inactive since %s", c.ID, c.LastActivity().Format(time.RFC3339))
		h.RemoveConnection(c.ID)
	}

	if len(live) == 0 {
		return
	}

	frame, err := NewHeartbeatEvent(now).Encode()
	if err != nil {
		h.logger.Errorf("failed to encode heartbeat: %v", err)
		return
	}
	for _, c := range live {
		h.deliver(c, frame, now)
	}
}
