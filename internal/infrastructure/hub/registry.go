package hub

// registry maps connection id to connection. It is not safe for concurrent
// use on its own; the Hub owns it exclusively and guards every access with
// its mutex.
type registry struct {
	conns map[string]*Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*Conn)}
}

// add inserts unconditionally; a colliding id overwrites the prior entry.
func (r *registry) add(c *Conn) {
	r.conns[c.ID] = c
}

// remove deletes the entry if present and returns it. Removing an absent id
// is a no-op, never an error.
func (r *registry) remove(id string) (*Conn, bool) {
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

func (r *registry) get(id string) (*Conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// snapshot copies the current connection set. Broadcast loops iterate
// snapshots only, so a removal triggered mid-iteration mutates the live map
// without invalidating the loop.
func (r *registry) snapshot() []*Conn {
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *registry) len() int {
	return len(r.conns)
}
