package realtime

import "sync"

// Registry is the process-wide mapping from authenticated user ID to that
// user's live connection, plus the set of all live connections (anonymous ones
// included, since presence broadcasts target every connection).
//
// One connection per user: a later connection from the same user overwrites
// the mapping. The earlier socket is not force-closed, it just stops being a
// relay target. State is lost on restart; presence is ephemeral by nature.
//
// The mutex is held only for map mutation and snapshotting, never across a
// network push.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*Client // userID -> current connection
	conns map[string]*Client // connID -> connection, anonymous included
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*Client),
		conns: make(map[string]*Client),
	}
}

// Register tracks the connection and, when it is authenticated, makes it the
// user's current relay target. Idempotent under repeated identical calls.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
	if c.UserID() != "" {
		r.users[c.UserID()] = c
	}
}

// Unregister drops the connection. The user mapping is removed only when it
// still points at this exact connection, so a stale disconnect handler cannot
// clear a newer connection made by the same user after a reconnect.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID())
	if uid := c.UserID(); uid != "" {
		if cur, ok := r.users[uid]; ok && cur.ID() == c.ID() {
			delete(r.users, uid)
		}
	}
}

// Lookup returns the user's current connection, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID]
	return c, ok
}

// OnlineUserIDs snapshots the registered user IDs. Only membership is
// contractual; callers must not depend on order.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.users))
	for uid := range r.users {
		out = append(out, uid)
	}
	return out
}

// Connections snapshots every live connection for a broadcast.
func (r *Registry) Connections() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
