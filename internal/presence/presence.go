// Package presence tracks which users currently hold a live connection.
// State is in-memory only: it resets on restart and reconnecting clients
// must register again.
package presence

import "sync"

// Conn is the live-connection handle stored per user. The websocket layer's
// client satisfies it; tests use lightweight fakes.
type Conn interface {
	// Send enqueues an outbound event without blocking. It reports whether
	// the event was accepted (a full send buffer drops the event).
	Send(event string, data any) bool
}

// Directory maps a user id to at most one live connection. Last connection
// wins on reconnect; there is no multi-device fan-out.
type Directory struct {
	mu    sync.RWMutex
	conns map[int]Conn
}

func NewDirectory() *Directory {
	return &Directory{conns: make(map[int]Conn)}
}

// Register installs conn as the user's connection, replacing any previous
// one. The replaced connection (if any) is returned so the caller can close
// it.
func (d *Directory) Register(userID int, conn Conn) (replaced Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	replaced = d.conns[userID]
	d.conns[userID] = conn
	return replaced
}

// Unregister removes the user's connection only if it is still conn. A stale
// disconnect from a superseded connection must not evict a newer one.
func (d *Directory) Unregister(userID int, conn Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.conns[userID]; ok && current == conn {
		delete(d.conns, userID)
		return true
	}
	return false
}

func (d *Directory) Lookup(userID int) (Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.conns[userID]
	return conn, ok
}

func (d *Directory) IsOnline(userID int) bool {
	_, ok := d.Lookup(userID)
	return ok
}

func (d *Directory) OnlineUserIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.conns))
	for id := range d.conns {
		ids = append(ids, id)
	}
	return ids
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
