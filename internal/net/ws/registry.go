package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// ConnectionInfo is the diagnostics view of a controller connection.
type ConnectionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remoteAddr"`
	Since      time.Time `json:"since"`
	Frames     uint64    `json:"frames"`
	Commands   uint64    `json:"commands"`
	Dropped    uint64    `json:"dropped"`
}

type connectionState struct {
	id         string
	remoteAddr string
	since      time.Time
	frames     atomic.Uint64
	commands   atomic.Uint64
	dropped    atomic.Uint64
}

func (c *connectionState) info() ConnectionInfo {
	return ConnectionInfo{
		ID:         c.id,
		RemoteAddr: c.remoteAddr,
		Since:      c.since,
		Frames:     c.frames.Load(),
		Commands:   c.commands.Load(),
		Dropped:    c.dropped.Load(),
	}
}

// Registry tracks live controller connections in accept order.
type Registry struct {
	mu    sync.Mutex
	conns *orderedmap.OrderedMap[string, *connectionState]
	total atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{conns: orderedmap.NewOrderedMap[string, *connectionState]()}
}

func (r *Registry) add(state *connectionState) {
	r.mu.Lock()
	r.conns.Set(state.id, state)
	r.mu.Unlock()
	r.total.Add(1)
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	r.conns.Delete(id)
	r.mu.Unlock()
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns.Len()
}

// Total reports how many connections were ever accepted.
func (r *Registry) Total() uint64 {
	if r == nil {
		return 0
	}
	return r.total.Load()
}

// Snapshot lists live connections, oldest first.
func (r *Registry) Snapshot() []ConnectionInfo {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]ConnectionInfo, 0, r.conns.Len())
	for el := r.conns.Front(); el != nil; el = el.Next() {
		infos = append(infos, el.Value.info())
	}
	return infos
}
