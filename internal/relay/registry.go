package relay

import "sync"

// Registry tracks the live trackers, one per attached debug session.
// Several sessions may be attached at once; their handlers run
// independently.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

func (r *Registry) Add(t *Tracker) {
	r.mu.Lock()
	r.trackers[t.ID()] = t
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[id]
	return t, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.trackers, id)
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
