package monitor

import "sync"

// Registry is the global list of Charger-Manager instances of spec.md
// §5 and §9's "Global list of managers" design note: a mutex-guarded
// map keyed by instance id, for fanning a call out across every
// attached battery (multi-battery platforms configure more than one
// Monitor). The daemon itself runs a single Monitor and creates no
// Registry.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*Monitor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Monitor)}
}

// Add registers m under its id, replacing any previous entry with the
// same id.
func (r *Registry) Add(m *Monitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.id] = m
}

// Remove drops the instance with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Get looks up an instance by id.
func (r *Registry) Get(id string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	return m, ok
}

// ForEach calls fn once per registered instance, in an unspecified
// order, outside the registry's lock.
func (r *Registry) ForEach(fn func(*Monitor)) {
	r.mu.Lock()
	instances := make([]*Monitor, 0, len(r.byID))
	for _, m := range r.byID {
		instances = append(instances, m)
	}
	r.mu.Unlock()

	for _, m := range instances {
		fn(m)
	}
}
