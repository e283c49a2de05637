package psb

import "sync"

// SimDevice is an in-memory Device used by tests and by daemon runs
// configured with tuning.use_simulator, in place of a real charger IC
// or fuel gauge: an arbitrary
// property map a test can script tick by tick.
type SimDevice struct {
	mu       sync.Mutex
	values   map[Property]int64
	extCtrl  bool
	changed  chan struct{}
}

// NewSimDevice creates a SimDevice with all properties defaulting to
// zero until Set is called.
func NewSimDevice() *SimDevice {
	return &SimDevice{
		values:  make(map[Property]int64),
		changed: make(chan struct{}, 1),
	}
}

// Get returns the last value Set for prop, or 0 if never set.
func (s *SimDevice) Get(prop Property) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[prop], nil
}

// Set stores a value and fires a non-blocking change notification.
func (s *SimDevice) Set(prop Property, value int64) error {
	s.mu.Lock()
	s.values[prop] = value
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
	return nil
}

// Changed returns the change-notification channel.
func (s *SimDevice) Changed() <-chan struct{} { return s.changed }

// SetExternallyControlled toggles the ExternallyControlled capability,
// which the monitor's tick checks in spec.md §4.1 step 2: a tick is
// skipped when every charger reports it.
func (s *SimDevice) SetExternallyControlled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extCtrl = v
}

// ExternallyControlled implements psb.ExternallyControlled.
func (s *SimDevice) ExternallyControlled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extCtrl
}

// SetAll bulk-assigns properties, convenient for scripting a tick's
// worth of sensor readings in one call from a test table.
func (s *SimDevice) SetAll(values map[Property]int64) {
	for prop, v := range values {
		_ = s.Set(prop, v)
	}
}
