// Package psb models the Power-Supply Bus of spec.md §6: a registry
// mapping a name to a handle exposing typed get/set of properties, plus
// a change notification channel. Concrete charger-IC and fuel-gauge
// drivers are out of scope (spec.md §1); this package only provides the
// bus contract and a simulated Device for tests and for daemon runs
// configured with tuning.use_simulator.
package psb

import (
	"fmt"
	"sync"

	"github.com/qzeleza/chargerman/internal/chgerr"
)

// Property is one of the typed properties exchanged over the bus,
// enumerated from spec.md §6.
type Property int

// Properties used by the charger manager core.
const (
	PROP_PRESENT Property = iota
	PROP_ONLINE
	PROP_STATUS
	PROP_HEALTH
	PROP_USB_TYPE
	PROP_CHARGE_TYPE
	PROP_VOLTAGE_AVG
	PROP_VOLTAGE_NOW
	PROP_VOLTAGE_OCV
	PROP_VOLTAGE_BOOT
	PROP_VOLTAGE_MAX
	PROP_CURRENT_AVG
	PROP_CURRENT_NOW
	PROP_CONSTANT_CHARGE_VOLTAGE
	PROP_CONSTANT_CHARGE_VOLTAGE_MAX
	PROP_CONSTANT_CHARGE_CURRENT
	PROP_INPUT_CURRENT_LIMIT
	PROP_INPUT_CURRENT_NOW
	PROP_CAPACITY
	PROP_CAPACITY_LEVEL
	PROP_TEMP
	PROP_ENERGY_FULL_DESIGN
	PROP_ENERGY_NOW
	PROP_CHARGE_FULL
	PROP_CHARGE_NOW
	PROP_CHARGE_ENABLED
	PROP_CALIBRATE
	PROP_FEED_WATCHDOG
	PROP_BAT_ID_STATUS
	PROP_COMMAND // write-only: FAST_ENABLE / FAST_DISABLE command codes

	// Sysfs-like per-charger control surface, spec.md §6.
	PROP_EXTERNALLY_CONTROL // rw bool
	PROP_STOP_CHARGE        // rw bool
	PROP_JEITA_CONTROL      // rw bool; 1 = enabled

	// Fast-charger-only: request the supply switch to 9V (1) or 5V (0).
	PROP_FC_VOLTAGE_SELECT
)

// Command codes written to PROP_COMMAND, per spec.md §6.
const (
	CmdFastEnable int64 = iota + 1
	CmdFastDisable
)

// Status values for PROP_STATUS.
const (
	StatusUnknown int64 = iota
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

// Health values for PROP_HEALTH. Good is the only value that does not
// trip the health guard (spec.md §4.5).
const (
	HealthGood int64 = iota
	HealthOverheat
	HealthCold
	HealthOverVoltage
	HealthUnspecifiedFailure
)

// Device is the contract a concrete (or simulated) charger IC, fuel
// gauge, or thermal zone implements.
type Device interface {
	Get(prop Property) (int64, error)
	Set(prop Property, value int64) error
	// Changed fires whenever the device's state changes out-of-band
	// (e.g. a cable event), mirroring power_supply_changed().
	Changed() <-chan struct{}
}

// ExternallyControlled is implemented by devices that can report
// whether a regulator has taken them out of driver control (spec.md
// §4.1 step 2 / §6 "externally_control").
type ExternallyControlled interface {
	ExternallyControlled() bool
}

// Handle is an acquired, single-use accessor to a Device, released via
// the func returned alongside it by Bus.Acquire.
type Handle struct {
	name string
	dev  Device
}

// Get reads a property from the underlying device.
func (h Handle) Get(prop Property) (int64, error) {
	v, err := h.dev.Get(prop)
	if err != nil {
		return 0, fmt.Errorf("psb: get %s.%d: %w", h.name, prop, err)
	}
	return v, nil
}

// Set writes a property to the underlying device.
func (h Handle) Set(prop Property, value int64) error {
	if err := h.dev.Set(prop, value); err != nil {
		return fmt.Errorf("psb: set %s.%d: %w", h.name, prop, err)
	}
	return nil
}

// Name returns the registered name of the device behind this handle.
func (h Handle) Name() string { return h.name }

// Device exposes the raw Device behind the handle, for type-asserting
// to ExternallyControlled or other optional capabilities.
func (h Handle) Device() Device { return h.dev }

// Bus is the registry mapping names to Devices.
type Bus struct {
	mu      sync.Mutex
	devices map[string]Device
}

// NewBus creates an empty registry.
func NewBus() *Bus {
	return &Bus{devices: make(map[string]Device)}
}

// Register adds or replaces a named device.
func (b *Bus) Register(name string, dev Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[name] = dev
}

// Acquire looks up a device by name and returns a Handle plus a release
// function the caller must defer. The handle must never be retained
// across a suspension point (spec.md §5).
func (b *Bus) Acquire(name string) (Handle, func(), error) {
	b.mu.Lock()
	dev, ok := b.devices[name]
	b.mu.Unlock()
	if !ok {
		return Handle{}, func() {}, fmt.Errorf("psb: %q: %w", name, chgerr.NotFound)
	}
	return Handle{name: name, dev: dev}, func() {}, nil
}

// Names returns the names currently registered, for diagnostics.
func (b *Bus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.devices))
	for n := range b.devices {
		names = append(names, n)
	}
	return names
}
