// Package chargerctl is the Charger Control component of spec.md §4:
// enable/disable each charger, select the 5V/9V rail, set CC/CV
// targets, feed the watchdog, and expose the sysfs-like per-charger
// control surface of spec.md §6: small guarded bus writes with
// explicit success/failure handling, driving PSB state the same way
// external process state is driven elsewhere in this codebase.
package chargerctl

import (
	"fmt"

	"github.com/qzeleza/chargerman/internal/psb"
)

// Charger is a single configured charger IC reachable over the bus.
type Charger struct {
	bus  *psb.Bus
	Name string
}

// New wraps a bus handle name as a Charger.
func New(bus *psb.Bus, name string) *Charger {
	return &Charger{bus: bus, Name: name}
}

func (c *Charger) withHandle(fn func(psb.Handle) error) error {
	h, release, err := c.bus.Acquire(c.Name)
	if err != nil {
		return err
	}
	defer release()
	return fn(h)
}

// Enable turns on charging (CHARGE_ENABLED=1, STOP_CHARGE=0).
func (c *Charger) Enable() error {
	return c.withHandle(func(h psb.Handle) error {
		if err := h.Set(psb.PROP_CHARGE_ENABLED, 1); err != nil {
			return err
		}
		return h.Set(psb.PROP_STOP_CHARGE, 0)
	})
}

// Disable turns off charging (CHARGE_ENABLED=0, STOP_CHARGE=1).
func (c *Charger) Disable() error {
	return c.withHandle(func(h psb.Handle) error {
		if err := h.Set(psb.PROP_CHARGE_ENABLED, 0); err != nil {
			return err
		}
		return h.Set(psb.PROP_STOP_CHARGE, 1)
	})
}

// IsEnabled reports the current CHARGE_ENABLED state.
func (c *Charger) IsEnabled() (bool, error) {
	var enabled bool
	err := c.withHandle(func(h psb.Handle) error {
		v, err := h.Get(psb.PROP_CHARGE_ENABLED)
		if err != nil {
			return err
		}
		enabled = v != 0
		return nil
	})
	return enabled, err
}

// SetCCCV pushes the constant-current/constant-voltage targets for
// this charger, as the JEITA Controller does to every charger handle
// (spec.md §4.2).
func (c *Charger) SetCCCV(currentUA, voltageUV int32) error {
	return c.withHandle(func(h psb.Handle) error {
		if err := h.Set(psb.PROP_CONSTANT_CHARGE_CURRENT, int64(currentUA)); err != nil {
			return err
		}
		return h.Set(psb.PROP_CONSTANT_CHARGE_VOLTAGE, int64(voltageUV))
	})
}

// SetInputCurrentLimit sets the input current limit (a §6 user-writable
// property).
func (c *Charger) SetInputCurrentLimit(limitUA int32) error {
	return c.withHandle(func(h psb.Handle) error {
		return h.Set(psb.PROP_INPUT_CURRENT_LIMIT, int64(limitUA))
	})
}

// Command writes a FAST_ENABLE/FAST_DISABLE command code, per spec.md §6.
func (c *Charger) Command(code int64) error {
	return c.withHandle(func(h psb.Handle) error {
		return h.Set(psb.PROP_COMMAND, code)
	})
}

// FeedWatchdog pets the charger's hardware watchdog.
func (c *Charger) FeedWatchdog() error {
	return c.withHandle(func(h psb.Handle) error {
		return h.Set(psb.PROP_FEED_WATCHDOG, 1)
	})
}

// ExternallyControlled reports whether a regulator has taken this
// charger out of driver control (spec.md §4.1 step 2 / §6).
func (c *Charger) ExternallyControlled() (bool, error) {
	h, release, err := c.bus.Acquire(c.Name)
	if err != nil {
		return false, err
	}
	defer release()
	if ec, ok := h.Device().(psb.ExternallyControlled); ok {
		return ec.ExternallyControlled(), nil
	}
	v, err := h.Get(psb.PROP_EXTERNALLY_CONTROL)
	if err != nil {
		return false, nil
	}
	return v != 0, nil
}

// SetJeitaControl enables or disables this charger's own JEITA
// enforcement (spec.md §6 jeita_control).
func (c *Charger) SetJeitaControl(enabled bool) error {
	v := int64(0)
	if enabled {
		v = 1
	}
	return c.withHandle(func(h psb.Handle) error {
		return h.Set(psb.PROP_JEITA_CONTROL, v)
	})
}

// SetFastVoltage requests the fast-charger rail switch to 9V (true) or
// 5V (false). Intended to be called on a fast-charger handle, never the
// primary charger.
func SetFastVoltage(bus *psb.Bus, name string, nineVolt bool) error {
	h, release, err := bus.Acquire(name)
	if err != nil {
		return err
	}
	defer release()
	v := int64(0)
	if nineVolt {
		v = 1
	}
	if err := h.Set(psb.PROP_FC_VOLTAGE_SELECT, v); err != nil {
		return fmt.Errorf("chargerctl: set fast voltage on %s: %w", name, err)
	}
	return nil
}
