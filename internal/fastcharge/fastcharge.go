// Package fastcharge implements the Fast-Charge Controller of spec.md
// §4.3: a small state machine that arms, enables, and tears down the
// 9V fast-charge handshake between the primary and secondary (fast)
// charger, rolling back to the normal DCP rail on any failure partway
// through a multi-step operation, explicitly undoing prior steps when a
// later one fails.
package fastcharge

import (
	"fmt"

	"github.com/qzeleza/chargerman/internal/chargerctl"
	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/psb"
)

// State is a fast-charge FSM state.
type State int

// States of the fast-charge handshake, per spec.md §4.3.
const (
	StateIdle State = iota
	StateArmEnable
	StateEnabled
	StateArmDisable
	StateUnsupported
)

// String names a state for logs and status output.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmEnable:
		return "arm-enable"
	case StateEnabled:
		return "enabled"
	case StateArmDisable:
		return "arm-disable"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Controller owns the fast-charge handshake for one primary/secondary
// charger pair.
type Controller struct {
	bus       *psb.Bus
	primary   *chargerctl.Charger
	secondary *chargerctl.Charger
	desc      *config.Description

	state State
}

// NewController builds a Controller over the configured primary and
// (optional) fast charger names. If no fast charger is configured the
// controller starts, and stays, Unsupported.
func NewController(bus *psb.Bus, desc *config.Description) *Controller {
	c := &Controller{bus: bus, desc: desc, state: StateIdle}
	if len(desc.ChargerNames) > 0 {
		c.primary = chargerctl.New(bus, desc.ChargerNames[0])
	}
	if len(desc.FastChargerNames) == 0 {
		c.state = StateUnsupported
		return c
	}
	c.secondary = chargerctl.New(bus, desc.FastChargerNames[0])
	return c
}

// State returns the current FSM state.
func (c *Controller) State() State { return c.state }

// gate decides, from voltage alone, whether the handshake should be
// armed. The Open Question of spec.md §9 over whether current draw
// should also gate entry was resolved in favor of the already-
// implemented voltage-only behavior: current-based gating is not
// implemented.
func (c *Controller) gate(voltageUV int32) bool {
	return voltageUV >= c.desc.VFastChargeEnableUV
}

func (c *Controller) shouldDisable(voltageUV int32) bool {
	return voltageUV <= c.desc.VFastChargeDisableUV
}

// Evaluate drives the FSM for one tick given the fuel gauge's current
// voltage, returning the (possibly unchanged) state and an error if a
// transition's bus operations failed partway and had to roll back.
func (c *Controller) Evaluate(voltageUV int32) (State, error) {
	if c.state == StateUnsupported {
		return c.state, nil
	}

	switch c.state {
	case StateIdle:
		if c.gate(voltageUV) {
			c.state = StateArmEnable
		}
	case StateArmEnable:
		if !c.gate(voltageUV) {
			c.state = StateIdle
			return c.state, nil
		}
		if err := c.enable(); err != nil {
			c.rollbackToNormal()
			c.state = StateIdle
			return c.state, fmt.Errorf("fastcharge: enable handshake failed: %w", err)
		}
		c.state = StateEnabled
	case StateEnabled:
		if c.shouldDisable(voltageUV) {
			c.state = StateArmDisable
		}
	case StateArmDisable:
		if !c.shouldDisable(voltageUV) {
			c.state = StateEnabled
			return c.state, nil
		}
		if err := c.disable(); err != nil {
			return c.state, fmt.Errorf("fastcharge: disable handshake failed: %w", err)
		}
		c.state = StateIdle
	}

	return c.state, nil
}

// enable runs the atomic enable sequence of spec.md §4.3: primary
// FAST_ENABLE, then secondary FAST_ENABLE, then request the 9V rail,
// then enable the secondary charger. Any failure rolls back everything
// already applied and returns an error; the caller (Evaluate) additionally
// forces the normal rail back on.
func (c *Controller) enable() error {
	if err := c.primary.Command(psb.CmdFastEnable); err != nil {
		return err
	}
	if err := c.secondary.Command(psb.CmdFastEnable); err != nil {
		_ = c.primary.Command(psb.CmdFastDisable)
		return err
	}
	if err := chargerctl.SetFastVoltage(c.bus, c.secondary.Name, true); err != nil {
		_ = c.secondary.Command(psb.CmdFastDisable)
		_ = c.primary.Command(psb.CmdFastDisable)
		return err
	}
	if err := c.secondary.Enable(); err != nil {
		_ = chargerctl.SetFastVoltage(c.bus, c.secondary.Name, false)
		_ = c.secondary.Command(psb.CmdFastDisable)
		_ = c.primary.Command(psb.CmdFastDisable)
		return err
	}
	return nil
}

// disable tears the handshake down in reverse order: disable the
// secondary charger, drop the rail back to 5V, then FAST_DISABLE both
// sides.
func (c *Controller) disable() error {
	_ = c.secondary.Disable()
	_ = chargerctl.SetFastVoltage(c.bus, c.secondary.Name, false)
	if err := c.secondary.Command(psb.CmdFastDisable); err != nil {
		return err
	}
	return c.primary.Command(psb.CmdFastDisable)
}

// rollbackToNormal forces the secondary charger off and the rail back
// to 5V, used when enable() fails partway and the FSM returns to Idle.
func (c *Controller) rollbackToNormal() {
	if c.secondary == nil {
		return
	}
	_ = c.secondary.Disable()
	_ = chargerctl.SetFastVoltage(c.bus, c.secondary.Name, false)
	_ = c.secondary.Command(psb.CmdFastDisable)
	if c.primary != nil {
		_ = c.primary.Command(psb.CmdFastDisable)
	}
}

// ActiveTable selects which JEITA table name should be in effect: the
// FastCharge table while Enabled or transitioning out of it, otherwise
// the table for the currently observed USB charger type.
func (c *Controller) ActiveTable(observed config.ChargerType) config.ChargerType {
	if c.state == StateEnabled || c.state == StateArmDisable {
		return config.ChargerFastCharge
	}
	return observed
}
