// Package guards implements the three independent safety guards of
// spec.md §4.5: a charging/discharging duration cap, a charger over-
// voltage disable/recover guard, and a per-charger health guard that
// disables on any non-Good reading and recovers when it clears, built
// from elapsed-time and limit comparisons gating a single boolean
// action, generalized into three cooperating guards sharing one
// wall-clock time passed in by the caller.
package guards

import (
	"time"

	"github.com/qzeleza/chargerman/internal/chargerctl"
	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/psb"
)

// DurationGuard caps how long charging or discharging may run
// uninterrupted, per spec.md §4.5, with an exception for a battery
// already close to full by OCV (near-full chargers are allowed to
// trickle past the charging cap without tripping it).
type DurationGuard struct {
	chargingMax    time.Duration
	dischargingMax time.Duration
	nearFullOCVUV  int32

	chargingSince    time.Time
	dischargingSince time.Time
	charging         bool
	discharging      bool
}

// NewDurationGuard builds a DurationGuard from the Description's
// duration limits. nearFullOCVUV is the OCV above which a long charging
// session is exempted from the cap (the battery's own v_full_uv).
func NewDurationGuard(cfg *config.Description) *DurationGuard {
	return &DurationGuard{
		chargingMax:    time.Duration(cfg.ChargingMaxDurationMS) * time.Millisecond,
		dischargingMax: time.Duration(cfg.DischargingMaxDurationMS) * time.Millisecond,
		nearFullOCVUV:  cfg.FullBattery.VFullUV,
	}
}

// Evaluate updates the running-state timers and reports whether the
// relevant cap has been exceeded. status is the psb.Status* value read
// this tick; ocvUV is the fuel gauge's open-circuit voltage.
func (g *DurationGuard) Evaluate(now time.Time, status int64, ocvUV int32) (tripped bool, reason string) {
	switch status {
	case psb.StatusCharging:
		if !g.charging {
			g.charging = true
			g.chargingSince = now
		}
		g.discharging = false
		if ocvUV >= g.nearFullOCVUV {
			return false, ""
		}
		if now.Sub(g.chargingSince) > g.chargingMax {
			return true, "charging-duration-exceeded"
		}
	case psb.StatusDischarging:
		if !g.discharging {
			g.discharging = true
			g.dischargingSince = now
		}
		g.charging = false
		if now.Sub(g.dischargingSince) > g.dischargingMax {
			return true, "discharging-duration-exceeded"
		}
	default:
		g.charging = false
		g.discharging = false
	}
	return false, ""
}

// VoltageGuard disables charging once the fuel gauge's voltage exceeds
// a configured ceiling and recovers once it drops back below the
// ceiling minus a hysteresis margin, per spec.md §4.5.
type VoltageGuard struct {
	cfg     config.VoltageGuard
	tripped bool
}

// NewVoltageGuard builds a VoltageGuard from one of Description's
// VoltageNormal/VoltageFast rails.
func NewVoltageGuard(cfg config.VoltageGuard) *VoltageGuard {
	return &VoltageGuard{cfg: cfg}
}

// Evaluate reports the guard's disable state for this tick's voltage
// reading, tripping at v_chg_max and recovering at v_chg_max - v_chg_drop.
func (g *VoltageGuard) Evaluate(voltageUV int32) (disable bool) {
	if g.tripped {
		if voltageUV <= g.cfg.VChgMaxUV-g.cfg.VChgDropUV {
			g.tripped = false
		}
		return g.tripped
	}
	if voltageUV > g.cfg.VChgMaxUV {
		g.tripped = true
	}
	return g.tripped
}

// HealthGuard disables a named charger whose health leaves
// psb.HealthGood, re-enabling it once health recovers, per spec.md
// §4.5. Each EvaluateOne call handles one charger by name.
type HealthGuard struct {
	chargers map[string]*chargerctl.Charger
	disabled map[string]bool
}

// NewHealthGuard builds a HealthGuard over the named chargers.
func NewHealthGuard(bus *psb.Bus, names []string) *HealthGuard {
	chargers := make(map[string]*chargerctl.Charger, len(names))
	for _, n := range names {
		chargers[n] = chargerctl.New(bus, n)
	}
	return &HealthGuard{chargers: chargers, disabled: make(map[string]bool)}
}

// EvaluateOne updates the guard's latched disable state for one named
// charger given this tick's health reading, issuing the matching
// Enable/Disable bus call on a state transition only.
func (g *HealthGuard) EvaluateOne(name string, health int64) error {
	c, ok := g.chargers[name]
	if !ok {
		return nil
	}
	bad := health != psb.HealthGood
	was := g.disabled[name]
	if bad == was {
		return nil
	}
	g.disabled[name] = bad
	if bad {
		return c.Disable()
	}
	return c.Enable()
}

// Disabled reports whether the named charger is currently held
// disabled by the health guard.
func (g *HealthGuard) Disabled(name string) bool { return g.disabled[name] }
