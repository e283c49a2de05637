// Package fullbatt implements the Full-Battery Detector of spec.md
// §4.4: an OR of several independent criteria (coulomb-counter charge
// full, V/I threshold, soft-full-by-current, SOC threshold), each
// debounced across two consecutive ticks, plus the recharge-on-OCV-drop
// trigger that reopens charging once a full battery's open-circuit
// voltage sags: several independent boolean checks feeding one
// decision, generalized into the full/recharge state machine.
package fullbatt

import (
	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/sensors"
)

// stabilityTicks is the number of consecutive ticks a full-detection
// criterion must hold before being trusted, per spec.md §4.4.
const stabilityTicks = 2

// Detector owns the debounce and recharge state for one battery.
type Detector struct {
	cfg *config.FullBattery

	full       bool
	softFull   bool
	streak     int
	lastStreak bool

	// vAtFull is the fuel gauge's OCV reading captured at the moment
	// full was declared, the baseline the recharge trigger compares
	// against.
	vAtFull int32

	// recheckAtMS is the monitor-clock deadline (ms since start) for the
	// next scheduled recheck-after-full poll, or 0 if none pending.
	recheckAtMS int64
}

// NewDetector builds a Detector over the full-battery thresholds of a
// loaded Description.
func NewDetector(cfg *config.FullBattery) *Detector {
	return &Detector{cfg: cfg}
}

// IsFull reports whether the battery is currently considered full.
func (d *Detector) IsFull() bool { return d.full }

// meetsCriteria evaluates the spec.md §4.4 OR of independent full
// signals against one sensor reading.
func (d *Detector) meetsCriteria(r sensors.Reading) (met bool, soft bool) {
	if d.cfg.ChargeFullUAh > 0 && r.ChargeNowUAh >= d.cfg.ChargeFullUAh {
		return true, false
	}
	if r.VoltageNowUV >= d.cfg.VFullUV && r.CurrentNowUA <= d.cfg.IFullUA && r.CurrentNowUA >= 0 {
		return true, false
	}
	if r.VoltageNowUV >= d.cfg.VFullUV && r.CurrentNowUA <= d.cfg.IFirstFullUA && r.CurrentNowUA >= 0 {
		return true, true
	}
	if d.cfg.SOCFullPerMille > 0 && r.SOCPerMille >= d.cfg.SOCFullPerMille {
		return true, false
	}
	return false, false
}

// Evaluate runs one tick of full-battery detection. nowMS is the
// monitor clock in milliseconds since start, used to schedule the
// recheck-after-full poll. It returns true only on the tick that full
// is declared; a recharge that clears full returns false.
func (d *Detector) Evaluate(r sensors.Reading, nowMS int64) (becameFull bool) {
	if d.full {
		d.evaluateRecharge(r, nowMS)
		return false
	}

	met, soft := d.meetsCriteria(r)
	if !met {
		d.streak = 0
		return false
	}

	if d.streak == 0 || d.lastStreak != met {
		d.streak = 1
	} else {
		d.streak++
	}
	d.lastStreak = met

	if d.streak < stabilityTicks {
		return false
	}

	d.full = true
	d.softFull = soft
	d.vAtFull = r.VoltageOCVUV
	d.recheckAtMS = nowMS + d.cfg.TRecheckMS
	d.streak = 0
	return true
}

// evaluateRecharge implements spec.md §4.4's recharge-on-drop trigger:
// once full, a drop of delta_v_recheck below the OCV captured at full
// time, observed at (or after) the scheduled recheck deadline, clears
// full status and reopens charging.
func (d *Detector) evaluateRecharge(r sensors.Reading, nowMS int64) {
	if nowMS < d.recheckAtMS {
		return
	}
	d.recheckAtMS = nowMS + d.cfg.TRecheckMS
	if r.VoltageOCVUV <= d.vAtFull-d.cfg.DeltaVRecheckUV {
		d.full = false
		d.softFull = false
		d.streak = 0
	}
}

// ForceSetFull marks the battery full immediately, bypassing debounce,
// for the soft-full latch spec.md §4.4 describes when i_first_full_ua
// is reached: charging continues in trickle but the UI-facing full flag
// is raised early.
func (d *Detector) ForceSetFull(r sensors.Reading, nowMS int64) {
	d.full = true
	d.softFull = true
	d.vAtFull = r.VoltageOCVUV
	d.recheckAtMS = nowMS + d.cfg.TRecheckMS
}

// SoftFull reports whether the current full status was reached via the
// soft (i_first_full) criterion rather than a hard threshold.
func (d *Detector) SoftFull() bool { return d.softFull }
