// Package monitor is the central orchestrator of spec.md §4.1: the
// periodic tick that reads sensors once per cycle and drives the
// JEITA controller, fast-charge FSM, full-battery detector, guards,
// capacity filter, and UVLO watcher in the fixed order spec.md
// prescribes, emitting notifications through the notify facade, all
// driven from a single goroutine selecting over a ticker, a
// config-update channel, an event channel, and the context's Done
// channel.
package monitor

import (
	"time"

	"github.com/qzeleza/chargerman/internal/notify"
)

// StatusFlags is the bitset RuntimeState.charging_status from spec.md
// §3.
type StatusFlags uint8

// Individual status bits, per spec.md §3.
const (
	FlagTempOverheat StatusFlags = 1 << iota
	FlagTempCold
	FlagDurationAbnormal
	FlagVoltageAbnormal
	FlagHealthAbnormal
)

// Set returns flags with bit set (or cleared) according to v.
func (f StatusFlags) Set(bit StatusFlags, v bool) StatusFlags {
	if v {
		return f | bit
	}
	return f &^ bit
}

// Has reports whether bit is set.
func (f StatusFlags) Has(bit StatusFlags) bool { return f&bit != 0 }

// FastChargeState is the subset of RuntimeState tracking fast-charge
// bookkeeping the monitor exposes for status/diagnostics.
type FastChargeState struct {
	IsSupported  bool
	IsEnabled    bool
	EnableCount  int
	DisableCount int
}

// JeitaState mirrors RuntimeState's jeita bookkeeping.
type JeitaState struct {
	LastZone   string
	Disabled   bool
}

// RuntimeState is the monitor-owned state of spec.md §3, mutated only
// from the monitor's serialized execution context (§5).
type RuntimeState struct {
	ChargerEnabled  bool
	ChargingStartMS int64
	ChargingEndMS   int64

	// EmergencyStop is non-nil when a temperature fault is latched;
	// its Kind names which one (BATT_OVERHEAT or BATT_COLD).
	EmergencyStop *notify.Kind

	ChargingStatus StatusFlags
	ChargerType    int

	FastCharge FastChargeState
	Jeita      JeitaState

	UVLOTriggerCount int
	ForceSetFull     bool

	TemperatureDeciC int32

	TrackerState string

	// FullBattVCheckDeadlineMS is not written by the monitor and stays
	// 0; the full-battery recheck deadline is kept inside
	// fullbatt.Detector.
	FullBattVCheckDeadlineMS int64

	ReportedPerMille int32

	LastTick time.Time
}

// Invariant reports whether the two core invariants spec.md §3 names
// hold: charger_enabled implies no latched emergency, and the reported
// percentage stays in range. Exposed for tests, per spec.md §8.
func (s *RuntimeState) Invariant() bool {
	if s.ChargerEnabled && s.EmergencyStop != nil {
		return false
	}
	if s.ReportedPerMille < 0 || s.ReportedPerMille > 1000 {
		return false
	}
	return true
}
