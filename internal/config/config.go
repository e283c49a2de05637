// Package config loads and persists the Charger Description: the
// immutable-after-load configuration from spec.md §3, plus a small
// mutable Tuning subset (poll interval, log level) that can be
// hot-reloaded without restarting the daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qzeleza/chargerman/internal/logger"
)

// ChargerType mirrors the USB_TYPE classifications the JEITA tables are
// keyed by.
type ChargerType int

// Charger type classifications, per spec.md §3.
const (
	ChargerUnknown ChargerType = iota
	ChargerSDP
	ChargerDCP
	ChargerCDP
	ChargerFastCharge
)

// String renders the charger type for logs and status output.
func (t ChargerType) String() string {
	switch t {
	case ChargerSDP:
		return "SDP"
	case ChargerDCP:
		return "DCP"
	case ChargerCDP:
		return "CDP"
	case ChargerFastCharge:
		return "FastCharge"
	default:
		return "Unknown"
	}
}

// BatteryPresencePolicy selects how the monitor decides whether a
// battery is physically present.
type BatteryPresencePolicy string

// Battery-presence policies, per spec.md §3.
const (
	PresenceAssumePresent BatteryPresencePolicy = "assume-present"
	PresenceAssumeAbsent  BatteryPresencePolicy = "assume-absent"
	PresenceAskFuelGauge  BatteryPresencePolicy = "ask-fuel-gauge"
	PresenceAskAnyCharger BatteryPresencePolicy = "ask-any-charger"
)

// PollingPolicy selects when the monitor's periodic tick runs.
type PollingPolicy string

// Polling policies, per spec.md §3.
const (
	PollDisabled         PollingPolicy = "disabled"
	PollAlways           PollingPolicy = "always"
	PollOnlyWhenAC       PollingPolicy = "only-when-ac"
	PollOnlyWhenCharging PollingPolicy = "only-when-charging"
)

// JEITARow is one band of a JEITA table: at or above temp_enter the
// row's target current and termination voltage apply. temp_recover is
// read only from a table's first row, as the temperature below which
// the cold sink applies; the other rows' temp_recover values are not
// used.
type JEITARow struct {
	TempEnterDeciC   int32 `json:"temp_enter_deci_c"`
	TempRecoverDeciC int32 `json:"temp_recover_deci_c"`
	CurrentUA        int32 `json:"current_ua"`
	VoltageUV        int32 `json:"voltage_uv"`
}

// FullBattery holds the multi-criteria full-detection thresholds of
// spec.md §4.4.
type FullBattery struct {
	VFullUV         int32 `json:"v_full_uv"`
	IFullUA         int32 `json:"i_full_ua"`
	IFirstFullUA    int32 `json:"i_first_full_ua"`
	SOCFullPerMille int32 `json:"soc_full_per_mille"`
	ChargeFullUAh   int32 `json:"charge_full_uah"`
	DeltaVRecheckUV int32 `json:"delta_v_recheck_uv"`
	TRecheckMS      int64 `json:"t_recheck_ms"`
}

// VoltageGuard holds the over-voltage disable/recover thresholds of
// spec.md §4.5, with separate values for the normal and fast-charge
// voltage rails.
type VoltageGuard struct {
	VChgMaxUV  int32 `json:"v_chg_max_uv"`
	VChgDropUV int32 `json:"v_chg_drop_uv"`
}

// Description is the immutable Charger Description (spec.md §3),
// fixed for the lifetime of a Monitor once loaded.
type Description struct {
	ChargerNames     []string `json:"charger_names"`
	FastChargerNames []string `json:"fast_charger_names"`
	FuelGaugeName    string   `json:"fuel_gauge_name"`

	BatteryPresence BatteryPresencePolicy `json:"battery_presence"`
	Polling         PollingPolicy         `json:"polling_policy"`

	FullBattery   FullBattery              `json:"full_battery"`
	JEITATables   map[string][]JEITARow    `json:"jeita_tables"`
	TempMinDeciC  int32                    `json:"temp_min_deci_c"`
	TempMaxDeciC  int32                    `json:"temp_max_deci_c"`
	TempHystDeciC int32                    `json:"temp_hysteresis_deci_c"`

	VoltageNormal VoltageGuard `json:"voltage_guard_normal"`
	VoltageFast   VoltageGuard `json:"voltage_guard_fast"`

	ChargingMaxDurationMS    int64 `json:"charging_max_duration_ms"`
	DischargingMaxDurationMS int64 `json:"discharging_max_duration_ms"`

	VShutdownUV        int32 `json:"v_shutdown_uv"`
	VUVLOCalibrateUV    int32 `json:"v_uvlo_calibrate_uv"`
	VLowTempShutdownUV  int32 `json:"v_low_temp_shutdown_uv"`
	TrickleTimeoutS     int64 `json:"trickle_timeout_s"`
	PerPercentMinTimeS  int64 `json:"per_percent_min_time_s"`
	WatchdogIntervalMS  int64 `json:"watchdog_interval_ms"`

	VFastChargeEnableUV  int32 `json:"v_fast_charge_enable_uv"`
	VFastChargeDisableUV int32 `json:"v_fast_charge_disable_uv"`
	IFastChargeEnableUA  int32 `json:"i_fast_charge_enable_ua"`
	DoubleICTotalLimitUA int32 `json:"double_ic_total_limit_ua"`

	TrackerKey0        uint32 `json:"tracker_key0"`
	TrackerKey1        uint32 `json:"tracker_key1"`
	DesignCapacityMAh  int32  `json:"design_capacity_mah"`
	TrackerTimeoutS    int64  `json:"tracker_timeout_s"`

	Tuning Tuning `json:"tuning"`
}

// Tuning is the mutable subset of the configuration: values an operator
// may change at runtime via config.json without losing the safety
// invariants carried by Description's other fields.
type Tuning struct {
	PollIntervalMS int64  `json:"poll_interval_ms"`
	LogLevel       string `json:"log_level"`
	DebugEnabled   bool   `json:"debug_enabled"`
	LogEnabled     bool   `json:"log_enabled"`
	LogRotationLines int  `json:"log_rotation_lines"`
	UseSimulator   bool   `json:"use_simulator"`
}

// JEITATable returns the rows configured for the given charger type,
// falling back to the Unknown table. The rows are returned as stored and
// are not sorted here.
func (d *Description) JEITATable(t ChargerType) []JEITARow {
	if rows, ok := d.JEITATables[t.String()]; ok {
		return rows
	}
	return d.JEITATables[ChargerUnknown.String()]
}

// bootModeEnv stands in for the kernel boot cmdline's androidboot.mode=
// parameter, which a user-space daemon has no cmdline to parse for.
const bootModeEnv = "CHARGERMAND_BOOT_MODE"

// BootMode reports the boot mode the daemon started in: "calibration",
// "charger", or "" for a normal boot, read once from bootModeEnv. The
// capacity Tracker's rest-detection thresholds (spec.md §4.7) differ
// between a charger-only boot and a normal one.
func BootMode() string {
	switch os.Getenv(bootModeEnv) {
	case "calibration":
		return "calibration"
	case "charger":
		return "charger"
	default:
		return ""
	}
}

// Manager loads, persists and watches the configuration file.
type Manager struct {
	path string
	log  *logger.Logger
}

// New creates a Manager rooted at configPath, creating its parent
// directory if necessary. An empty configPath is an error.
func New(log *logger.Logger, configPath string) (*Manager, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config: empty config path: %w", os.ErrInvalid)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("config: could not create config directory: %w", err)
	}
	return &Manager{path: configPath, log: log}, nil
}

// Path returns the path this Manager reads and writes.
func (m *Manager) Path() string { return m.path }

// Default returns a Description with reasonable defaults for a typical
// 4.35 V Li-ion cell, ready to be edited by an operator.
func Default() *Description {
	return &Description{
		ChargerNames:     []string{"main-charger"},
		FastChargerNames: []string{"fast-charger"},
		FuelGaugeName:    "fuel-gauge",
		BatteryPresence:  PresenceAskFuelGauge,
		Polling:          PollAlways,
		FullBattery: FullBattery{
			VFullUV:         4350000,
			IFullUA:         150000,
			IFirstFullUA:    300000,
			SOCFullPerMille: 1000,
			ChargeFullUAh:   0,
			DeltaVRecheckUV: 50000,
			TRecheckMS:      30_000,
		},
		JEITATables: map[string][]JEITARow{
			ChargerDCP.String(): {
				{TempEnterDeciC: -100, TempRecoverDeciC: -50, CurrentUA: 0, VoltageUV: 4350000},
				{TempEnterDeciC: 0, TempRecoverDeciC: 50, CurrentUA: 700000, VoltageUV: 4350000},
				{TempEnterDeciC: 100, TempRecoverDeciC: 150, CurrentUA: 1500000, VoltageUV: 4350000},
				{TempEnterDeciC: 450, TempRecoverDeciC: 400, CurrentUA: 700000, VoltageUV: 4100000},
				{TempEnterDeciC: 550, TempRecoverDeciC: 500, CurrentUA: 0, VoltageUV: 4100000},
			},
			ChargerUnknown.String(): {
				{TempEnterDeciC: -100, TempRecoverDeciC: -50, CurrentUA: 0, VoltageUV: 4350000},
				{TempEnterDeciC: 0, TempRecoverDeciC: 50, CurrentUA: 500000, VoltageUV: 4350000},
				{TempEnterDeciC: 100, TempRecoverDeciC: 150, CurrentUA: 1000000, VoltageUV: 4350000},
				{TempEnterDeciC: 450, TempRecoverDeciC: 400, CurrentUA: 500000, VoltageUV: 4100000},
				{TempEnterDeciC: 550, TempRecoverDeciC: 500, CurrentUA: 0, VoltageUV: 4100000},
			},
			ChargerFastCharge.String(): {
				{TempEnterDeciC: -100, TempRecoverDeciC: -50, CurrentUA: 0, VoltageUV: 4350000},
				{TempEnterDeciC: 0, TempRecoverDeciC: 50, CurrentUA: 1000000, VoltageUV: 4350000},
				{TempEnterDeciC: 100, TempRecoverDeciC: 150, CurrentUA: 3000000, VoltageUV: 4350000},
				{TempEnterDeciC: 450, TempRecoverDeciC: 400, CurrentUA: 1000000, VoltageUV: 4100000},
				{TempEnterDeciC: 550, TempRecoverDeciC: 500, CurrentUA: 0, VoltageUV: 4100000},
			},
		},
		TempMinDeciC:  0,
		TempMaxDeciC:  500,
		TempHystDeciC: 50,
		VoltageNormal: VoltageGuard{VChgMaxUV: 4400000, VChgDropUV: 50000},
		VoltageFast:   VoltageGuard{VChgMaxUV: 9500000, VChgDropUV: 200000},

		ChargingMaxDurationMS:    6 * 60 * 60 * 1000,
		DischargingMaxDurationMS: 90 * 60 * 1000,

		VShutdownUV:        3200000,
		VUVLOCalibrateUV:   3250000,
		VLowTempShutdownUV: 3300000,
		TrickleTimeoutS:    600,
		PerPercentMinTimeS: 90,
		WatchdogIntervalMS: 15_000,

		VFastChargeEnableUV:  3450000,
		VFastChargeDisableUV: 3350000,
		IFastChargeEnableUA:  500000,
		DoubleICTotalLimitUA: 4000000,

		TrackerKey0:       0xA5A5F00D,
		TrackerKey1:       0x5A5A0FF0,
		DesignCapacityMAh: 3000,
		TrackerTimeoutS:   30 * 60 * 60,

		Tuning: Tuning{
			PollIntervalMS:   15_000,
			LogLevel:         "info",
			DebugEnabled:     false,
			LogEnabled:       true,
			LogRotationLines: 5000,
			UseSimulator:     false,
		},
	}
}

// Load reads the configuration file, creating it with defaults if it
// does not exist, and filling in any field missing from the file with
// its default value, via a raw-map presence check instead of one
// branch per field.
func (m *Manager) Load() (*Description, error) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		m.log.Info("config file not found, writing defaults")
		def := Default()
		if err := m.Save(def); err != nil {
			return nil, fmt.Errorf("config: could not save default config: %w", err)
		}
		return def, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read config file: %w", err)
	}

	var presence map[string]any
	if err := json.Unmarshal(data, &presence); err != nil {
		return nil, fmt.Errorf("config: malformed config (map pass): %w", err)
	}

	loaded := Default()
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("config: malformed config (struct pass): %w", err)
	}

	if m.mergeMissingTopLevel(loaded, presence) {
		m.log.Info("config file was missing fields; writing merged defaults back")
		if err := m.Save(loaded); err != nil {
			m.log.Error(fmt.Sprintf("config: could not persist merged defaults: %v", err))
		}
	}

	return loaded, nil
}

// mergeMissingTopLevel fills in JEITATables and Tuning wholesale from
// defaults when the file omits them, since those are the fields most
// likely to be hand-edited incompletely. Scalar fields already default
// correctly via json.Unmarshal leaving the Default()-seeded struct
// untouched for absent keys.
func (m *Manager) mergeMissingTopLevel(loaded *Description, presence map[string]any) bool {
	changed := false
	def := Default()
	if _, ok := presence["jeita_tables"]; !ok {
		loaded.JEITATables = def.JEITATables
		changed = true
	}
	if _, ok := presence["tuning"]; !ok {
		loaded.Tuning = def.Tuning
		changed = true
	}
	return changed
}

// Save atomically writes cfg to the config file via a temp file plus
// rename.
func (m *Manager) Save(cfg *Description) error {
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("config: could not create temp file: %w", err)
	}
	defer os.Remove(tmp)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("config: could not encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: could not close temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("config: could not replace config file: %w", err)
	}
	return nil
}
