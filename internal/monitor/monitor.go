package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/qzeleza/chargerman/internal/capacity"
	"github.com/qzeleza/chargerman/internal/chargerctl"
	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/fastcharge"
	"github.com/qzeleza/chargerman/internal/fullbatt"
	"github.com/qzeleza/chargerman/internal/guards"
	"github.com/qzeleza/chargerman/internal/jeita"
	"github.com/qzeleza/chargerman/internal/logger"
	"github.com/qzeleza/chargerman/internal/notify"
	"github.com/qzeleza/chargerman/internal/paths"
	"github.com/qzeleza/chargerman/internal/psb"
	"github.com/qzeleza/chargerman/internal/sensors"
	"github.com/qzeleza/chargerman/internal/uvlo"
)

// minWakeInterval is the RTC-alarm floor of spec.md §4.1: the
// scheduler never arms a suspend-time wakeup sooner than this.
const minWakeInterval = 2 * time.Second

// Monitor wires every domain component together and drives the tick
// procedure of spec.md §4.1.
type Monitor struct {
	mu sync.Mutex

	id  string
	cfg *config.Description
	log *logger.Logger
	bus *psb.Bus

	chargers []*chargerctl.Charger
	primary  *chargerctl.Charger

	sensorReader *sensors.Reader
	jeitaCtl     *jeita.Controller
	fastCtl      *fastcharge.Controller
	fullDet      *fullbatt.Detector
	durGuard     *guards.DurationGuard
	voltNormal   *guards.VoltageGuard
	voltFast     *guards.VoltageGuard
	healthGuard  *guards.HealthGuard
	capFilter    *capacity.Filter
	tracker      *capacity.Tracker
	uvloWatcher  *uvlo.Watcher
	notify       *notify.Facade

	state     RuntimeState
	startTime time.Time
	suspended bool

	pendingUVLOCheck bool

	// activeJeitaTable is the charger type whose table jeitaCtl is
	// currently loaded with. SetTable resets the controller's debounce
	// streak, so it must only be called when this actually changes, not
	// on every tick.
	activeJeitaTable    config.ChargerType
	activeJeitaTableSet bool

	// chargerModeBoot records config.BootMode()'s reading at construction
	// time, since a user-space daemon only learns this once at startup.
	chargerModeBoot bool
}

// New builds a Monitor for the given Description, wiring every
// component over the shared bus. id identifies this instance in the
// package Registry.
func New(id string, cfg *config.Description, bus *psb.Bus, log *logger.Logger, sink notify.Sink) *Monitor {
	chargers := make([]*chargerctl.Charger, 0, len(cfg.ChargerNames))
	for _, name := range cfg.ChargerNames {
		chargers = append(chargers, chargerctl.New(bus, name))
	}
	var primary *chargerctl.Charger
	if len(chargers) > 0 {
		primary = chargers[0]
	}

	m := &Monitor{
		id:              id,
		cfg:             cfg,
		log:             log,
		bus:             bus,
		chargers:        chargers,
		primary:         primary,
		sensorReader:    sensors.NewReader(bus, cfg),
		jeitaCtl:        jeita.NewController(cfg.JEITATable(config.ChargerUnknown)),
		fastCtl:         fastcharge.NewController(bus, cfg),
		fullDet:         fullbatt.NewDetector(&cfg.FullBattery),
		durGuard:        guards.NewDurationGuard(cfg),
		voltNormal:      guards.NewVoltageGuard(cfg.VoltageNormal),
		voltFast:        guards.NewVoltageGuard(cfg.VoltageFast),
		healthGuard:     guards.NewHealthGuard(bus, cfg.ChargerNames),
		capFilter:       capacity.NewFilter(),
		tracker:         capacity.NewTracker(paths.TrackerPath(), cfg.TrackerKey0, cfg.TrackerKey1, cfg.DesignCapacityMAh, cfg.TrackerTimeoutS),
		uvloWatcher:     uvlo.NewWatcher(cfg.VShutdownUV, cfg.VUVLOCalibrateUV),
		notify:          notify.NewFacade(sink),
		startTime:       time.Now(),
		chargerModeBoot: config.BootMode() == "charger",
	}
	return m
}

// State returns a copy of the current RuntimeState snapshot, safe to
// read concurrently with ticking.
func (m *Monitor) State() RuntimeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) nowMS(now time.Time) int64 {
	return now.Sub(m.startTime).Milliseconds()
}

// Tick runs one full evaluation cycle, the serialized procedure of
// spec.md §4.1. It is safe to call from any goroutine; internally
// serialized by m.mu.
func (m *Monitor) Tick(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickLocked(now)
}

func (m *Monitor) tickLocked(now time.Time) error {
	nowMS := m.nowMS(now)
	m.state.LastTick = now

	// Step 1: feed the watchdog across all chargers.
	for _, c := range m.chargers {
		if err := c.FeedWatchdog(); err != nil {
			m.log.Check(fmt.Sprintf("monitor[%s]: feed watchdog on %s failed: %v", m.id, c.Name, err))
		}
	}

	// Step 2: bail out if every charger is externally controlled.
	allExternal := len(m.chargers) > 0
	for _, c := range m.chargers {
		ext, _ := c.ExternallyControlled()
		if !ext {
			allExternal = false
			break
		}
	}
	if allExternal {
		m.log.Info(fmt.Sprintf("monitor[%s]: all chargers externally controlled, skipping tick", m.id))
		return nil
	}

	reading, err := m.sensorReader.Read()
	if err != nil {
		m.log.Error(fmt.Sprintf("monitor[%s]: sensor read failed: %v", m.id, err))
		return nil
	}
	m.state.TemperatureDeciC = reading.TempDeciC
	m.state.ChargerType = int(reading.USBType)

	// Fast-charge FSM evaluation, ahead of JEITA so its state can
	// select the active table.
	fastState, err := m.fastCtl.Evaluate(reading.VoltageNowUV)
	if err != nil {
		m.log.Check(fmt.Sprintf("monitor[%s]: fast-charge evaluation: %v", m.id, err))
	}
	m.state.FastCharge.IsSupported = fastState != fastcharge.StateUnsupported
	m.state.FastCharge.IsEnabled = fastState == fastcharge.StateEnabled

	// Only reload the JEITA table when the active charger type actually
	// changes: SetTable resets the debounce streak, and calling it every
	// tick would prevent the streak from ever reaching debounceTicks.
	activeType := m.fastCtl.ActiveTable(reading.USBType)
	if !m.activeJeitaTableSet || activeType != m.activeJeitaTable {
		m.jeitaCtl.SetTable(m.cfg.JEITATable(activeType))
		m.activeJeitaTable = activeType
		m.activeJeitaTableSet = true
	}

	// Step 3: temperature alert. There is no separate alert check here:
	// the JEITA sink zones below stand in for it. TempMinDeciC,
	// TempMaxDeciC and TempHystDeciC are not read, and a latched
	// temperature emergency clears at the same JEITA boundary that
	// latched it, with no extra hysteresis margin.

	// Step 4: JEITA.
	decision := m.jeitaCtl.Apply(reading.TempDeciC)
	m.state.Jeita.LastZone = decision.Zone.String()

	if decision.Sink {
		kind := notify.KindBattOverheat
		flag := FlagTempOverheat
		if decision.Zone.String() == "below-t0" {
			kind = notify.KindBattCold
			flag = FlagTempCold
		}
		m.latchEmergency(kind, flag)
		m.disableCharging(now)
		m.notify.Emit(notify.Message{Kind: kind, Text: "Discharging"})
		m.runCapacityFilter(now, reading)
		return nil
	}

	// Push the JEITA-selected CC/CV targets to every charger handle, the
	// temperature-banded policy's actual hardware effect.
	for _, c := range m.chargers {
		if err := c.SetCCCV(decision.CurrentUA, decision.VoltageUV); err != nil {
			m.log.Check(fmt.Sprintf("monitor[%s]: set CC/CV on %s failed: %v", m.id, c.Name, err))
		}
	}

	// Step 5: guards in order voltage -> health -> duration.
	guardTripped := false

	voltGuard := m.voltNormal
	if m.state.FastCharge.IsEnabled {
		voltGuard = m.voltFast
	}
	if voltGuard.Evaluate(reading.VoltageNowUV) {
		m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagVoltageAbnormal, true)
		m.disableCharging(now)
		guardTripped = true
	} else {
		m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagVoltageAbnormal, false)
	}

	if !guardTripped {
		if err := m.healthGuard.EvaluateOne(m.primaryName(), reading.Health); err != nil {
			m.log.Check(fmt.Sprintf("monitor[%s]: health guard: %v", m.id, err))
		}
		if m.healthGuard.Disabled(m.primaryName()) {
			m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagHealthAbnormal, true)
			guardTripped = true
		} else {
			m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagHealthAbnormal, false)
		}
	}

	if !guardTripped {
		status := psb.StatusNotCharging
		if m.state.ChargerEnabled {
			status = psb.StatusCharging
		} else if !reading.Online {
			status = psb.StatusDischarging
		}
		if tripped, _ := m.durGuard.Evaluate(now, status, reading.VoltageOCVUV); tripped {
			m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagDurationAbnormal, true)
			m.disableCharging(now)
			m.notify.Emit(notify.Message{Kind: notify.KindChgStartStop, Text: "Discharging"})
			guardTripped = true
		} else if m.state.ChargingStatus.Has(FlagDurationAbnormal) && reading.Online &&
			now.Sub(m.endTime()) > time.Duration(m.cfg.DischargingMaxDurationMS)*time.Millisecond {
			m.state.ChargingStatus = m.state.ChargingStatus.Set(FlagDurationAbnormal, false)
		}
	}

	if guardTripped {
		m.runCapacityFilter(now, reading)
		m.maybeScheduleUVLO(reading)
		return nil
	}

	// Step 6: full-battery recheck while external power is present, the
	// battery has been declared full and charging is currently disabled
	// (post-full recharge-on-drop path).
	if reading.Online && !m.state.ChargerEnabled && m.fullDet.IsFull() {
		m.fullDet.Evaluate(reading, nowMS)
		if !m.fullDet.IsFull() {
			m.enableCharging(now)
			m.notify.Emit(notify.Message{Kind: notify.KindChgStartStop, Text: "Recharging"})
			m.runCapacityFilter(now, reading)
			return nil
		}
		m.runCapacityFilter(now, reading)
		m.maybeScheduleUVLO(reading)
		return nil
	}

	// Step 7: full-battery detection while charging. A soft-full (the
	// i_first_full_ua criterion) reports 100% without disabling the fast
	// logic; only a hard-full criterion stops charging outright.
	if reading.Online && m.state.EmergencyStop == nil {
		if m.fullDet.Evaluate(reading, nowMS) {
			m.state.ForceSetFull = true
			m.notify.Emit(notify.Message{Kind: notify.KindBattFull, Text: "BatteryFull"})
			if m.fullDet.SoftFull() {
				// Soft-full: latch the 100% report but fall through to
				// steps 8-10 so charging keeps running.
				m.fullDet.ForceSetFull(reading, nowMS)
			} else {
				m.disableCharging(now)
				m.runCapacityFilter(now, reading)
				m.maybeScheduleUVLO(reading)
				return nil
			}
		}
	}

	// Step 8: clear emergency/status, enable charging if external power
	// present.
	m.state.EmergencyStop = nil
	m.state.ChargingStatus = 0
	if reading.Online {
		if !m.state.ChargerEnabled {
			m.enableCharging(now)
			m.notify.Emit(notify.Message{Kind: notify.KindChgStartStop, Text: "Charging"})
		}
	} else if m.state.ChargerEnabled {
		m.disableCharging(now)
	}

	// Step 9: capacity filter.
	m.runCapacityFilter(now, reading)

	// Step 10: UVLO scheduling.
	m.maybeScheduleUVLO(reading)

	if m.uvloWatcher.Evaluate(reading.VoltageOCVUV) {
		m.requestShutdown(reading)
	}

	return nil
}

func (m *Monitor) primaryName() string {
	if m.primary == nil {
		return ""
	}
	return m.primary.Name
}

func (m *Monitor) endTime() time.Time {
	return m.startTime.Add(time.Duration(m.state.ChargingEndMS) * time.Millisecond)
}

func (m *Monitor) latchEmergency(kind notify.Kind, flag StatusFlags) {
	k := kind
	m.state.EmergencyStop = &k
	m.state.ChargingStatus = m.state.ChargingStatus.Set(flag, true)
}

func (m *Monitor) enableCharging(now time.Time) {
	if m.state.ChargerEnabled {
		return
	}
	for _, c := range m.chargers {
		if err := c.Enable(); err != nil {
			m.log.Error(fmt.Sprintf("monitor[%s]: enable %s failed: %v", m.id, c.Name, err))
		}
	}
	m.state.ChargerEnabled = true
	m.state.ChargingStartMS = m.nowMS(now)
}

func (m *Monitor) disableCharging(now time.Time) {
	if !m.state.ChargerEnabled {
		return
	}
	for _, c := range m.chargers {
		if err := c.Disable(); err != nil {
			m.log.Error(fmt.Sprintf("monitor[%s]: disable %s failed: %v", m.id, c.Name, err))
		}
	}
	m.state.ChargerEnabled = false
	m.state.ChargingEndMS = m.nowMS(now)
}

func (m *Monitor) runCapacityFilter(now time.Time, reading sensors.Reading) {
	st := capacity.StateIdle
	switch {
	case m.fullDet.IsFull():
		st = capacity.StateFull
	case m.state.ChargerEnabled:
		st = capacity.StateCharging
	case reading.Status == psb.StatusDischarging:
		st = capacity.StateDischarging
	}

	in := capacity.Input{
		Now:             now,
		RawSOCPerMille:  reading.SOCPerMille,
		ExternalPower:   reading.Online,
		State:           st,
		CurrentNowUA:    reading.CurrentNowUA,
		TempDeciC:       reading.TempDeciC,
		VoltageNowUV:    reading.VoltageNowUV,
		VLowTempShutUV:  m.cfg.VLowTempShutdownUV,
		PerPercentMinS:  m.cfg.PerPercentMinTimeS,
		TrickleTimeoutS: m.cfg.TrickleTimeoutS,
	}
	reported, changed := m.capFilter.Update(in)
	m.state.ReportedPerMille = reported
	if m.capFilter.ForceSetFull() {
		m.state.ForceSetFull = true
	}
	if changed {
		m.notify.Emit(notify.Message{Kind: notify.KindOthers, Text: "CapacityChanged"})
	}

	m.runCapacityTracker(now, reading)
}

// runCapacityTracker drives the design-capacity learner's Idle->Updating
// start check and its per-tick coulomb integration, per spec.md §4.7.
// Both calls are no-ops outside their relevant FSM state, so it is safe
// to call on every tick alongside the capacity filter.
func (m *Monitor) runCapacityTracker(now time.Time, reading sensors.Reading) {
	nowS := now.Unix()
	m.tracker.TryStart(nowS, m.chargerModeBoot, reading.VoltageBootUV, reading.VoltageOCVUV, reading.CurrentNowUA, reading.EnergyNowUAh)
	if err := m.tracker.Tick(nowS, m.cfg.FullBattery.VFullUV, m.cfg.FullBattery.IFullUA, reading.VoltageNowUV, reading.CurrentNowUA, reading.EnergyNowUAh); err != nil {
		m.log.Check(fmt.Sprintf("monitor[%s]: capacity tracker: %v", m.id, err))
	}
}

func (m *Monitor) maybeScheduleUVLO(reading sensors.Reading) {
	if reading.VoltageOCVUV < m.cfg.VUVLOCalibrateUV {
		m.pendingUVLOCheck = true
	}
}

func (m *Monitor) requestShutdown(reading sensors.Reading) {
	fg, release, err := m.bus.Acquire(m.cfg.FuelGaugeName)
	if err != nil {
		m.log.Error(fmt.Sprintf("monitor[%s]: UVLO shutdown: cannot reach fuel gauge: %v", m.id, err))
		return
	}
	defer release()
	if err := fg.Set(psb.PROP_CAPACITY, 0); err != nil {
		m.log.Error(fmt.Sprintf("monitor[%s]: UVLO shutdown: could not zero capacity: %v", m.id, err))
	}
	m.log.Fatal(fmt.Sprintf("monitor[%s]: UVLO threshold reached, requesting orderly shutdown", m.id))
}

// OnEvent handles an asynchronously reported event (cable in/out,
// battery presence change, fast-charger detection), per spec.md §4.9.
func (m *Monitor) OnEvent(kind notify.Kind, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == notify.KindBattIn && m.state.EmergencyStop != nil {
		m.state.EmergencyStop = nil
		m.state.ChargingStatus = 0
		m.state.FastCharge.EnableCount = 0
		m.state.FastCharge.DisableCount = 0
		activeType := config.ChargerType(m.state.ChargerType)
		m.jeitaCtl.SetTable(m.cfg.JEITATable(activeType))
		m.activeJeitaTable = activeType
		m.activeJeitaTableSet = true
		_ = m.tickLocked(time.Now())
	}
	m.notify.Emit(notify.Message{Kind: kind, Text: msg})
}

// SuspendPrepare marks the monitor and the notify facade suspended and
// computes the next wakeup interval, floored at the RTC alarm
// granularity. It cancels no pending work.
func (m *Monitor) SuspendPrepare(pollInterval time.Duration, fullBattRecheckRemaining time.Duration) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	m.notify.SuspendPrepare()

	wake := pollInterval
	if fullBattRecheckRemaining > 0 && fullBattRecheckRemaining < wake {
		wake = fullBattRecheckRemaining
	}
	if wake < minWakeInterval {
		wake = minWakeInterval
	}
	return wake
}

// Resume cancels the suspend state, runs one catch-up tick, and
// delivers any buffered notification.
func (m *Monitor) Resume() error {
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()

	if err := m.Tick(time.Now()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify.Resume()
	return nil
}
