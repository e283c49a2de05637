package capacity

import (
	"fmt"
)

// TrackerState is a state of the Capacity Tracker FSM, per spec.md §4.7.
type TrackerState int

// States of the tracker state machine.
const (
	TrackerInit TrackerState = iota
	TrackerIdle
	TrackerUpdating
	TrackerDone
	TrackerErr
)

// String names a tracker state for logs and status output.
func (s TrackerState) String() string {
	switch s {
	case TrackerInit:
		return "init"
	case TrackerIdle:
		return "idle"
	case TrackerUpdating:
		return "updating"
	case TrackerDone:
		return "done"
	case TrackerErr:
		return "err"
	default:
		return "unknown"
	}
}

// ocvToStartCapPerMille is a coarse lookup mapping an at-rest OCV
// reading to an estimated starting state-of-charge, used to seed the
// Updating state's coulomb integration baseline. Values are typical for
// a 4.35 V-ceiling Li-ion cell; the abort threshold (200‰) guards
// against starting the learner from a battery that is not actually
// near-empty.
var ocvToStartCapPerMille = []struct {
	ocvUV   int32
	perMille int32
}{
	{3200000, 0},
	{3300000, 20},
	{3400000, 50},
	{3500000, 100},
	{3600000, 150},
	{3650000, 200},
	{3700000, 250},
}

func lookupStartCap(ocvUV int32) int32 {
	if ocvUV <= ocvToStartCapPerMille[0].ocvUV {
		return ocvToStartCapPerMille[0].perMille
	}
	for i := 1; i < len(ocvToStartCapPerMille); i++ {
		if ocvUV <= ocvToStartCapPerMille[i].ocvUV {
			lo, hi := ocvToStartCapPerMille[i-1], ocvToStartCapPerMille[i]
			span := hi.ocvUV - lo.ocvUV
			if span == 0 {
				return lo.perMille
			}
			frac := ocvUV - lo.ocvUV
			return lo.perMille + (hi.perMille-lo.perMille)*frac/span
		}
	}
	last := ocvToStartCapPerMille[len(ocvToStartCapPerMille)-1]
	return last.perMille
}

// Tracker learns the battery's design full capacity by coulomb
// integration between a known-empty start and a known-full end,
// persisting the learned value XOR-encrypted to a file via the
// temp-file-and-rename save in this package's codec.go, re-deriving
// state on load failure.
type Tracker struct {
	path string
	k0   uint32
	k1   uint32

	DesignMAh int32
	TimeoutS  int64

	state            TrackerState
	startCapPerMille int32
	startEnergyUAh   int32
	startTimeS       int64
}

// NewTracker constructs a Tracker and attempts the Init state: loading
// and validating any existing persistent file, adopting its value as
// the design capacity when it is plausible (within half of the
// configured design capacity).
func NewTracker(path string, k0, k1 uint32, designMAh int32, timeoutS int64) *Tracker {
	t := &Tracker{path: path, k0: k0, k1: k1, DesignMAh: designMAh, TimeoutS: timeoutS}
	stored, err := LoadFile(path, k0, k1, 5)
	if err != nil {
		// No valid file yet; this is normal on first run, not a fault.
		t.state = TrackerIdle
		return t
	}
	if abs32(int32(stored)-designMAh) < designMAh/2 {
		t.DesignMAh = int32(stored)
	}
	t.state = TrackerIdle
	return t
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// State returns the tracker's current FSM state.
func (t *Tracker) State() TrackerState { return t.state }

// TryStart evaluates the Idle->Updating start conditions of spec.md
// §4.7 and begins tracking if they hold. chargerMode distinguishes a
// charger-only boot (androidboot.mode=charger, spec.md §6) from a
// normal boot, which use different rest-detection thresholds.
func (t *Tracker) TryStart(nowS int64, chargerMode bool, vBootUV, ocvUV, currentNowUA, energyNowUAh int32) {
	if t.state != TrackerIdle {
		return
	}
	atRest := false
	if chargerMode {
		atRest = vBootUV <= 3_500_000 && ocvUV <= 3_650_000
	} else {
		atRest = abs32(currentNowUA) <= 30_000 && ocvUV <= 3_650_000
	}
	if !atRest {
		return
	}
	startCap := lookupStartCap(ocvUV)
	if startCap > 200 {
		// Battery isn't actually near empty; this OCV reading doesn't
		// qualify as a learning start point.
		return
	}
	t.startCapPerMille = startCap
	t.startEnergyUAh = energyNowUAh
	t.startTimeS = nowS
	t.state = TrackerUpdating
}

// Tick advances the Updating state: timing out back to Idle, or, once
// the battery reaches full per the given thresholds, computing the
// learned design capacity and persisting it on success.
func (t *Tracker) Tick(nowS int64, vFullUV, iFullUA, voltageNowUV, currentNowUA, energyNowUAh int32) error {
	if t.state != TrackerUpdating {
		return nil
	}
	if nowS-t.startTimeS > t.TimeoutS {
		t.state = TrackerIdle
		return nil
	}
	if voltageNowUV >= vFullUV-5_000 && currentNowUA < iFullUA+5_000 {
		learned := t.DesignMAh*t.startCapPerMille/1000 + (energyNowUAh-t.startEnergyUAh)/1000
		if abs32(learned-t.DesignMAh) < t.DesignMAh/2 {
			t.DesignMAh = learned
			t.state = TrackerDone
			if err := t.persist(); err != nil {
				t.state = TrackerErr
				return fmt.Errorf("capacity: tracker persist failed: %w", err)
			}
			t.state = TrackerIdle
			return nil
		}
		t.state = TrackerIdle
	}
	return nil
}

func (t *Tracker) persist() error {
	return SaveFile(t.path, uint32(t.DesignMAh), t.k0, t.k1)
}
