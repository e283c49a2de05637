// Package capacity implements the Capacity Filter and Capacity Tracker
// of spec.md §4.6-4.7: rate-limiting the fuel gauge's raw per-mille SOC
// into a slowly-changing, 1%-resolution reported value, and learning
// the battery's design capacity by coulomb integration between a
// known-empty start and a known-full end, rate-limited by comparing
// elapsed time against a configured minimum before accepting a new
// value, per the full slew-rate table of spec.md §4.6.
package capacity

import (
	"time"
)

// ChargeState is the charge/discharge/full classification the filter's
// rules switch on.
type ChargeState int

// Charge states the filter distinguishes, per spec.md §4.6.
const (
	StateIdle ChargeState = iota
	StateCharging
	StateDischarging
	StateFull
)

const (
	minPerMille = 0
	maxPerMille = 1000

	// trickleEnterPerMille is the 98.6% threshold spec.md §4.6 clamps at
	// while charging.
	trickleEnterPerMille = 986
	// trickleClampPerMille is the ceiling held during the trickle window.
	trickleClampPerMille = 994
	// dropHighWaterPerMille is the 95.5% threshold above which discharge
	// drops are metered in discrete steps.
	dropHighWaterPerMille = 955
	dropStepPerMille       = 8
)

// Input is one tick's worth of data the filter needs, already resolved
// by the caller (the monitor) from a sensors.Reading.
type Input struct {
	Now             time.Time
	RawSOCPerMille  int32
	ExternalPower   bool
	State           ChargeState
	CurrentNowUA    int32
	TempDeciC       int32
	VoltageNowUV    int32
	VLowTempShutUV  int32
	PerPercentMinS  int64
	TrickleTimeoutS int64
}

// Filter owns the debounce/slew state for one fuel gauge's reported SOC.
type Filter struct {
	reported     int32
	initialized  bool
	lastAccepted time.Time
	lastTick     time.Time

	trickleStart time.Time
	inTrickle    bool

	forceFull bool
	lowTempHits int
}

// NewFilter creates a Filter with no prior reading; the first Update
// call seeds reported directly from the raw SOC.
func NewFilter() *Filter {
	return &Filter{}
}

// Reported returns the last accepted, already-clamped per-mille value.
func (f *Filter) Reported() int32 { return f.reported }

// ForceSetFull reports whether the trickle window just forced a
// full-battery re-declaration this tick (spec.md §4.6's
// force_set_full flag), consumed and cleared by the caller.
func (f *Filter) ForceSetFull() bool {
	v := f.forceFull
	f.forceFull = false
	return v
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Update runs one tick of the capacity filter and returns the new
// reported value (also available afterward via Reported). changed
// reports whether the 1%-rounded value differs from before the call.
func (f *Filter) Update(in Input) (reported int32, changed bool) {
	raw := clamp(in.RawSOCPerMille, minPerMille, maxPerMille)

	if !f.initialized {
		f.reported = raw
		f.initialized = true
		f.lastAccepted = in.Now
		f.lastTick = in.Now
		return f.reported, true
	}

	prevRounded := roundToPercent(f.reported)
	deltaT := in.Now.Sub(f.lastTick)
	deltaF := in.Now.Sub(f.lastAccepted)
	f.lastTick = in.Now

	// Forced-zero rule: cold and critically low voltage for two
	// consecutive ticks.
	if in.TempDeciC <= 100 && in.VoltageNowUV <= in.VLowTempShutUV {
		f.lowTempHits++
	} else {
		f.lowTempHits = 0
	}
	if f.lowTempHits >= 2 {
		f.reported = 0
		f.lastAccepted = in.Now
		return f.reported, roundToPercent(f.reported) != prevRounded
	}

	perPercentS := in.PerPercentMinS
	if perPercentS <= 0 {
		perPercentS = 1
	}
	maxAdvance := int32(10 * float64(deltaF.Seconds()) / float64(perPercentS))
	minRetreat := int32(10 * float64(deltaF.Seconds()) / float64(perPercentS))
	if minRetreat < 5 {
		minRetreat = 5
	}

	next := f.reported

	switch in.State {
	case StateFull:
		if in.ExternalPower {
			if raw != maxPerMille {
				next = maxPerMille
			} else if f.reported < maxPerMille {
				next = f.reported + 1
			} else {
				next = maxPerMille
			}
		} else {
			next = maxPerMille
		}

	case StateCharging:
		if raw >= trickleEnterPerMille {
			if !f.inTrickle {
				f.inTrickle = true
				f.trickleStart = in.Now
			}
			trickleElapsed := int64(in.Now.Sub(f.trickleStart).Seconds())
			if trickleElapsed >= in.TrickleTimeoutS {
				next = maxPerMille
				f.forceFull = true
				f.inTrickle = false
			} else {
				next = trickleClampPerMille
				if f.reported < next {
					// still climb toward the clamp under the normal
					// advance limits, never skip straight to it.
					if raw < next {
						next = raw
					}
					if deltaT < time.Duration(perPercentS)*time.Second {
						if next > f.reported+5 {
							next = f.reported + 5
						}
					} else if maxAdvance > 0 && next > f.reported+maxAdvance {
						next = f.reported + maxAdvance
					}
					if next > trickleClampPerMille {
						next = trickleClampPerMille
					}
				} else {
					next = f.reported
				}
			}
		} else {
			f.inTrickle = false
			if raw < f.reported {
				floor := f.reported - minRetreat
				if floor < raw {
					next = raw
				}
				if next < floor {
					next = floor
				}
			} else if raw > f.reported {
				if deltaT < time.Duration(perPercentS)*time.Second {
					next = f.reported + 5
				} else if maxAdvance > 0 {
					next = f.reported + maxAdvance
				}
				if next > raw {
					next = raw
				}
			}
		}

	case StateDischarging, StateIdle:
		f.inTrickle = false
		if raw > f.reported {
			next = f.reported
		} else if raw < f.reported {
			if f.reported > dropHighWaterPerMille {
				if deltaF >= time.Duration(perPercentS)*time.Second {
					next = f.reported - dropStepPerMille
					if next < raw {
						next = raw
					}
				}
			} else {
				floor := f.reported - minRetreat
				next = raw
				if next < floor {
					next = floor
				}
			}
		}
	}

	next = clamp(next, minPerMille, maxPerMille)
	if next != f.reported {
		f.lastAccepted = in.Now
	}
	f.reported = next

	return f.reported, roundToPercent(f.reported) != prevRounded
}

// roundToPercent rounds a per-mille value to the nearest whole percent,
// the resolution at which spec.md §4.6 requires external consumers see
// a change.
func roundToPercent(perMille int32) int32 {
	return (perMille + 5) / 10
}
