// Package uvlo implements the UVLO (under-voltage lockout) Watcher of
// spec.md §4.8: a consecutive-tick counter that, once the fuel gauge's
// voltage has stayed below the shutdown threshold for five ticks,
// writes zero capacity to the fuel gauge and requests an orderly
// platform shutdown exactly once, reusing the same consecutive-sample
// counter shape as the duration guard, applied to a shutdown trigger
// instead of a charge-enable toggle.
package uvlo

// shutdownStreak is the number of consecutive below-threshold ticks
// required before Watcher fires, per spec.md §4.8.
const shutdownStreak = 5

// Watcher tracks the under-voltage streak for one fuel gauge.
type Watcher struct {
	vShutdownUV  int32
	vCalibrateUV int32

	streak int
	fired  bool

	// calibratePending is set when a follow-up read inside the
	// 100-800ms window is owed, consumed by the caller via
	// CalibratePending.
	calibratePending bool
}

// NewWatcher builds a Watcher over the configured shutdown and
// calibrate-follow-up thresholds.
func NewWatcher(vShutdownUV, vCalibrateUV int32) *Watcher {
	return &Watcher{vShutdownUV: vShutdownUV, vCalibrateUV: vCalibrateUV}
}

// Evaluate runs one tick. shutdownRequested is true exactly once, the
// tick the streak first reaches five; it never fires again afterward
// (the platform is expected to be going down).
func (w *Watcher) Evaluate(voltageUV int32) (shutdownRequested bool) {
	if voltageUV < w.vShutdownUV {
		w.streak++
	} else {
		w.streak = 0
	}

	if voltageUV < w.vCalibrateUV {
		w.calibratePending = true
	}

	if w.fired {
		return false
	}
	if w.streak >= shutdownStreak {
		w.fired = true
		return true
	}
	return false
}

// CalibratePending reports and clears whether a follow-up calibration
// read is owed, to be scheduled by the caller 100-800ms out per
// spec.md §4.8.
func (w *Watcher) CalibratePending() bool {
	v := w.calibratePending
	w.calibratePending = false
	return v
}

// Fired reports whether the shutdown condition has already been
// latched this session.
func (w *Watcher) Fired() bool { return w.fired }
