package uvlo

import "testing"

func TestWatcher_FiresOnceAfterFiveConsecutiveTicks(t *testing.T) {
	w := NewWatcher(3200000, 3250000)

	for i := 0; i < shutdownStreak-1; i++ {
		if w.Evaluate(3100000) {
			t.Fatalf("should not fire before %d consecutive ticks (tick %d)", shutdownStreak, i+1)
		}
	}
	if !w.Evaluate(3100000) {
		t.Fatalf("expected shutdown request on the %dth consecutive below-threshold tick", shutdownStreak)
	}
	if w.Evaluate(3100000) {
		t.Fatalf("must not fire a second time in the same session")
	}
	if !w.Fired() {
		t.Fatalf("Fired() should report the latch")
	}
}

func TestWatcher_StreakResetsAboveThreshold(t *testing.T) {
	w := NewWatcher(3200000, 3250000)
	w.Evaluate(3100000)
	w.Evaluate(3100000)
	w.Evaluate(3300000) // recovers above threshold, resets streak

	for i := 0; i < shutdownStreak-1; i++ {
		if w.Evaluate(3100000) {
			t.Fatalf("streak should have reset after recovery (tick %d)", i+1)
		}
	}
	if !w.Evaluate(3100000) {
		t.Fatalf("expected shutdown request after a fresh full streak")
	}
}

func TestWatcher_CalibratePendingConsumedOnce(t *testing.T) {
	w := NewWatcher(3200000, 3250000)
	w.Evaluate(3240000)
	if !w.CalibratePending() {
		t.Fatalf("expected calibrate-pending to be set below the calibrate threshold")
	}
	if w.CalibratePending() {
		t.Fatalf("CalibratePending should consume and clear the flag")
	}
}
