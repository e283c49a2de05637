package jeita

import (
	"testing"

	"github.com/qzeleza/chargerman/internal/config"
)

func testRows() []config.JEITARow {
	return []config.JEITARow{
		{TempEnterDeciC: -100, TempRecoverDeciC: -50, CurrentUA: 0, VoltageUV: 4350000},
		{TempEnterDeciC: 0, TempRecoverDeciC: 50, CurrentUA: 500000, VoltageUV: 4350000},
		{TempEnterDeciC: 100, TempRecoverDeciC: 150, CurrentUA: 1000000, VoltageUV: 4350000},
		{TempEnterDeciC: 450, TempRecoverDeciC: 400, CurrentUA: 500000, VoltageUV: 4100000},
		{TempEnterDeciC: 550, TempRecoverDeciC: 500, CurrentUA: 0, VoltageUV: 4100000},
	}
}

// TestController_ColdSinkLatchesAfterDebounce verifies a sustained
// below-freezing reading takes three ticks to latch a sink decision,
// not one.
func TestController_ColdSinkLatchesAfterDebounce(t *testing.T) {
	c := NewController(testRows())

	d := c.Apply(-150)
	if d.Sink {
		t.Fatalf("tick 1: sink should not latch immediately, got %+v", d)
	}
	d = c.Apply(-150)
	if d.Sink {
		t.Fatalf("tick 2: sink should not latch yet, got %+v", d)
	}
	d = c.Apply(-150)
	if !d.Sink || d.Zone != ZoneBelowT0 {
		t.Fatalf("tick 3: expected latched cold sink, got %+v", d)
	}
}

// TestController_FreshControllerRequiresFullDebounce covers the
// zero-value startup case: a brand new Controller has nothing committed
// yet, and the very first zone it ever sees is no exception to the
// three-tick debounce.
func TestController_FreshControllerRequiresFullDebounce(t *testing.T) {
	c := NewController(testRows())

	d := c.Apply(200)
	if d.Zone != ZoneBelowT0 || d.CurrentUA != 0 {
		t.Fatalf("tick 1: expected uncommitted zero decision, got %+v", d)
	}
	d = c.Apply(200)
	if d.Zone != ZoneBelowT0 {
		t.Fatalf("tick 2: expected still uncommitted, got %+v", d)
	}
	d = c.Apply(200)
	if d.Zone != ZoneT2T3 || d.CurrentUA != 1000000 {
		t.Fatalf("tick 3: expected commit to t2-t3, got %+v", d)
	}
}

// TestController_NoiseDoesNotFlapZone checks that a single noisy tick
// back toward an old zone does not change the committed decision
// before the debounce window elapses.
func TestController_NoiseDoesNotFlapZone(t *testing.T) {
	c := NewController(testRows())
	for i := 0; i < debounceTicks; i++ {
		c.Apply(200) // three ticks to commit t2-t3
	}

	d := c.Apply(50) // one noisy tick down into t1-t2
	if d.Zone != ZoneT2T3 {
		t.Fatalf("expected zone to hold through one noisy tick, got %+v", d)
	}

	d = c.Apply(200) // back to t2-t3, resets streak
	if d.Zone != ZoneT2T3 {
		t.Fatalf("expected zone unchanged, got %+v", d)
	}
}

func TestController_HotSinkAtTopRow(t *testing.T) {
	c := NewController(testRows())
	for i := 0; i < debounceTicks; i++ {
		c.Apply(600)
	}
	d := c.Apply(600)
	if !d.Sink || d.Zone != ZoneAboveT3 {
		t.Fatalf("expected hot sink at top row, got %+v", d)
	}
}
