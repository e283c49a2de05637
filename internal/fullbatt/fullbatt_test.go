package fullbatt

import (
	"testing"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/sensors"
)

func testCfg() *config.FullBattery {
	return &config.FullBattery{
		VFullUV:         4350000,
		IFullUA:         150000,
		IFirstFullUA:    300000,
		SOCFullPerMille: 1000,
		DeltaVRecheckUV: 50000,
		TRecheckMS:      30_000,
	}
}

func TestDetector_HardFullRequiresTwoStableTicks(t *testing.T) {
	d := NewDetector(testCfg())
	r := sensors.Reading{VoltageNowUV: 4360000, CurrentNowUA: 100000, VoltageOCVUV: 4360000}

	if became := d.Evaluate(r, 0); became {
		t.Fatalf("should not declare full on the first tick")
	}
	if d.IsFull() {
		t.Fatalf("should not be full after one tick")
	}
	if became := d.Evaluate(r, 1000); !became {
		t.Fatalf("should declare full on the second stable tick")
	}
	if !d.IsFull() || d.SoftFull() {
		t.Fatalf("expected hard full, got full=%v soft=%v", d.IsFull(), d.SoftFull())
	}
}

func TestDetector_SoftFullByFirstFullCurrent(t *testing.T) {
	d := NewDetector(testCfg())
	r := sensors.Reading{VoltageNowUV: 4360000, CurrentNowUA: 280000, VoltageOCVUV: 4360000}
	d.Evaluate(r, 0)
	d.Evaluate(r, 1000)
	if !d.IsFull() || !d.SoftFull() {
		t.Fatalf("expected soft full, got full=%v soft=%v", d.IsFull(), d.SoftFull())
	}
}

func TestDetector_RechargeOnOCVDrop(t *testing.T) {
	d := NewDetector(testCfg())
	r := sensors.Reading{VoltageNowUV: 4360000, CurrentNowUA: 100000, VoltageOCVUV: 4360000}
	d.Evaluate(r, 0)
	d.Evaluate(r, 1000)
	if !d.IsFull() {
		t.Fatal("precondition: expected full")
	}

	// Before the recheck deadline, even a big OCV drop is not observed.
	dropped := sensors.Reading{VoltageOCVUV: 4360000 - 60000}
	d.evaluateRecharge(dropped, 2000)
	if !d.IsFull() {
		t.Fatalf("should still be full before the recheck deadline")
	}

	d.evaluateRecharge(dropped, 31000)
	if d.IsFull() {
		t.Fatalf("expected recharge trigger to clear full status once OCV sagged past the deadline")
	}
}

func TestDetector_NoRechargeOnSmallOCVDrop(t *testing.T) {
	d := NewDetector(testCfg())
	r := sensors.Reading{VoltageNowUV: 4360000, CurrentNowUA: 100000, VoltageOCVUV: 4360000}
	d.Evaluate(r, 0)
	d.Evaluate(r, 1000)

	small := sensors.Reading{VoltageOCVUV: 4360000 - 10000}
	d.evaluateRecharge(small, 31000)
	if !d.IsFull() {
		t.Fatalf("a drop smaller than delta_v_recheck must not clear full status")
	}
}

func TestDetector_ForceSetFullBypassesDebounce(t *testing.T) {
	d := NewDetector(testCfg())
	d.ForceSetFull(sensors.Reading{VoltageOCVUV: 4300000}, 0)
	if !d.IsFull() || !d.SoftFull() {
		t.Fatalf("expected immediate soft full, got full=%v soft=%v", d.IsFull(), d.SoftFull())
	}
}
