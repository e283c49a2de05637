package guards

import (
	"testing"
	"time"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/psb"
)

func TestDurationGuard_TripsAfterChargingCap(t *testing.T) {
	cfg := &config.Description{
		ChargingMaxDurationMS:    1000,
		DischargingMaxDurationMS: 5000,
		FullBattery:              config.FullBattery{VFullUV: 4350000},
	}
	g := NewDurationGuard(cfg)
	start := time.Now()

	if tripped, _ := g.Evaluate(start, psb.StatusCharging, 4000000); tripped {
		t.Fatalf("should not trip immediately")
	}
	if tripped, reason := g.Evaluate(start.Add(2*time.Second), psb.StatusCharging, 4000000); !tripped || reason == "" {
		t.Fatalf("expected charging-duration trip after exceeding cap, got tripped=%v reason=%q", tripped, reason)
	}
}

func TestDurationGuard_NearFullOCVExemptsFromCap(t *testing.T) {
	cfg := &config.Description{
		ChargingMaxDurationMS: 1000,
		FullBattery:           config.FullBattery{VFullUV: 4350000},
	}
	g := NewDurationGuard(cfg)
	start := time.Now()
	g.Evaluate(start, psb.StatusCharging, 4360000)
	if tripped, _ := g.Evaluate(start.Add(2*time.Second), psb.StatusCharging, 4360000); tripped {
		t.Fatalf("a battery already near full by OCV must be exempt from the charging duration cap")
	}
}

func TestVoltageGuard_TripsAndRecoversWithHysteresis(t *testing.T) {
	g := NewVoltageGuard(config.VoltageGuard{VChgMaxUV: 4400000, VChgDropUV: 50000})

	if g.Evaluate(4390000) {
		t.Fatalf("should not trip below the ceiling")
	}
	if !g.Evaluate(4410000) {
		t.Fatalf("expected trip above the ceiling")
	}
	if !g.Evaluate(4370000) {
		t.Fatalf("should stay tripped above the recovery floor (ceiling - drop)")
	}
	if g.Evaluate(4340000) {
		t.Fatalf("expected recovery below ceiling - drop")
	}
}

func TestHealthGuard_DisablesAndRecoversOnTransition(t *testing.T) {
	bus := psb.NewBus()
	bus.Register("main", psb.NewSimDevice())
	g := NewHealthGuard(bus, []string{"main"})

	if err := g.EvaluateOne("main", psb.HealthGood); err != nil {
		t.Fatal(err)
	}
	if g.Disabled("main") {
		t.Fatalf("should not be disabled while healthy")
	}

	if err := g.EvaluateOne("main", psb.HealthOverheat); err != nil {
		t.Fatal(err)
	}
	if !g.Disabled("main") {
		t.Fatalf("expected disabled after an unhealthy reading")
	}

	if err := g.EvaluateOne("main", psb.HealthGood); err != nil {
		t.Fatal(err)
	}
	if g.Disabled("main") {
		t.Fatalf("expected re-enable once health recovers")
	}
}
