package fastcharge

import (
	"testing"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/psb"
)

func newTestController(t *testing.T) (*Controller, *psb.Bus) {
	t.Helper()
	bus := psb.NewBus()
	bus.Register("primary", psb.NewSimDevice())
	bus.Register("secondary", psb.NewSimDevice())
	desc := &config.Description{
		ChargerNames:         []string{"primary"},
		FastChargerNames:     []string{"secondary"},
		VFastChargeEnableUV:  3450000,
		VFastChargeDisableUV: 3350000,
	}
	return NewController(bus, desc), bus
}

func TestController_UnsupportedWithoutFastCharger(t *testing.T) {
	bus := psb.NewBus()
	bus.Register("primary", psb.NewSimDevice())
	desc := &config.Description{ChargerNames: []string{"primary"}}
	c := NewController(bus, desc)
	if c.State() != StateUnsupported {
		t.Fatalf("expected Unsupported, got %s", c.State())
	}
	state, err := c.Evaluate(5000000)
	if err != nil || state != StateUnsupported {
		t.Fatalf("expected to stay Unsupported, got %s (err=%v)", state, err)
	}
}

// TestController_EnableThenDisableRoundTrip exercises the
// Idle->ArmEnable->Enabled->ArmDisable->Idle cycle as the voltage
// crosses the enable/disable thresholds in both directions.
func TestController_EnableThenDisableRoundTrip(t *testing.T) {
	c, bus := newTestController(t)

	if state, err := c.Evaluate(3000000); err != nil || state != StateIdle {
		t.Fatalf("below enable threshold: got %s, err=%v", state, err)
	}
	if state, err := c.Evaluate(3500000); err != nil || state != StateArmEnable {
		t.Fatalf("crossing enable threshold: got %s, err=%v", state, err)
	}
	state, err := c.Evaluate(3500000)
	if err != nil {
		t.Fatalf("enable handshake failed: %v", err)
	}
	if state != StateEnabled {
		t.Fatalf("expected Enabled, got %s", state)
	}

	h, release, err := bus.Acquire("secondary")
	if err != nil {
		t.Fatal(err)
	}
	enabled, _ := h.Get(psb.PROP_CHARGE_ENABLED)
	release()
	if enabled != 1 {
		t.Fatalf("expected secondary charger enabled after handshake")
	}

	if state, err := c.Evaluate(3300000); err != nil || state != StateArmDisable {
		t.Fatalf("crossing disable threshold: got %s, err=%v", state, err)
	}
	state, err = c.Evaluate(3300000)
	if err != nil {
		t.Fatalf("disable handshake failed: %v", err)
	}
	if state != StateIdle {
		t.Fatalf("expected back to Idle, got %s", state)
	}
}

func TestController_ArmEnableDropsBackToIdleIfVoltageSags(t *testing.T) {
	c, _ := newTestController(t)
	if state, _ := c.Evaluate(3500000); state != StateArmEnable {
		t.Fatalf("expected ArmEnable")
	}
	state, err := c.Evaluate(3000000)
	if err != nil {
		t.Fatal(err)
	}
	if state != StateIdle {
		t.Fatalf("expected sag back to Idle before committing, got %s", state)
	}
}

func TestController_ActiveTablePrefersFastChargeWhileEnabled(t *testing.T) {
	c, _ := newTestController(t)
	c.state = StateEnabled
	if got := c.ActiveTable(config.ChargerDCP); got != config.ChargerFastCharge {
		t.Fatalf("expected ChargerFastCharge while enabled, got %s", got)
	}
	c.state = StateIdle
	if got := c.ActiveTable(config.ChargerDCP); got != config.ChargerDCP {
		t.Fatalf("expected observed table once idle, got %s", got)
	}
}
