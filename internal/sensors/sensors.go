// Package sensors provides thin, typed accessors over the Power-Supply
// Bus: voltage, current, OCV, SOC, temperature, charger online/status/
// health/type, reading through psb.Bus instead of a concrete platform
// battery API call.
package sensors

import (
	"fmt"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/psb"
)

// Reading is one tick's worth of sensor data, read once and reused for
// the rest of the tick (spec.md §5: "sensor reads happen once and are
// reused").
type Reading struct {
	Present        bool
	Online         bool
	Status         int64
	Health         int64
	USBType        config.ChargerType
	VoltageNowUV   int32
	VoltageAvgUV   int32
	VoltageOCVUV   int32
	VoltageBootUV  int32
	CurrentNowUA   int32
	CurrentAvgUA   int32
	TempDeciC      int32
	SOCPerMille    int32
	ChargeFullUAh  int32
	ChargeNowUAh   int32
	EnergyFullUAh  int32
	EnergyNowUAh   int32
}

// Reader reads sensor data for one fuel gauge and one primary charger.
type Reader struct {
	bus           *psb.Bus
	fuelGauge     string
	primaryCharger string
}

// NewReader builds a Reader for the fuel gauge and primary (index 0)
// charger named in desc.
func NewReader(bus *psb.Bus, desc *config.Description) *Reader {
	primary := ""
	if len(desc.ChargerNames) > 0 {
		primary = desc.ChargerNames[0]
	}
	return &Reader{bus: bus, fuelGauge: desc.FuelGaugeName, primaryCharger: primary}
}

// Read takes one consistent snapshot of the fuel gauge and primary
// charger, to be reused for the remainder of the tick.
func (r *Reader) Read() (Reading, error) {
	var out Reading

	fg, release, err := r.bus.Acquire(r.fuelGauge)
	if err != nil {
		return out, fmt.Errorf("sensors: fuel gauge: %w", err)
	}
	defer release()

	if v, err := fg.Get(psb.PROP_VOLTAGE_NOW); err == nil {
		out.VoltageNowUV = int32(v)
	}
	if v, err := fg.Get(psb.PROP_VOLTAGE_AVG); err == nil {
		out.VoltageAvgUV = int32(v)
	}
	if v, err := fg.Get(psb.PROP_VOLTAGE_OCV); err == nil {
		out.VoltageOCVUV = int32(v)
	}
	if v, err := fg.Get(psb.PROP_VOLTAGE_BOOT); err == nil {
		out.VoltageBootUV = int32(v)
	}
	if v, err := fg.Get(psb.PROP_CURRENT_NOW); err == nil {
		out.CurrentNowUA = int32(v)
	}
	if v, err := fg.Get(psb.PROP_CURRENT_AVG); err == nil {
		out.CurrentAvgUA = int32(v)
	}
	if v, err := fg.Get(psb.PROP_TEMP); err == nil {
		out.TempDeciC = int32(v)
	}
	if v, err := fg.Get(psb.PROP_CAPACITY); err == nil {
		out.SOCPerMille = int32(v)
	}
	if v, err := fg.Get(psb.PROP_PRESENT); err == nil {
		out.Present = v != 0
	}
	if v, err := fg.Get(psb.PROP_CHARGE_FULL); err == nil {
		out.ChargeFullUAh = int32(v)
	}
	if v, err := fg.Get(psb.PROP_CHARGE_NOW); err == nil {
		out.ChargeNowUAh = int32(v)
	}
	if v, err := fg.Get(psb.PROP_ENERGY_FULL_DESIGN); err == nil {
		out.EnergyFullUAh = int32(v)
	}
	if v, err := fg.Get(psb.PROP_ENERGY_NOW); err == nil {
		out.EnergyNowUAh = int32(v)
	}

	if r.primaryCharger != "" {
		ch, release2, err := r.bus.Acquire(r.primaryCharger)
		if err == nil {
			defer release2()
			if v, err := ch.Get(psb.PROP_ONLINE); err == nil {
				out.Online = v != 0
			}
			if v, err := ch.Get(psb.PROP_STATUS); err == nil {
				out.Status = v
			}
			if v, err := ch.Get(psb.PROP_HEALTH); err == nil {
				out.Health = v
			}
			if v, err := ch.Get(psb.PROP_USB_TYPE); err == nil {
				out.USBType = config.ChargerType(v)
			}
		}
	}

	return out, nil
}

// IsBatteryPresent resolves the presence policy from spec.md §3 against
// a reading and, when the policy asks a charger, anyChargerOnline.
func IsBatteryPresent(policy config.BatteryPresencePolicy, reading Reading, anyChargerOnline bool) bool {
	switch policy {
	case config.PresenceAssumePresent:
		return true
	case config.PresenceAssumeAbsent:
		return false
	case config.PresenceAskAnyCharger:
		return anyChargerOnline
	case config.PresenceAskFuelGauge:
		fallthrough
	default:
		return reading.Present
	}
}
