// Package jeita implements the JEITA Controller of spec.md §4.2: a
// temperature-banded charging policy that walks a table of rows sorted
// ascending by entry temperature and debounces zone transitions across
// three consecutive ticks before acting on them, generalizing the
// repeated "compare against configured limit, log at Check level, act"
// shape used elsewhere in this daemon from a single hard limit into a
// multi-row table walk. A row is left at the same temperature it is
// entered at: only the first row's TempRecoverDeciC is read, as the
// boundary of the cold sink, and no hysteresis applies on the way back
// down.
package jeita

import (
	"github.com/qzeleza/chargerman/internal/config"
)

// Zone is one band of the JEITA temperature curve.
type Zone int

// The five JEITA zones, below the lowest configured row up through
// above the highest, per spec.md §4.2.
const (
	ZoneBelowT0 Zone = iota
	ZoneT0T1
	ZoneT1T2
	ZoneT2T3
	ZoneAboveT3
)

// String names a zone for logs.
func (z Zone) String() string {
	switch z {
	case ZoneBelowT0:
		return "below-t0"
	case ZoneT0T1:
		return "t0-t1"
	case ZoneT1T2:
		return "t1-t2"
	case ZoneT2T3:
		return "t2-t3"
	case ZoneAboveT3:
		return "above-t3"
	default:
		return "unknown"
	}
}

// IsSink reports whether this zone calls for charging to stop entirely
// (the coldest and hottest bands configure zero current, which this
// package treats as an explicit sink rather than a zero-current charge
// request).
func (z Zone) IsSink() bool {
	return z == ZoneBelowT0 || z == ZoneAboveT3
}

// Decision is the outcome of one Apply call: either a target CC/CV, or
// a sink (stop charging).
type Decision struct {
	Zone      Zone
	Sink      bool
	CurrentUA int32
	VoltageUV int32
}

// Controller tracks zone-transition debouncing state for one battery.
// Zero value is ready to use.
type Controller struct {
	rows       []config.JEITARow
	zone       Zone
	lastRow    config.JEITARow
	lastSink   bool
	pending    Zone
	pendingRow config.JEITARow
	pendingSet bool
	streak     int
}

// debounceTicks is the number of consecutive ticks a new zone must be
// observed before the controller commits to it, per spec.md §4.2.
const debounceTicks = 3

// NewController builds a Controller over the given table, which must be
// sorted ascending by TempEnterDeciC. Neither this constructor nor
// config.Description.JEITATable sorts it.
func NewController(rows []config.JEITARow) *Controller {
	return &Controller{rows: rows}
}

// SetTable swaps the active table, e.g. when the fast-charge FSM enables
// or disables and the zone boundaries must change accordingly. The
// debounce state is reset since the new table's bands do not correspond
// to the old one's.
func (c *Controller) SetTable(rows []config.JEITARow) {
	c.rows = rows
	c.pendingSet = false
	c.streak = 0
}

// classify finds the highest row whose TempEnterDeciC is <= tempDeciC,
// scanning from the top down so the comparison matches "enter from
// below while temperature rises, recover going the other way."
func (c *Controller) classify(tempDeciC int32) (Zone, config.JEITARow, bool) {
	if len(c.rows) == 0 {
		return ZoneT0T1, config.JEITARow{}, false
	}
	// Below the lowest row's recovery floor: treat as the coldest sink.
	if tempDeciC < c.rows[0].TempRecoverDeciC {
		return ZoneBelowT0, c.rows[0], true
	}
	idx := 0
	for i, row := range c.rows {
		if tempDeciC >= row.TempEnterDeciC {
			idx = i
		}
	}
	last := c.rows[len(c.rows)-1]
	if tempDeciC >= last.TempEnterDeciC && idx == len(c.rows)-1 {
		// At or above the top row: only a sink if the top row itself is
		// configured with zero current (the hottest band).
		if last.CurrentUA == 0 {
			return ZoneAboveT3, last, true
		}
	}
	zone := Zone(idx + 1)
	if zone > ZoneT2T3 {
		zone = ZoneT2T3
	}
	row := c.rows[idx]
	return zone, row, row.CurrentUA == 0
}

// Apply classifies tempDeciC against the active table, debounces the
// result across three consecutive ticks, and returns the committed
// Decision. Until three consecutive ticks agree on a zone, including the
// very first zone a fresh Controller ever sees, the previous commit's
// Decision (the zero value before anything has committed) is returned
// unchanged.
func (c *Controller) Apply(tempDeciC int32) Decision {
	zone, row, sink := c.classify(tempDeciC)

	if c.pendingSet && c.pending == zone && c.pendingRow == row {
		c.streak++
	} else {
		c.pending = zone
		c.pendingRow = row
		c.pendingSet = true
		c.streak = 1
	}

	if c.streak >= debounceTicks {
		c.zone = zone
		c.lastRow = row
		c.lastSink = sink
	}

	return Decision{
		Zone:      c.zone,
		Sink:      c.lastSink,
		CurrentUA: c.lastRow.CurrentUA,
		VoltageUV: c.lastRow.VoltageUV,
	}
}
