// Package notify implements the Event/Notify facade of spec.md §4.9:
// accepts event kinds from the monitor, deduplicates consecutive
// identical messages, and buffers the latest message while suspended so
// only one (possibly different) message survives to resume, funneling
// every user-facing state change through a single emit point.
package notify

import "sync"

// Kind is an event classification, per spec.md §4.9.
type Kind int

// Event kinds the facade accepts.
const (
	KindUnknown Kind = iota
	KindBattFull
	KindBattIn
	KindBattOut
	KindBattOverheat
	KindBattCold
	KindExtPwrInOut
	KindChgStartStop
	KindFastCharge
	KindOthers
)

// String names a kind for logs.
func (k Kind) String() string {
	switch k {
	case KindBattFull:
		return "BATT_FULL"
	case KindBattIn:
		return "BATT_IN"
	case KindBattOut:
		return "BATT_OUT"
	case KindBattOverheat:
		return "BATT_OVERHEAT"
	case KindBattCold:
		return "BATT_COLD"
	case KindExtPwrInOut:
		return "EXT_PWR_IN_OUT"
	case KindChgStartStop:
		return "CHG_START_STOP"
	case KindFastCharge:
		return "FAST_CHARGE"
	case KindOthers:
		return "OTHERS"
	default:
		return "UNKNOWN"
	}
}

// Message is one emitted notification.
type Message struct {
	Kind Kind
	Text string
}

// Sink receives delivered messages; the daemon wires this to its
// logger and/or a platform notification channel.
type Sink func(Message)

// Facade owns dedup and suspend-buffering state and fans delivered
// messages out to a Sink.
type Facade struct {
	mu sync.Mutex

	sink Sink

	lastDelivered Message
	hasDelivered  bool

	suspended    bool
	bufferedMsg  Message
	hasBuffered  bool
}

// NewFacade builds a Facade delivering to sink.
func NewFacade(sink Sink) *Facade {
	return &Facade{sink: sink}
}

// Emit accepts one event. While awake, it is delivered immediately
// unless identical to the last delivered message. While suspended, it
// is stored, overwriting any previously buffered message, per spec.md
// §5's "only the latest message survives."
func (f *Facade) Emit(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.suspended {
		f.bufferedMsg = msg
		f.hasBuffered = true
		return
	}
	f.deliverLocked(msg)
}

func (f *Facade) deliverLocked(msg Message) {
	if f.hasDelivered && f.lastDelivered == msg {
		return
	}
	f.lastDelivered = msg
	f.hasDelivered = true
	if f.sink != nil {
		f.sink(msg)
	}
}

// SuspendPrepare marks the facade suspended; subsequent Emit calls
// buffer instead of delivering.
func (f *Facade) SuspendPrepare() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = true
}

// Resume marks the facade awake and delivers the buffered message, if
// any, provided it differs from the last message actually delivered.
func (f *Facade) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = false
	if f.hasBuffered {
		f.deliverLocked(f.bufferedMsg)
		f.hasBuffered = false
	}
}
