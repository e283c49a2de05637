package psb

import "testing"

func TestBus_AcquireUnknownNameReturnsNotFound(t *testing.T) {
	b := NewBus()
	_, _, err := b.Acquire("missing")
	if err == nil {
		t.Fatalf("expected an error acquiring an unregistered name")
	}
}

func TestBus_RegisterThenAcquireRoundTrips(t *testing.T) {
	b := NewBus()
	dev := NewSimDevice()
	b.Register("fuel-gauge", dev)

	h, release, err := b.Acquire("fuel-gauge")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if err := h.Set(PROP_CAPACITY, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := h.Get(PROP_CAPACITY)
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d err=%v", v, err)
	}
	if h.Name() != "fuel-gauge" {
		t.Fatalf("expected handle name fuel-gauge, got %s", h.Name())
	}
}

func TestBus_RegisterReplacesExistingDevice(t *testing.T) {
	b := NewBus()
	first := NewSimDevice()
	first.Set(PROP_CAPACITY, 10)
	b.Register("main", first)

	second := NewSimDevice()
	second.Set(PROP_CAPACITY, 99)
	b.Register("main", second)

	h, release, err := b.Acquire("main")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	v, _ := h.Get(PROP_CAPACITY)
	if v != 99 {
		t.Fatalf("expected the replaced device's value 99, got %d", v)
	}
}

func TestBus_NamesListsRegistered(t *testing.T) {
	b := NewBus()
	b.Register("a", NewSimDevice())
	b.Register("b", NewSimDevice())

	names := b.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %d: %v", len(names), names)
	}
}

func TestSimDevice_ChangedFiresNonBlockingOnSet(t *testing.T) {
	dev := NewSimDevice()
	dev.Set(PROP_ONLINE, 1)
	select {
	case <-dev.Changed():
	default:
		t.Fatalf("expected a buffered change notification after Set")
	}

	// A second Set without draining Changed() must not block.
	dev.Set(PROP_ONLINE, 0)
	dev.Set(PROP_ONLINE, 1)
}

func TestSimDevice_SetAllBulkAssigns(t *testing.T) {
	dev := NewSimDevice()
	dev.SetAll(map[Property]int64{
		PROP_VOLTAGE_NOW: 4100000,
		PROP_CURRENT_NOW: 500000,
	})
	v, _ := dev.Get(PROP_VOLTAGE_NOW)
	i, _ := dev.Get(PROP_CURRENT_NOW)
	if v != 4100000 || i != 500000 {
		t.Fatalf("expected bulk-assigned values, got v=%d i=%d", v, i)
	}
}
