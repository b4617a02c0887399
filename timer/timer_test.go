package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_Fires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	m.Schedule(20*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("Expected callback to fire once, fired %d times", got)
	}
}

func TestCancel_PreventsFiring(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.Schedule(50*time.Millisecond, func() { fired.Add(1) })
	m.Cancel(id)

	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("Cancelled callback fired %d times", got)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.Schedule(20*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)

	// Cancelling after firing, and cancelling twice, must both be no-ops.
	m.Cancel(id)
	m.Cancel(id)
	m.Cancel(999)

	if got := fired.Load(); got != 1 {
		t.Fatalf("Expected exactly one firing, got %d", got)
	}
}

func TestSchedule_Ordering(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	first := make(chan struct{})
	second := make(chan struct{})
	m.Schedule(60*time.Millisecond, func() { close(second) })
	m.Schedule(20*time.Millisecond, func() { close(first) })

	select {
	case <-first:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Earlier deadline never fired")
	}

	select {
	case <-second:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Later deadline never fired")
	}
}
