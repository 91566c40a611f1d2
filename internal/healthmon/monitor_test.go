package healthmon

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeWatchable struct {
	mu    sync.Mutex
	state string
}

func (f *fakeWatchable) setState(s string) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeWatchable) ReadyState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return false
		}
	}
}

// TestSweepReconcilesChannelClosedWithoutEvent covers the case where a
// watched channel's ReadyState transitions to "closed" without ever
// invoking its own close callback: the periodic sweep must still run
// cleanup once ClosedTimeout elapses.
func TestSweepReconcilesChannelClosedWithoutEvent(t *testing.T) {
	m := NewMonitor()
	defer m.Stop()

	w := &fakeWatchable{state: "open"}
	var cleaned atomic.Bool
	m.Watch(w, func() { cleaned.Store(true) })

	w.setState("closed")

	if !waitUntil(t, ClosedTimeout+2*time.Second, cleaned.Load) {
		t.Fatal("sweep did not reconcile a channel stuck closed without a close event")
	}
}

// TestWatchUnwatchSkipsSweepCleanup covers the normal-close race: the owner
// observes the close event first, calls Unwatch, and the sweep must not
// also invoke cleanup.
func TestWatchUnwatchSkipsSweepCleanup(t *testing.T) {
	m := NewMonitor()
	defer m.Stop()

	w := &fakeWatchable{state: "open"}
	var calls atomic.Int32
	unwatch := m.Watch(w, func() { calls.Add(1) })

	w.setState("closed")
	unwatch()

	time.Sleep(ClosedTimeout + 2*time.Second)
	if got := calls.Load(); got != 0 {
		t.Fatalf("cleanup called %d times, want 0 (owner already unwatched)", got)
	}
}

// TestSweepCleanupRunsExactlyOnce guards the sync.Once inside entry: even if
// sweep somehow observed the same entry twice before removal, cleanup must
// not double-fire.
func TestSweepCleanupRunsExactlyOnce(t *testing.T) {
	m := NewMonitor()
	defer m.Stop()

	w := &fakeWatchable{state: "closed"}
	var calls atomic.Int32
	m.Watch(w, func() { calls.Add(1) })

	if !waitUntil(t, ClosedTimeout+2*time.Second, func() bool { return calls.Load() > 0 }) {
		t.Fatal("cleanup never ran")
	}
	// Once unscheduled, a later sweep tick has nothing left to reconcile;
	// a short extra wait is enough to catch any double-fire.
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("cleanup called %d times, want exactly 1", got)
	}
}
