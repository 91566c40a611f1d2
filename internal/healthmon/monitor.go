// Package healthmon implements the channel health monitor: a periodic
// reconciliation pass that catches data channels the engine reported
// closed without firing a close event.
//
// It uses the same ticker-goroutine shape as a periodic stats reporter,
// generalized from "print aggregate stats" to "sweep a watch set and fire
// cleanup callbacks".
package healthmon

import (
	"sync"
	"time"
)

// ClosedTimeout is the reconciliation interval.
const ClosedTimeout = 5 * time.Second

// Watchable is anything with an engine-reported state string.
// internal/relay.Channel, which internal/dial also uses for its signalling
// channels, satisfies this.
type Watchable interface {
	ReadyState() string
}

type entry struct {
	w       Watchable
	cleanup func()
	once    sync.Once
}

// Monitor periodically scans a watch set for channels stuck in the
// "closed" state whose owner never ran its cleanup.
type Monitor struct {
	mu      sync.Mutex
	entries map[*entry]struct{}
	stop    chan struct{}
	stopped sync.Once
}

// NewMonitor creates a Monitor and starts its background sweep goroutine.
func NewMonitor() *Monitor {
	m := &Monitor{
		entries: make(map[*entry]struct{}),
		stop:    make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(ClosedTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) sweep() {
	m.mu.Lock()
	due := make([]*entry, 0, len(m.entries))
	for e := range m.entries {
		if e.w.ReadyState() == "closed" {
			due = append(due, e)
		}
	}
	m.mu.Unlock()

	for _, e := range due {
		e.once.Do(e.cleanup)
		m.unschedule(e)
	}
}

// Watch registers w for periodic health checks. The sweep invokes cleanup
// at most once. A caller that observes a normal close event first runs its
// own cleanup and calls the returned unwatch function, which removes the
// registration so the sweep never invokes cleanup. Both races are safe:
// cleanup is guarded by a sync.Once local to this registration.
func (m *Monitor) Watch(w Watchable, cleanup func()) (unwatch func()) {
	e := &entry{w: w, cleanup: cleanup}
	m.mu.Lock()
	m.entries[e] = struct{}{}
	m.mu.Unlock()

	return func() {
		e.once.Do(func() {}) // mark as already handled, cleanup already ran by caller
		m.unschedule(e)
	}
}

func (m *Monitor) unschedule(e *entry) {
	m.mu.Lock()
	delete(m.entries, e)
	m.mu.Unlock()
}

// Stop halts the sweep goroutine. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.stop) })
}
