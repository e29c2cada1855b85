// Package metrics provides in-memory counters for failures the chat core
// recovers from without telling the user.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Event names recorded by the chat core.
const (
	EventFrameMalformed     = "frame_malformed"
	EventFrameError         = "frame_error"
	EventSendFailed         = "send_failed"
	EventSendOffline        = "send_offline"
	EventDialFailed         = "dial_failed"
	EventReconnectScheduled = "reconnect_scheduled"
	EventAuthMissing        = "auth_missing"
	EventSessionDiscarded   = "session_discarded"
	EventSummaryFailed      = "summary_failed"
	EventPersistFailed      = "persist_failed"
	EventPersistSucceeded   = "persist_succeeded"
)

// Counter aggregates occurrences of one event.
type Counter struct {
	Count    int64
	LastSeen time.Time
}

// Recorder is implemented by Collector. A nil Recorder is valid for callers
// that go through Record.
type Recorder interface {
	Inc(event string)
}

// Collector aggregates event counters.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	counters  map[string]*Counter
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		counters:  make(map[string]*Counter),
	}
}

// Inc increments the counter for event.
func (c *Collector) Inc(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctr, ok := c.counters[event]
	if !ok {
		ctr = &Counter{}
		c.counters[event] = ctr
	}
	ctr.Count++
	ctr.LastSeen = time.Now()
}

// Count returns the current count for event.
func (c *Collector) Count(event string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ctr, ok := c.counters[event]; ok {
		return ctr.Count
	}
	return 0
}

// Snapshot represents the counters at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Events        map[string]Counter
}

// Names returns the recorded event names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Events))
	for name := range s.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := make(map[string]Counter, len(c.counters))
	for name, ctr := range c.counters {
		events[name] = *ctr
	}
	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Events:        events,
	}
}

// Record increments event on r if r is non-nil.
func Record(r Recorder, event string) {
	if r != nil {
		r.Inc(event)
	}
}
