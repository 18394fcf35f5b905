package authority

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TickManager runs a periodic tick for each hosted encounter. Every tick invokes
// the registered callbacks one after another, in encounter ID order.
//
// Invariant: all callbacks are invoked at most once per tick interval.
type TickManager struct {
	interval time.Duration
	mu       sync.Mutex
	ticks    map[string]func()
}

// NewTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0.
func NewTickManager(interval time.Duration) *TickManager {
	if interval <= 0 {
		panic("authority.NewTickManager: interval must be > 0")
	}
	return &TickManager{
		interval: interval,
		ticks:    make(map[string]func()),
	}
}

// RegisterTick registers a callback for encounterID. Replaces any existing callback.
func (m *TickManager) RegisterTick(encounterID string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[encounterID] = fn
}

// Unregister removes the tick callback for encounterID.
func (m *TickManager) Unregister(encounterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ticks, encounterID)
}

// IDs returns the encounter IDs with a registered callback, sorted.
func (m *TickManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.ticks))
	for id := range m.ticks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tick invokes every registered callback once. A callback may register or
// unregister encounters; the change applies from the next tick.
func (m *TickManager) Tick() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.ticks))
	callbacks := make(map[string]func(), len(m.ticks))
	for id, fn := range m.ticks {
		ids = append(ids, id)
		callbacks[id] = fn
	}
	m.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		callbacks[id]()
	}
}

// Start begins the tick loop. Runs until ctx is cancelled.
//
// Postcondition: all registered tick callbacks are invoked once per interval.
func (m *TickManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick()
			}
		}
	}()
}
