package aggregate

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Stats summarizes the registry contents.
type Stats struct {
	TotalItems       int
	TotalMerges      int
	AvgMergesPerItem float64
}

// Registry owns the set of aggregated items. It is mutated from multiple
// independent call sites (frame processing, user edits, asynchronous
// classification callbacks), so every operation holds one exclusive lock;
// merge decisions need a consistent view of all items. Reads return
// independent copies, never live references.
type Registry struct {
	mu     sync.Mutex
	policy *Policy
	items  map[string]*Item
	// Insertion order, kept stable so tie-breaking and snapshots are deterministic
	order []string
	now   func() time.Time
	newID func() string
}

// NewRegistry creates a Registry with the given configuration.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid aggregation config")
	}
	return &Registry{
		policy: NewPolicy(cfg),
		items:  make(map[string]*Item),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// NewDefaultRegistry creates a Registry with default configuration.
func NewDefaultRegistry() *Registry {
	registry, _ := NewRegistry(DefaultConfig())
	return registry
}

// SetClock replaces the time source, mainly for deterministic staleness tests.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetIDSource replaces the generated-id source, mainly for deterministic tests.
func (r *Registry) SetIDSource(newID func() string) {
	if newID == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newID = newID
}

// ProcessDetection routes one detection event through the merge policy and
// returns the id of the item it merged into or created.
func (r *Registry) ProcessDetection(event Event) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processLocked(event)
}

// ProcessBatch applies ProcessDetection to each event in order under one lock
// acquisition. Later events may merge into items created earlier in the batch.
func (r *Registry) ProcessBatch(events []Event) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = r.processLocked(event)
	}
	return ids
}

func (r *Registry) processLocked(event Event) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	match := r.policy.Decide(event, r.orderedLocked())
	if match.Decision == Merge {
		item := r.items[match.ItemID]
		item.merge(event, ts)
		return item.ID
	}

	id := event.Source
	if id == "" {
		id = r.newID()
	} else if _, exists := r.items[id]; exists {
		// Source id reused across sessions (e.g. after a seed reload): keep the
		// existing item untouched and give the new one a fresh id. The source
		// id still lands in the new item's Sources set.
		id = r.newID()
	}
	item := newItem(id, event, ts)
	r.items[id] = item
	r.order = append(r.order, id)
	return id
}

// Seed bulk-loads previously persisted items using their existing ids,
// bypassing the similarity pipeline so previously distinct items can never
// merge into each other on reload. An item with an id already present
// replaces the in-memory one.
func (r *Registry) Seed(items []*Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		clone := item.Clone()
		if _, exists := r.items[clone.ID]; !exists {
			r.order = append(r.order, clone.ID)
		}
		r.items[clone.ID] = clone
	}
}

// RemoveStale removes every item whose last-seen timestamp is older than
// maxAge, releasing owned resources first. Returns the number removed.
func (r *Registry) RemoveStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	kept := r.order[:0]
	for _, id := range r.order {
		item := r.items[id]
		if now.Sub(item.LastSeen) > maxAge {
			item.release()
			delete(r.items, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

// ApplyClassification merges attribute updates into the identified item.
// Unknown ids are a no-op: the item may have been evicted while the
// classification call was in flight.
func (r *Registry) ApplyClassification(id string, attrs map[string]string, fromBackend bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return
	}
	item.applyClassification(attrs, fromBackend)
}

// SetThreshold installs a runtime similarity threshold override, clamped to
// [0,1]. Passing nil restores the configured value.
func (r *Registry) SetThreshold(value *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy.SetThreshold(value)
}

// Threshold returns the effective similarity threshold.
func (r *Registry) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy.Threshold()
}

// Items returns independent copies of all items in creation order.
func (r *Registry) Items() []*Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Item, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out
}

// Get returns an independent copy of the identified item.
func (r *Registry) Get(id string) (*Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Delete removes the identified item, releasing owned resources. Unknown ids
// are a no-op returning false.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return false
	}
	item.release()
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of items.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Stats returns aggregate counters over the current items.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{TotalItems: len(r.items)}
	for _, item := range r.items {
		stats.TotalMerges += item.MergeCount - 1
	}
	if stats.TotalItems > 0 {
		stats.AvgMergesPerItem = float64(stats.TotalMerges) / float64(stats.TotalItems)
	}
	return stats
}

// Reset removes every item, releasing owned resources.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		item.release()
	}
	r.items = make(map[string]*Item)
	r.order = nil
}

// orderedLocked returns live item references in creation order. Callers must
// hold the lock and must not retain the returned slice.
func (r *Registry) orderedLocked() []*Item {
	out := make([]*Item, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}
