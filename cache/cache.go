/*
Package cache provides a fixed-capacity slot cache for decoded image slices.

Eviction follows a ring over the slots rather than recency: while the cache is
below capacity, insertions append; once full, a cursor advances (wrapping from the
last slot to slot 0) and the slot under the cursor is overwritten.  Callers that
decode slices in a fixed order rely on this ordering, so it must not be replaced by
an LRU policy.

A SlotCache does no locking.  It must be owned by one goroutine at a time or guarded
by its owner.
*/
package cache

// DefaultCapacity is the number of slots used when no capacity is configured.
const DefaultCapacity = 16

type entry[K comparable, V any] struct {
	key K
	val V
}

// Stats reports activity counters for a SlotCache.
type Stats struct {
	Capacity  int
	Size      int
	Inserts   uint64
	Evictions uint64
	Hits      uint64
	Misses    uint64
}

// SlotCache maps keys to values in a fixed number of slots.
type SlotCache[K comparable, V any] struct {
	slots    []entry[K, V]
	capacity int
	cursor   int

	inserts   uint64
	evictions uint64
	hits      uint64
	misses    uint64
}

// New returns an empty cache with the given capacity.  A capacity below 1 is
// treated as 1.
func New[K comparable, V any](capacity int) *SlotCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &SlotCache[K, V]{
		slots:    make([]entry[K, V], 0, capacity),
		capacity: capacity,
		cursor:   -1,
	}
}

// HasKey returns true if some slot holds key k.
func (c *SlotCache[K, V]) HasKey(k K) bool {
	_, found := c.SlotOf(k)
	return found
}

// Lookup returns the value stored for k.
func (c *SlotCache[K, V]) Lookup(k K) (V, bool) {
	if i, found := c.SlotOf(k); found {
		c.hits++
		return c.slots[i].val, true
	}
	c.misses++
	var zero V
	return zero, false
}

// SlotOf returns the slot index holding k.
func (c *SlotCache[K, V]) SlotOf(k K) (int, bool) {
	for i := range c.slots {
		if c.slots[i].key == k {
			return i, true
		}
	}
	return 0, false
}

// LookupBySlot returns the value in slot i.  Slots at or beyond the current size
// report false even if they are below capacity.
func (c *SlotCache[K, V]) LookupBySlot(i int) (V, bool) {
	if i < 0 || i >= len(c.slots) {
		var zero V
		return zero, false
	}
	return c.slots[i].val, true
}

// Insert stores (k, v) and returns the slot used.  Inserting a key that is already
// present adds a second association; callers check HasKey first.
func (c *SlotCache[K, V]) Insert(k K, v V) int {
	c.inserts++
	if len(c.slots) < c.capacity {
		c.slots = append(c.slots, entry[K, V]{k, v})
		c.cursor = len(c.slots) - 1
		return c.cursor
	}
	c.cursor++
	if c.cursor >= c.capacity {
		c.cursor = 0
	}
	c.slots[c.cursor] = entry[K, V]{k, v}
	c.evictions++
	return c.cursor
}

// Clear removes all associations.  Capacity is unchanged.
func (c *SlotCache[K, V]) Clear() {
	clear(c.slots)
	c.slots = c.slots[:0]
	c.cursor = -1
}

// Len returns the number of occupied slots.
func (c *SlotCache[K, V]) Len() int { return len(c.slots) }

// Cap returns the number of slots.
func (c *SlotCache[K, V]) Cap() int { return c.capacity }

// Keys returns the stored keys in slot order.
func (c *SlotCache[K, V]) Keys() []K {
	keys := make([]K, len(c.slots))
	for i := range c.slots {
		keys[i] = c.slots[i].key
	}
	return keys
}

// Values calls fn for each stored value in slot order.
func (c *SlotCache[K, V]) Values(fn func(slot int, v V)) {
	for i := range c.slots {
		fn(i, c.slots[i].val)
	}
}

func (c *SlotCache[K, V]) Stats() Stats {
	return Stats{
		Capacity:  c.capacity,
		Size:      len(c.slots),
		Inserts:   c.inserts,
		Evictions: c.evictions,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}
