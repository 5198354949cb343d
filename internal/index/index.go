// Package index provides an insertion-ordered, deduplicating collection keyed by a
// natural identifier.
//
// A [Collection] maps each key to exactly one position in its backing sequence.
// Positions are assigned on first insert and never change, so callers may keep
// them as stable handles. Duplicate inserts do not append; they hand the existing
// record to a merge function instead (typically a counter increment or a nested
// set insert).
//
// Collections are not safe for concurrent use. The batch driver applies results
// after each wave barrier on a single goroutine, which is the only place the
// pipeline mutates them.
package index

// Collection is an append-only sequence of V with an O(1) key index.
type Collection[K comparable, V any] struct {
	positions map[K]int
	keys      []K
	values    []V
}

// New returns an empty collection with room for size records.
func New[K comparable, V any](size int) *Collection[K, V] {
	if size < 0 {
		size = 0
	}
	return &Collection[K, V]{
		positions: make(map[K]int, size),
		keys:      make([]K, 0, size),
		values:    make([]V, 0, size),
	}
}

// Upsert inserts factory() under key if key is absent and returns it with true.
//
// If key is present, onDuplicate (when non-nil) is called with the existing record,
// nothing is appended, and the existing record is returned with false.
func (c *Collection[K, V]) Upsert(key K, factory func() V, onDuplicate func(V)) (V, bool) {
	if i, ok := c.positions[key]; ok {
		v := c.values[i]
		if onDuplicate != nil {
			onDuplicate(v)
		}
		return v, false
	}

	v := factory()
	c.positions[key] = len(c.values)
	c.keys = append(c.keys, key)
	c.values = append(c.values, v)
	return v, true
}

// Add inserts key with itself as the value. It reports whether key was new.
//
// Only meaningful for collections where K and V are the same type; used for
// nested id sets.
func Add[K comparable](c *Collection[K, K], key K) bool {
	_, added := c.Upsert(key, func() K { return key }, nil)
	return added
}

// Get returns the record stored under key.
func (c *Collection[K, V]) Get(key K) (V, bool) {
	if i, ok := c.positions[key]; ok {
		return c.values[i], true
	}
	var zero V
	return zero, false
}

func (c *Collection[K, V]) Has(key K) bool {
	_, ok := c.positions[key]
	return ok
}

// Position returns the insertion position of key.
func (c *Collection[K, V]) Position(key K) (int, bool) {
	i, ok := c.positions[key]
	return i, ok
}

// At returns the record at position i. It panics if i is out of range.
func (c *Collection[K, V]) At(i int) V {
	return c.values[i]
}

func (c *Collection[K, V]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Keys returns a copy of the keys in insertion order.
func (c *Collection[K, V]) Keys() []K {
	out := make([]K, len(c.keys))
	copy(out, c.keys)
	return out
}

// Values returns a copy of the records in insertion order.
func (c *Collection[K, V]) Values() []V {
	out := make([]V, len(c.values))
	copy(out, c.values)
	return out
}

// Each calls fn for every record in insertion order.
func (c *Collection[K, V]) Each(fn func(K, V)) {
	for i, k := range c.keys {
		fn(k, c.values[i])
	}
}

// Filter returns the records for which keep reports true, in insertion order.
func (c *Collection[K, V]) Filter(keep func(V) bool) []V {
	out := make([]V, 0)
	for _, v := range c.values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
