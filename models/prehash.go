package models

import "sort"

// PreHashMap is a map keyed by BlockId that buckets on BlockId.Prehash()
// instead of re-hashing the 32-byte key through Go's built-in map hash on
// every access. This mirrors massa's PreHashMap/PreHashSet, which exist for
// the same reason: BlockIds are already uniformly-distributed content
// hashes, so a second generic hash pass is wasted work on the hot insert
// path of the active DAG and block-status indices.
//
// Not safe for concurrent use by itself; callers in this module always hold
// the consensus graph's single read-write lock while mutating one.
type PreHashMap[V any] struct {
	buckets map[uint64][]preHashEntry[V]
	size    int
}

type preHashEntry[V any] struct {
	key V
	id  BlockId
	val V
}

// NewPreHashMap returns an empty PreHashMap.
func NewPreHashMap[V any]() *PreHashMap[V] {
	return &PreHashMap[V]{buckets: make(map[uint64][]preHashEntry[V])}
}

// Get returns the value stored for id, if any.
func (m *PreHashMap[V]) Get(id BlockId) (V, bool) {
	var zero V
	bucket, ok := m.buckets[id.Prehash()]
	if !ok {
		return zero, false
	}
	for _, e := range bucket {
		if e.id == id {
			return e.val, true
		}
	}
	return zero, false
}

// Has reports whether id is present.
func (m *PreHashMap[V]) Has(id BlockId) bool {
	_, ok := m.Get(id)
	return ok
}

// Set inserts or overwrites the value for id.
func (m *PreHashMap[V]) Set(id BlockId, val V) {
	h := id.Prehash()
	bucket := m.buckets[h]
	for i, e := range bucket {
		if e.id == id {
			bucket[i].val = val
			return
		}
	}
	m.buckets[h] = append(bucket, preHashEntry[V]{id: id, val: val})
	m.size++
}

// Delete removes id, if present. Returns whether it was present.
func (m *PreHashMap[V]) Delete(id BlockId) bool {
	h := id.Prehash()
	bucket := m.buckets[h]
	for i, e := range bucket {
		if e.id == id {
			m.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			if len(m.buckets[h]) == 0 {
				delete(m.buckets, h)
			}
			m.size--
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (m *PreHashMap[V]) Len() int { return m.size }

// Range calls fn for every entry. Iteration order is unspecified. fn must
// not mutate the map.
func (m *PreHashMap[V]) Range(fn func(id BlockId, val V)) {
	for _, bucket := range m.buckets {
		for _, e := range bucket {
			fn(e.id, e.val)
		}
	}
}

// Keys returns all keys in unspecified order.
func (m *PreHashMap[V]) Keys() []BlockId {
	out := make([]BlockId, 0, m.size)
	m.Range(func(id BlockId, _ V) { out = append(out, id) })
	return out
}

// SortedKeys returns all keys sorted by BlockId.Less, the deterministic
// "lexicographically smallest id" tie-break used throughout spec.md §4.
func (m *PreHashMap[V]) SortedKeys() []BlockId {
	keys := m.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// PreHashSet is a PreHashMap[struct{}] used as a set of BlockIds.
type PreHashSet struct {
	m *PreHashMap[struct{}]
}

// NewPreHashSet returns an empty PreHashSet, optionally seeded with ids.
func NewPreHashSet(ids ...BlockId) *PreHashSet {
	s := &PreHashSet{m: NewPreHashMap[struct{}]()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set.
func (s *PreHashSet) Add(id BlockId) { s.m.Set(id, struct{}{}) }

// Remove deletes id from the set.
func (s *PreHashSet) Remove(id BlockId) bool { return s.m.Delete(id) }

// Contains reports whether id is in the set.
func (s *PreHashSet) Contains(id BlockId) bool { return s.m.Has(id) }

// Len returns the set size.
func (s *PreHashSet) Len() int { return s.m.Len() }

// ToSlice returns the set members in unspecified order.
func (s *PreHashSet) ToSlice() []BlockId { return s.m.Keys() }

// ToSortedSlice returns the set members sorted by BlockId.Less.
func (s *PreHashSet) ToSortedSlice() []BlockId { return s.m.SortedKeys() }

// Clone returns a shallow copy of the set.
func (s *PreHashSet) Clone() *PreHashSet {
	c := NewPreHashSet()
	s.m.Range(func(id BlockId, _ struct{}) { c.Add(id) })
	return c
}

// Intersects reports whether s and o share at least one element.
func (s *PreHashSet) Intersects(o *PreHashSet) bool {
	small, big := s, o
	if small.Len() > big.Len() {
		small, big = big, small
	}
	found := false
	small.m.Range(func(id BlockId, _ struct{}) {
		if !found && big.Contains(id) {
			found = true
		}
	})
	return found
}

// IsSubsetOf reports whether every element of s is also in o.
func (s *PreHashSet) IsSubsetOf(o *PreHashSet) bool {
	if s.Len() > o.Len() {
		return false
	}
	subset := true
	s.m.Range(func(id BlockId, _ struct{}) {
		if subset && !o.Contains(id) {
			subset = false
		}
	})
	return subset
}
