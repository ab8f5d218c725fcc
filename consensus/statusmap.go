package consensus

import (
	"sync"
	"sync/atomic"

	"github.com/praizmiky/massa/models"
)

// StatusMap is the block-status map of spec.md §4.2: a single authoritative
// map from BlockId to BlockStatus, kept consistent with five index sets
// (one per StatusKind) under a single write-lock so every transition updates
// both atomically.
type StatusMap struct {
	mu sync.RWMutex

	entries map[models.BlockId]BlockStatus

	incomingIndex              *models.PreHashSet
	waitingForSlotIndex        *models.PreHashSet
	waitingForDependenciesIndex *models.PreHashSet
	activeIndex                *models.PreHashSet
	discardedIndex             *models.PreHashSet

	sequences map[models.BlockId]uint64
	nextSeq   atomic.Uint64

	maxDiscarded  uint64
	maxDependency uint64
}

// NewStatusMap builds an empty StatusMap bounded by the given limits.
func NewStatusMap(maxDiscarded, maxDependency uint64) *StatusMap {
	return &StatusMap{
		entries:                     make(map[models.BlockId]BlockStatus),
		incomingIndex:               models.NewPreHashSet(),
		waitingForSlotIndex:         models.NewPreHashSet(),
		waitingForDependenciesIndex: models.NewPreHashSet(),
		activeIndex:                 models.NewPreHashSet(),
		discardedIndex:              models.NewPreHashSet(),
		sequences:                   make(map[models.BlockId]uint64),
		maxDiscarded:                maxDiscarded,
		maxDependency:               maxDependency,
	}
}

func indexFor(m *StatusMap, kind StatusKind) *models.PreHashSet {
	switch kind {
	case StatusIncoming:
		return m.incomingIndex
	case StatusWaitingForSlot:
		return m.waitingForSlotIndex
	case StatusWaitingForDependencies:
		return m.waitingForDependenciesIndex
	case StatusActive:
		return m.activeIndex
	case StatusDiscarded:
		return m.discardedIndex
	default:
		return nil
	}
}

// Get returns the current status of id, if known.
func (m *StatusMap) Get(id models.BlockId) (BlockStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[id]
	return s, ok
}

// Has reports whether id has any recorded status, terminal or not.
func (m *StatusMap) Has(id models.BlockId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

// Len returns the total number of tracked entries across all indices.
func (m *StatusMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Insert records status for id and evicts under pressure per spec.md
// §4.2/§4.3. An id seen for the first time gets a fresh monotonic sequence
// number; re-inserting a known id keeps the sequence it already has.
// Returns the sequence recorded for id.
func (m *StatusMap) Insert(id models.BlockId, status BlockStatus) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(id, status)
}

func (m *StatusMap) insertLocked(id models.BlockId, status BlockStatus) uint64 {
	if old, ok := m.entries[id]; ok {
		if oldIdx := indexFor(m, old.Kind); oldIdx != nil {
			oldIdx.Remove(id)
		}
	} else {
		m.nextSeq.Add(1)
		m.sequences[id] = m.nextSeq.Load()
	}
	m.entries[id] = status
	if idx := indexFor(m, status.Kind); idx != nil {
		idx.Add(id)
	}

	switch status.Kind {
	case StatusDiscarded:
		m.evictDiscardedLocked()
	case StatusWaitingForDependencies:
		m.evictDependenciesLocked()
	}
	return m.sequences[id]
}

// Remove deletes id from the map entirely (e.g. on pruning).
func (m *StatusMap) Remove(id models.BlockId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *StatusMap) removeLocked(id models.BlockId) {
	if old, ok := m.entries[id]; ok {
		if idx := indexFor(m, old.Kind); idx != nil {
			idx.Remove(id)
		}
	}
	delete(m.entries, id)
	delete(m.sequences, id)
}

// SequenceOf returns the monotonic sequence number assigned to id's current
// entry, used for deterministic eviction and cycle detection.
func (m *StatusMap) SequenceOf(id models.BlockId) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq, ok := m.sequences[id]
	return seq, ok
}

// IDsByKind returns a snapshot of the ids currently tracked under kind.
func (m *StatusMap) IDsByKind(kind StatusKind) []models.BlockId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := indexFor(m, kind)
	if idx == nil {
		return nil
	}
	return idx.ToSlice()
}

// oldestLocked returns the id with the smallest sequence number among idx,
// or false if idx is empty.
func (m *StatusMap) oldestLocked(idx *models.PreHashSet) (models.BlockId, bool) {
	var (
		found   bool
		oldest  models.BlockId
		minSeq  uint64
	)
	for _, id := range idx.ToSlice() {
		seq := m.sequences[id]
		if !found || seq < minSeq {
			found = true
			oldest = id
			minSeq = seq
		}
	}
	return oldest, found
}

// evictDiscardedLocked drops the oldest discarded entries once the
// discarded index exceeds maxDiscarded. Discarded entries drop silently
// (spec.md §4.2).
func (m *StatusMap) evictDiscardedLocked() {
	if m.maxDiscarded == 0 {
		return
	}
	for uint64(m.discardedIndex.Len()) > m.maxDiscarded {
		id, ok := m.oldestLocked(m.discardedIndex)
		if !ok {
			return
		}
		m.removeLocked(id)
	}
}

// evictDependenciesLocked drops the oldest waiting-for-dependencies entries
// once the index exceeds maxDependency, and cascades: any remaining entry
// whose Missing set names the evicted id is itself marked Discarded(stale),
// since the block it was waiting on has been permanently forgotten
// (spec.md §4.3: "dependency entries drop and mark their dependents stale").
func (m *StatusMap) evictDependenciesLocked() {
	if m.maxDependency == 0 {
		return
	}
	for uint64(m.waitingForDependenciesIndex.Len()) > m.maxDependency {
		id, ok := m.oldestLocked(m.waitingForDependenciesIndex)
		if !ok {
			return
		}
		m.removeLocked(id)
		m.cascadeStaleLocked(id)
	}
}

// cascadeStaleLocked marks every WaitingForDependencies entry whose Missing
// set names goneID as Discarded(stale), since goneID will never resolve.
func (m *StatusMap) cascadeStaleLocked(goneID models.BlockId) {
	for _, id := range m.waitingForDependenciesIndex.ToSlice() {
		entry := m.entries[id]
		if entry.Missing != nil && entry.Missing.Contains(goneID) {
			seq := m.sequences[id]
			m.insertLocked(id, NewDiscardedStatus(DiscardStale, seq))
		}
	}
}
