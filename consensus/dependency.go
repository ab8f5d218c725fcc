package consensus

import (
	"github.com/praizmiky/massa/models"
)

// DependencyTracker implements spec.md §4.3: it holds blocks that cannot yet
// become Active, either because their slot has not arrived (the slot index)
// or because one or more referenced blocks are still unknown (the
// dependency index). Both indices live inside the shared StatusMap; this
// type adds the draining and resolution logic around it.
type DependencyTracker struct {
	statuses *StatusMap
}

// NewDependencyTracker returns a tracker backed by statuses.
func NewDependencyTracker(statuses *StatusMap) *DependencyTracker {
	return &DependencyTracker{statuses: statuses}
}

// WaitForSlot records id as WaitingForSlot(slot), retaining header/block so
// it can be resubmitted once ready.
func (d *DependencyTracker) WaitForSlot(id models.BlockId, slot models.Slot, header *models.BlockHeader, block *models.Block) {
	d.statuses.Insert(id, NewWaitingForSlotStatus(slot, header, block))
}

// DrainReadySlots returns every block whose WaitingForSlot slot is now
// <= current, removing them from the slot index and re-queuing them as
// Incoming (spec.md §4.3: "the worker drains all entries with slot <=
// current_slot each tick and re-submits them as Incoming"). The caller is
// expected to feed the returned headers/blocks back through the driver's
// Incoming path.
func (d *DependencyTracker) DrainReadySlots(current models.Slot) []BlockStatus {
	var ready []BlockStatus
	for _, id := range d.statuses.IDsByKind(StatusWaitingForSlot) {
		status, ok := d.statuses.Get(id)
		if !ok || status.Kind != StatusWaitingForSlot {
			continue
		}
		if status.WaitingSlot.After(current) {
			continue
		}
		incoming := NewIncomingStatus(status.Header, status.Block)
		d.statuses.Insert(id, incoming)
		ready = append(ready, incoming)
	}
	return ready
}

// WaitForDependencies records id as WaitingForDependencies(missing),
// assigning it a fresh sequence number, and retains header/block so the
// entry can be replayed through the driver once every missing id resolves.
func (d *DependencyTracker) WaitForDependencies(id models.BlockId, missing *models.PreHashSet, header *models.BlockHeader, block *models.Block) uint64 {
	seq := d.statuses.Insert(id, NewWaitingForDependenciesStatus(missing, 0, header, block))
	// The sequence assigned by Insert is authoritative; re-stamp the status
	// so Sequence matches what StatusMap/eviction use for ordering.
	status, _ := d.statuses.Get(id)
	status.Sequence = seq
	d.statuses.Insert(id, status)
	return seq
}

// ResolveDependency removes resolvedID from every pending WaitingFor
// Dependencies entry's Missing set. Any entry whose set becomes empty as a
// result is returned so the caller can re-drive it into the Active path
// (spec.md §4.3: "When a block becomes Active, its id is removed from every
// missing set; any block whose set becomes empty re-enters the driver").
func (d *DependencyTracker) ResolveDependency(resolvedID models.BlockId) []models.BlockId {
	var released []models.BlockId
	for _, id := range d.statuses.IDsByKind(StatusWaitingForDependencies) {
		status, ok := d.statuses.Get(id)
		if !ok || status.Missing == nil {
			continue
		}
		if !status.Missing.Contains(resolvedID) {
			continue
		}
		status.Missing.Remove(resolvedID)
		if status.Missing.Len() == 0 {
			released = append(released, id)
			continue
		}
		d.statuses.Insert(id, status)
	}
	return released
}

// DiscardDependency marks every WaitingForDependencies entry whose Missing
// set names goneID as Discarded(invalid): goneID was itself discarded
// (e.g. stale, per spec.md §4.6), so anything waiting on it can never
// validate (spec.md §4.6: "its dependents are released with that
// dependency removed (failing validation)").
func (d *DependencyTracker) DiscardDependency(goneID models.BlockId) []models.BlockId {
	var affected []models.BlockId
	for _, id := range d.statuses.IDsByKind(StatusWaitingForDependencies) {
		status, ok := d.statuses.Get(id)
		if !ok || status.Missing == nil || !status.Missing.Contains(goneID) {
			continue
		}
		seq, _ := d.statuses.SequenceOf(id)
		d.statuses.Insert(id, NewDiscardedStatus(DiscardInvalid, seq))
		affected = append(affected, id)
	}
	return affected
}

// CycleLength returns the number of hops from id through Missing sets that
// are themselves WaitingForDependencies entries, used to detect dependency
// cycles (spec.md §4.3: "a cycle among missing -> whole chain marked
// Discarded(invalid)"). It stops and returns -1 if it detects a repeat
// (a genuine cycle) before exhausting the chain, or once it walks more
// hops than there are tracked dependency entries (cannot be a simple chain).
func (d *DependencyTracker) CycleLength(id models.BlockId) int {
	visited := models.NewPreHashSet()
	visited.Add(id)
	current := id
	limit := len(d.statuses.IDsByKind(StatusWaitingForDependencies)) + 1
	for i := 0; i < limit; i++ {
		status, ok := d.statuses.Get(current)
		if !ok || status.Kind != StatusWaitingForDependencies || status.Missing == nil || status.Missing.Len() != 1 {
			return i
		}
		next := status.Missing.ToSlice()[0]
		if visited.Contains(next) {
			return -1
		}
		visited.Add(next)
		current = next
	}
	return -1
}

// DiscardChain marks id and every entry reachable through a single-missing
// chain starting at id as Discarded(invalid), used once CycleLength detects
// a genuine cycle.
func (d *DependencyTracker) DiscardChain(id models.BlockId) {
	visited := models.NewPreHashSet()
	current := id
	for {
		if visited.Contains(current) {
			return
		}
		visited.Add(current)
		status, ok := d.statuses.Get(current)
		if !ok || status.Kind != StatusWaitingForDependencies {
			return
		}
		seq, _ := d.statuses.SequenceOf(current)
		d.statuses.Insert(current, NewDiscardedStatus(DiscardInvalid, seq))
		if status.Missing == nil || status.Missing.Len() != 1 {
			return
		}
		current = status.Missing.ToSlice()[0]
	}
}
