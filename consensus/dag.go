package consensus

import (
	"errors"
	"sync"

	"github.com/praizmiky/massa/models"
)

var (
	// ErrMissingBlock is returned when a non-final block references a parent
	// that cannot be resolved in the DAG (spec.md §4.4, §7: "MissingBlock(id)
	// - bootstrap claim failure on a non-final; fatal during import,
	// recoverable during ingest").
	ErrMissingBlock = errors.New("dag: missing parent block")
	// ErrWrongParentCount is returned when a block does not carry exactly
	// one parent per thread.
	ErrWrongParentCount = errors.New("dag: wrong parent count")
)

// ActiveDAG is the active, non-pruned portion of the consensus graph
// (spec.md §4.4): every ActiveBlock reachable through Insert, indexed by id,
// with per-thread children maps and transitive descendant sets maintained
// incrementally.
type ActiveDAG struct {
	mu sync.RWMutex

	threadCount uint8
	blocks      map[models.BlockId]*models.ActiveBlock

	// latestFinal[t] is the period of the latest final block in thread t,
	// used by bestParents to bound the search (spec.md §3 invariant 4).
	latestFinal []uint64
}

// NewActiveDAG returns an empty DAG for threadCount threads.
func NewActiveDAG(threadCount uint8) *ActiveDAG {
	return &ActiveDAG{
		threadCount: threadCount,
		blocks:      make(map[models.BlockId]*models.ActiveBlock),
		latestFinal: make([]uint64, threadCount),
	}
}

// Get returns the ActiveBlock for id, if present.
func (d *ActiveDAG) Get(id models.BlockId) (*models.ActiveBlock, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ab, ok := d.blocks[id]
	return ab, ok
}

// Len returns the number of active blocks tracked.
func (d *ActiveDAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.blocks)
}

// Insert adds ab to the DAG, claiming its parent references and updating
// children/descendants (spec.md §4.4: "On insert: claim parent references
// in the block's storage handle (all THREAD_COUNT parents must resolve for
// non-final blocks, else fail with MissingBlock). For each parent, add the
// new block to children[my_thread]; for each ancestor (transitive), add the
// new block to descendants.").
//
// Missing parents are tolerated when ab.IsFinal is true (they may lie
// beyond the pruning horizon, e.g. during bootstrap import per §4.8) but are
// fatal otherwise.
func (d *ActiveDAG) Insert(ab *models.ActiveBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !ab.IsFinal && len(ab.Parents) != int(d.threadCount) && len(ab.Parents) != 0 {
		return ErrWrongParentCount
	}

	resolvedParents := make([]*models.ActiveBlock, len(ab.Parents))
	for i, p := range ab.Parents {
		parent, ok := d.blocks[p.Id]
		if !ok {
			if ab.IsFinal {
				continue
			}
			return ErrMissingBlock
		}
		resolvedParents[i] = parent
	}

	d.blocks[ab.BlockId] = ab

	for thread, parent := range resolvedParents {
		if parent == nil {
			continue
		}
		parent.Children[thread].Set(ab.BlockId, ab.Slot.Period)
	}

	// Transitive descendants: this block is a descendant of every ancestor
	// reachable from its resolved parents.
	visited := models.NewPreHashSet()
	var stack []*models.ActiveBlock
	for _, parent := range resolvedParents {
		if parent != nil {
			stack = append(stack, parent)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Contains(cur.BlockId) {
			continue
		}
		visited.Add(cur.BlockId)
		cur.Descendants.Add(ab.BlockId)
		for _, gp := range cur.Parents {
			if grand, ok := d.blocks[gp.Id]; ok {
				stack = append(stack, grand)
			}
		}
	}

	if ab.IsFinal {
		if int(ab.Slot.Thread) < len(d.latestFinal) && ab.Slot.Period > d.latestFinal[ab.Slot.Thread] {
			d.latestFinal[ab.Slot.Thread] = ab.Slot.Period
		}
	}

	return nil
}

// Remove deletes id from the DAG, used when a once-active block is finally
// pruned (Discarded beyond force_keep_final_periods).
func (d *ActiveDAG) Remove(id models.BlockId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blocks, id)
}

// MarkFinal flags id's ActiveBlock as final and advances latestFinal for its
// thread if needed (spec.md §4.6: "Update latest_final_blocks_periods[t] if
// p exceeds it."). The BlockStatus held elsewhere shares the same
// *ActiveBlock pointer, so this is visible through it without reinsertion.
func (d *ActiveDAG) MarkFinal(id models.BlockId) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ab, ok := d.blocks[id]
	if !ok {
		return ErrMissingBlock
	}
	ab.IsFinal = true
	if int(ab.Slot.Thread) < len(d.latestFinal) && ab.Slot.Period > d.latestFinal[ab.Slot.Thread] {
		d.latestFinal[ab.Slot.Thread] = ab.Slot.Period
	}
	return nil
}

// CandidatesForPruning returns active blocks eligible for final pruning
// (spec.md §4.6: "Any active block that is an ancestor of no final
// descendant and whose slot is < latest_final_blocks_periods[its_thread] -
// force_keep_final_periods is pruned to Discarded(final).").
func (d *ActiveDAG) CandidatesForPruning(forceKeepFinalPeriods uint64) []models.BlockId {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []models.BlockId
	for id, ab := range d.blocks {
		t := ab.Slot.Thread
		if int(t) >= len(d.latestFinal) {
			continue
		}
		threshold := d.latestFinal[t]
		if threshold < forceKeepFinalPeriods {
			continue
		}
		cutoff := threshold - forceKeepFinalPeriods
		if ab.Slot.Period >= cutoff {
			continue
		}
		if d.hasFinalDescendantLocked(ab) {
			continue
		}
		result = append(result, id)
	}
	return result
}

func (d *ActiveDAG) hasFinalDescendantLocked(ab *models.ActiveBlock) bool {
	for _, desc := range ab.Descendants.ToSlice() {
		if other, ok := d.blocks[desc]; ok && other.IsFinal {
			return true
		}
	}
	return false
}

// IsAncestor reports whether ancestor is a (transitive) ancestor of
// descendant, used by topology queries feeding the clique engine.
func (d *ActiveDAG) IsAncestor(ancestor, descendant models.BlockId) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	anc, ok := d.blocks[ancestor]
	if !ok {
		return false
	}
	return anc.Descendants.Contains(descendant)
}

// LatestFinalPeriod returns the period of the latest final block known in
// thread t.
func (d *ActiveDAG) LatestFinalPeriod(t uint8) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(t) >= len(d.latestFinal) {
		return 0
	}
	return d.latestFinal[t]
}

// BestParents picks, for each thread, the highest-fitness descendant of the
// latest final block among the blocks named in clique, breaking ties by
// smallest BlockId (spec.md §4.4: "best_parents(clique) -> [(BlockId,
// period); THREAD_COUNT]: for each thread pick the descendant-of-latest-
// final with highest (fitness, -id) tie-break").
func (d *ActiveDAG) BestParents(clique *models.Clique) []models.ParentWithPeriod {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]models.ParentWithPeriod, d.threadCount)
	var best [256]*models.ActiveBlock // indexed by thread, threadCount <= 255 in practice

	for _, id := range clique.BlockIds.ToSlice() {
		ab, ok := d.blocks[id]
		if !ok {
			continue
		}
		t := ab.Slot.Thread
		if int(t) >= int(d.threadCount) {
			continue
		}
		if ab.Slot.Period < d.latestFinal[t] {
			continue
		}
		cur := best[t]
		if cur == nil || ab.Fitness > cur.Fitness || (ab.Fitness == cur.Fitness && ab.BlockId.Less(cur.BlockId)) {
			best[t] = ab
		}
	}

	for t := uint8(0); t < d.threadCount; t++ {
		if b := best[t]; b != nil {
			result[t] = models.ParentWithPeriod{Id: b.BlockId, Period: b.Slot.Period}
		}
	}
	return result
}
