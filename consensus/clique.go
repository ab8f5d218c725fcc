package consensus

import (
	"sync"
	"sync/atomic"

	"github.com/praizmiky/massa/models"
)

// CliqueEngine implements spec.md §4.5: it maintains the set of maximal
// cliques (pairwise-compatible antichains) over active non-final blocks,
// the symmetric incompatibility graph gi_head, and the election of the
// unique blockclique.
type CliqueEngine struct {
	mu sync.RWMutex

	dag            *ActiveDAG
	threadCount    uint8
	maxCliqueCount int

	cliques  []*models.Clique
	giHead   *models.PreHashMap[*models.PreHashSet]
	nonFinal *models.PreHashSet

	attackAttempts atomic.Uint64
}

// NewCliqueEngine returns a CliqueEngine seeded with a single empty
// blockclique, backed by dag for ancestry queries.
func NewCliqueEngine(dag *ActiveDAG, threadCount uint8, maxCliqueCount int) *CliqueEngine {
	genesis := models.NewClique()
	genesis.IsBlockclique = true
	return &CliqueEngine{
		dag:            dag,
		threadCount:    threadCount,
		maxCliqueCount: maxCliqueCount,
		cliques:        []*models.Clique{genesis},
		giHead:         models.NewPreHashMap[*models.PreHashSet](),
		nonFinal:       models.NewPreHashSet(),
	}
}

// AttackAttempts returns the number of times a block was discarded for
// pushing the clique count past its safety bound.
func (ce *CliqueEngine) AttackAttempts() uint64 { return ce.attackAttempts.Load() }

// Cliques returns a snapshot of the current clique list.
func (ce *CliqueEngine) Cliques() []*models.Clique {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	out := make([]*models.Clique, len(ce.cliques))
	copy(out, ce.cliques)
	return out
}

// Blockclique returns the clique currently flagged is_blockclique, which
// spec.md §3 invariant 5 guarantees is unique.
func (ce *CliqueEngine) Blockclique() *models.Clique {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	for _, k := range ce.cliques {
		if k.IsBlockclique {
			return k
		}
	}
	return nil
}

// areIncompatible reports whether a and b are incompatible per spec.md §3:
// "Two blocks are incompatible iff they share a thread and neither is an
// ancestor of the other, OR they violate the grandpa rule (their parents in
// some other thread are on different branches)."
func (ce *CliqueEngine) areIncompatible(a, b *models.ActiveBlock) bool {
	if a.BlockId == b.BlockId {
		return false
	}
	if a.Slot.Thread == b.Slot.Thread {
		if !ce.dag.IsAncestor(a.BlockId, b.BlockId) && !ce.dag.IsAncestor(b.BlockId, a.BlockId) {
			return true
		}
	}
	for t := uint8(0); t < ce.threadCount; t++ {
		if t == a.Slot.Thread || int(t) >= len(a.Parents) || int(t) >= len(b.Parents) {
			continue
		}
		pa, pb := a.Parents[t].Id, b.Parents[t].Id
		if pa == pb {
			continue
		}
		if !ce.dag.IsAncestor(pa, pb) && !ce.dag.IsAncestor(pb, pa) {
			return true
		}
	}
	return false
}

func (ce *CliqueEngine) computeIncompLocked(b *models.ActiveBlock) *models.PreHashSet {
	incomp := models.NewPreHashSet()
	for _, id := range ce.nonFinal.ToSlice() {
		other, ok := ce.dag.Get(id)
		if !ok {
			continue
		}
		if ce.areIncompatible(b, other) {
			incomp.Add(id)
		}
	}
	return incomp
}

func (ce *CliqueEngine) recordIncompLocked(id models.BlockId, incomp *models.PreHashSet) {
	ce.giHead.Set(id, incomp)
	for _, other := range incomp.ToSlice() {
		set, ok := ce.giHead.Get(other)
		if !ok || set == nil {
			set = models.NewPreHashSet()
		}
		set.Add(id)
		ce.giHead.Set(other, set)
	}
}

// AddBlock runs spec.md §4.5 steps 1-5 for a freshly active, non-final
// block b. It returns true if the insertion pushed the clique count past
// maxCliqueCount, in which case the caller must discard b as an attack
// (attack_attempts has already been incremented) instead of keeping it
// active.
func (ce *CliqueEngine) AddBlock(b *models.ActiveBlock) bool {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	incomp := ce.computeIncompLocked(b)
	ce.recordIncompLocked(b.BlockId, incomp)
	ce.nonFinal.Add(b.BlockId)

	var additions []*models.Clique
	for _, k := range ce.cliques {
		if !k.BlockIds.Intersects(incomp) {
			k.BlockIds.Add(b.BlockId)
			continue
		}
		nk := models.NewClique()
		for _, id := range k.BlockIds.ToSlice() {
			if !incomp.Contains(id) {
				nk.BlockIds.Add(id)
			}
		}
		nk.BlockIds.Add(b.BlockId)
		additions = append(additions, nk)
	}
	ce.cliques = append(ce.cliques, additions...)
	ce.dedupeLocked()

	if len(ce.cliques) > ce.maxCliqueCount {
		ce.attackAttempts.Add(1)
		return true
	}

	ce.recomputeFitnessLocked()
	return false
}

// dedupeLocked drops any clique that is a strict subset of another,
// including exact duplicates produced by the split step (spec.md §4.5 step
// 3: "Drop any clique strictly contained in another.").
func (ce *CliqueEngine) dedupeLocked() {
	keep := make([]*models.Clique, 0, len(ce.cliques))
	for i, a := range ce.cliques {
		dominated := false
		for j, c := range ce.cliques {
			if i == j {
				continue
			}
			if a.BlockIds.Len() > c.BlockIds.Len() {
				continue
			}
			if !a.BlockIds.IsSubsetOf(c.BlockIds) {
				continue
			}
			if a.BlockIds.Len() == c.BlockIds.Len() {
				// Exact duplicate: keep the earlier-indexed copy only.
				if j < i {
					dominated = true
					break
				}
				continue
			}
			dominated = true
			break
		}
		if !dominated {
			keep = append(keep, a)
		}
	}
	ce.cliques = keep
}

func (ce *CliqueEngine) cliqueFitnessLocked(k *models.Clique) uint64 {
	var total uint64
	for _, id := range k.BlockIds.ToSlice() {
		if ab, ok := ce.dag.Get(id); ok {
			total += ab.Fitness
		}
	}
	return total
}

// recomputeFitnessLocked implements spec.md §4.5 step 5: recompute every
// clique's fitness and flag the unique maximum as the blockclique, breaking
// ties by the lexicographically smallest set of block ids.
func (ce *CliqueEngine) recomputeFitnessLocked() {
	if len(ce.cliques) == 0 {
		return
	}
	bestIdx := 0
	ce.cliques[0].Fitness = ce.cliqueFitnessLocked(ce.cliques[0])
	for i := 1; i < len(ce.cliques); i++ {
		k := ce.cliques[i]
		k.Fitness = ce.cliqueFitnessLocked(k)
		switch {
		case k.Fitness > ce.cliques[bestIdx].Fitness:
			bestIdx = i
		case k.Fitness == ce.cliques[bestIdx].Fitness && lexLess(k.SortedBlockIds(), ce.cliques[bestIdx].SortedBlockIds()):
			bestIdx = i
		}
	}
	for i, k := range ce.cliques {
		k.IsBlockclique = i == bestIdx
	}
}

// lexLess reports whether a sorts before b lexicographically by element.
func lexLess(a, b []models.BlockId) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i].Less(b[i])
	}
	return len(a) < len(b)
}

// StaleFitness implements spec.md §4.6: "stale_fitness = sum fitness(Y) for
// Y in any clique not containing X".
func (ce *CliqueEngine) StaleFitness(x models.BlockId) uint64 {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	var total uint64
	for _, k := range ce.cliques {
		if k.BlockIds.Contains(x) {
			continue
		}
		total += ce.cliqueFitnessLocked(k)
	}
	return total
}

// RemoveFinalized implements the clique-side bookkeeping of spec.md §4.6 on
// finalization of id: it is removed from gi_head and from every clique
// other than the blockclique; any non-blockclique clique that still
// contained it is discarded outright ("it cannot belong to a losing clique
// by construction; if it does, those cliques are discarded").
func (ce *CliqueEngine) RemoveFinalized(id models.BlockId) {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if incomp, ok := ce.giHead.Get(id); ok {
		for _, other := range incomp.ToSlice() {
			if set, ok := ce.giHead.Get(other); ok && set != nil {
				set.Remove(id)
			}
		}
	}
	ce.giHead.Delete(id)
	ce.nonFinal.Remove(id)

	kept := make([]*models.Clique, 0, len(ce.cliques))
	for _, k := range ce.cliques {
		if k.IsBlockclique {
			k.BlockIds.Remove(id)
			kept = append(kept, k)
			continue
		}
		if k.BlockIds.Contains(id) {
			continue // discarded: a losing clique cannot retain a final block
		}
		kept = append(kept, k)
	}
	ce.cliques = kept
	ce.recomputeFitnessLocked()
}

// IncompatibleWith returns a snapshot of the non-final active blocks
// currently recorded as incompatible with id, used by the finality engine's
// stale-detection pass.
func (ce *CliqueEngine) IncompatibleWith(id models.BlockId) []models.BlockId {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	set, ok := ce.giHead.Get(id)
	if !ok || set == nil {
		return nil
	}
	return set.ToSlice()
}

// RemoveDiscarded strips id out of gi_head and every clique, used when a
// non-final active block is discarded as stale or pruned.
func (ce *CliqueEngine) RemoveDiscarded(id models.BlockId) {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if incomp, ok := ce.giHead.Get(id); ok {
		for _, other := range incomp.ToSlice() {
			if set, ok := ce.giHead.Get(other); ok && set != nil {
				set.Remove(id)
			}
		}
	}
	ce.giHead.Delete(id)
	ce.nonFinal.Remove(id)

	for _, k := range ce.cliques {
		k.BlockIds.Remove(id)
	}
	ce.dedupeLocked()
	ce.recomputeFitnessLocked()
}
