package consensus

import (
	"sync"

	"github.com/praizmiky/massa/models"
)

// FinalityEngine implements spec.md §4.6: once the clique engine has placed
// a new block, it walks the blockclique looking for members that have
// accumulated enough fitness lead over every losing clique to be declared
// final, then carries out the consequences of finalization (stale
// detection, pruning).
type FinalityEngine struct {
	mu sync.Mutex

	dag    *ActiveDAG
	clique *CliqueEngine
	statuses *StatusMap
	deps   *DependencyTracker

	deltaF0               uint64
	forceKeepFinalPeriods uint64

	onFinal func(ids []models.BlockId)
}

// NewFinalityEngine wires a FinalityEngine over the given components. onFinal,
// if non-nil, is invoked with the ids newly marked final after each
// Advance call (spec.md §4.6: "Emit new_final_blocks event.").
func NewFinalityEngine(dag *ActiveDAG, clique *CliqueEngine, statuses *StatusMap, deps *DependencyTracker, deltaF0, forceKeepFinalPeriods uint64, onFinal func([]models.BlockId)) *FinalityEngine {
	return &FinalityEngine{
		dag:                   dag,
		clique:                clique,
		statuses:              statuses,
		deps:                  deps,
		deltaF0:               deltaF0,
		forceKeepFinalPeriods: forceKeepFinalPeriods,
		onFinal:               onFinal,
	}
}

// Advance runs spec.md §4.6 over the current blockclique: for each
// not-yet-final member X, compute stale_fitness over every clique not
// containing X, and finalize X once blockclique.fitness - stale_fitness
// reaches delta_f0. Returns the ids newly finalized in this call.
func (fe *FinalityEngine) Advance() []models.BlockId {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	bc := fe.clique.Blockclique()
	if bc == nil {
		return nil
	}

	var newlyFinal []models.BlockId
	for _, id := range bc.SortedBlockIds() {
		ab, ok := fe.dag.Get(id)
		if !ok || ab.IsFinal {
			continue
		}
		staleFitness := fe.clique.StaleFitness(id)
		if bc.Fitness < staleFitness {
			continue
		}
		if bc.Fitness-staleFitness >= fe.deltaF0 {
			fe.finalizeLocked(id)
			newlyFinal = append(newlyFinal, id)
		}
	}

	if len(newlyFinal) > 0 && fe.onFinal != nil {
		fe.onFinal(newlyFinal)
	}
	return newlyFinal
}

// finalizeLocked carries out spec.md §4.6's consequences of finalizing id:
// advance latest_final_blocks_periods, drop id from gi_head and losing
// cliques, cascade Discarded(stale) to every block incompatible with it,
// and prune blocks that have fallen beyond force_keep_final_periods of
// their thread's latest final block and have no final descendant.
func (fe *FinalityEngine) finalizeLocked(id models.BlockId) {
	incompatibles := fe.clique.IncompatibleWith(id)

	fe.dag.MarkFinal(id)
	fe.clique.RemoveFinalized(id)

	for _, other := range incompatibles {
		fe.markStaleLocked(other)
	}

	fe.pruneLocked()
}

// markStaleLocked implements spec.md §4.6's "Stale detection: any active
// block incompatible with a final block becomes Discarded(stale); its
// dependents are released with that dependency removed (failing
// validation)."
func (fe *FinalityEngine) markStaleLocked(id models.BlockId) {
	ab, ok := fe.dag.Get(id)
	if !ok || ab.IsFinal {
		return
	}
	status, ok := fe.statuses.Get(id)
	if !ok || status.Kind != StatusActive {
		return
	}
	seq, _ := fe.statuses.SequenceOf(id)
	fe.statuses.Insert(id, NewDiscardedStatus(DiscardStale, seq))
	fe.clique.RemoveDiscarded(id)
	fe.dag.Remove(id)
	fe.deps.DiscardDependency(id)
}

// pruneLocked implements the final clause of spec.md §4.6: permanently
// forget active blocks (final or not) that are beyond force_keep_final_
// periods of their thread's latest final block and have no final
// descendant to justify keeping them around.
func (fe *FinalityEngine) pruneLocked() {
	for _, id := range fe.dag.CandidatesForPruning(fe.forceKeepFinalPeriods) {
		if !fe.statuses.Has(id) {
			continue
		}
		seq, _ := fe.statuses.SequenceOf(id)
		fe.statuses.Insert(id, NewDiscardedStatus(DiscardFinal, seq))
		fe.clique.RemoveDiscarded(id)
		fe.dag.Remove(id)
	}
}
