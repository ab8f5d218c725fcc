package consensus

import (
	"errors"
	"sort"

	"github.com/praizmiky/massa/models"
)

// ErrMissingNonFinalParent names the fatal import case of spec.md §4.8: a
// missing non-final parent, as opposed to a missing final parent, which is
// tolerated as having already fallen beyond the pruning horizon.
// ImportBootstrap does not return it: every entry it imports is final, and
// ActiveDAG.Insert tolerates missing parents of final blocks.
var ErrMissingNonFinalParent = errors.New("bootstrap: missing non-final parent")

// Bootstrap implements C8: producing a paginated export of the final active
// blocks, and consuming one to reconstruct a DAG on a joining node (spec.md
// §4.8).
type Bootstrap struct {
	dag        *ActiveDAG
	statuses   *StatusMap
	threadCount uint8
	partSize   uint64
}

// NewBootstrap wires a Bootstrap exporter/importer over dag and statuses.
func NewBootstrap(dag *ActiveDAG, statuses *StatusMap, threadCount uint8, partSize uint64) *Bootstrap {
	return &Bootstrap{dag: dag, statuses: statuses, threadCount: threadCount, partSize: partSize}
}

// ExportPart returns up to bootstrap_part_size final active blocks in
// ascending slot order starting at cursor (inclusive, so the zero Slot
// starts from genesis), plus the cursor to pass on the next call (the slot
// right after the last exported block) and whether more parts remain
// (spec.md §4.8: "chunks of up
// to bootstrap_part_size final active blocks in ascending slot order, with
// a cursor carried across calls").
func (b *Bootstrap) ExportPart(cursor models.Slot) (models.BootstrapableGraph, models.Slot, bool, error) {
	finals := b.sortedFinals()

	start := 0
	for start < len(finals) && finals[start].Slot.Before(cursor) {
		start++
	}

	end := start + int(b.partSize)
	if end > len(finals) {
		end = len(finals)
	}

	graph := models.BootstrapableGraph{FinalBlocks: make([]models.ExportActiveBlock, 0, end-start)}
	for _, ab := range finals[start:end] {
		status, ok := b.statuses.Get(ab.BlockId)
		if !ok || status.Active == nil {
			continue
		}
		eab := models.ExportActiveBlock{
			Id:             ab.BlockId,
			CreatorAddress: ab.CreatorAddress,
			Fitness:        ab.Fitness,
		}
		if status.Block != nil {
			eab.Header = status.Block.Header
			eab.Operations = status.Block.Operations
		} else if status.Header != nil {
			eab.Header = *status.Header
		} else {
			eab.Header = models.BlockHeader{Slot: ab.Slot, Parents: parentIds(ab.Parents)}
		}
		graph.FinalBlocks = append(graph.FinalBlocks, eab)
	}

	next := cursor
	if len(graph.FinalBlocks) > 0 {
		last := graph.FinalBlocks[len(graph.FinalBlocks)-1].Header.Slot
		var err error
		if next, err = last.NextInThread(b.threadCount); err != nil {
			return models.BootstrapableGraph{}, cursor, false, err
		}
	}
	hasMore := end < len(finals)
	return graph, next, hasMore, nil
}

// sortedFinals returns every final ActiveBlock in ascending slot order.
func (b *Bootstrap) sortedFinals() []*models.ActiveBlock {
	var finals []*models.ActiveBlock
	for _, kind := range []StatusKind{StatusActive} {
		for _, id := range b.statuses.IDsByKind(kind) {
			ab, ok := b.dag.Get(id)
			if !ok || !ab.IsFinal {
				continue
			}
			finals = append(finals, ab)
		}
	}
	sort.Slice(finals, func(i, j int) bool { return finals[i].Slot.Before(finals[j].Slot) })
	return finals
}

// ImportBootstrap reconstructs the DAG from a received BootstrapableGraph:
// each ExportActiveBlock is inserted as Active{is_final:true}, claiming
// parent refs to rebuild children/descendants (spec.md §4.8, §4.4). Missing
// parents of finals are tolerated; this function does not itself enforce
// non-final-parent presence since a bootstrap snapshot by construction
// contains only finals. An error from ActiveDAG.Insert is returned as is.
func (b *Bootstrap) ImportBootstrap(graph models.BootstrapableGraph) error {
	sorted := append([]models.ExportActiveBlock(nil), graph.FinalBlocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Header.Slot.Before(sorted[j].Header.Slot) })

	for _, eab := range sorted {
		ab := models.NewActiveBlock(b.threadCount)
		ab.BlockId = eab.Id
		ab.Slot = eab.Header.Slot
		ab.CreatorAddress = eab.CreatorAddress
		ab.Fitness = eab.Fitness
		ab.IsFinal = true

		ab.Parents = make([]models.ParentWithPeriod, len(eab.Header.Parents))
		for i, pid := range eab.Header.Parents {
			if parent, ok := b.dag.Get(pid); ok {
				ab.Parents[i] = models.ParentWithPeriod{Id: pid, Period: parent.Slot.Period}
			} else {
				// Tolerated: a final parent beyond this snapshot's horizon
				// (spec.md §4.8). ActiveDAG.Insert accepts this only when
				// ab.IsFinal, which it is.
				ab.Parents[i] = models.ParentWithPeriod{Id: pid, Period: 0}
			}
		}

		if err := b.dag.Insert(ab); err != nil {
			return err
		}

		var block *models.Block
		if len(eab.Operations) > 0 {
			block = &models.Block{Header: eab.Header, Operations: eab.Operations}
		}
		b.statuses.Insert(eab.Id, BlockStatus{Kind: StatusActive, Header: &eab.Header, Block: block, Active: ab})
	}
	return nil
}

func parentIds(parents []models.ParentWithPeriod) []models.BlockId {
	ids := make([]models.BlockId, len(parents))
	for i, p := range parents {
		ids[i] = p.Id
	}
	return ids
}
