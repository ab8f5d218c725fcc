package consensus

import (
	"testing"

	"github.com/praizmiky/massa/models"
)

func newTestActiveBlock(threadCount uint8, id models.BlockId, slot models.Slot, fitness uint64, parents ...models.ParentWithPeriod) *models.ActiveBlock {
	ab := models.NewActiveBlock(threadCount)
	ab.BlockId = id
	ab.Slot = slot
	ab.Fitness = fitness
	ab.Parents = parents
	return ab
}

func TestActiveDAGInsertGenesis(t *testing.T) {
	dag := NewActiveDAG(2)
	genesis := newTestActiveBlock(2, idFromByte(1), models.NewSlot(0, 0), 1)
	if err := dag.Insert(genesis); err != nil {
		t.Fatalf("Insert(genesis) error: %v", err)
	}
	if dag.Len() != 1 {
		t.Errorf("Len() = %d, want 1", dag.Len())
	}
}

func TestActiveDAGInsertMissingParentFails(t *testing.T) {
	dag := NewActiveDAG(2)
	child := newTestActiveBlock(2, idFromByte(2), models.NewSlot(1, 0), 1,
		models.ParentWithPeriod{Id: idFromByte(9), Period: 0},
		models.ParentWithPeriod{Id: idFromByte(10), Period: 0},
	)
	if err := dag.Insert(child); err == nil {
		t.Fatal("expected ErrMissingBlock for unresolved parents")
	}
}

func TestActiveDAGChildrenAndDescendants(t *testing.T) {
	dag := NewActiveDAG(1)
	parent := newTestActiveBlock(1, idFromByte(1), models.NewSlot(0, 0), 1)
	if err := dag.Insert(parent); err != nil {
		t.Fatalf("Insert(parent) error: %v", err)
	}

	child := newTestActiveBlock(1, idFromByte(2), models.NewSlot(1, 0), 2,
		models.ParentWithPeriod{Id: idFromByte(1), Period: 0},
	)
	if err := dag.Insert(child); err != nil {
		t.Fatalf("Insert(child) error: %v", err)
	}

	grandchild := newTestActiveBlock(1, idFromByte(3), models.NewSlot(2, 0), 3,
		models.ParentWithPeriod{Id: idFromByte(2), Period: 1},
	)
	if err := dag.Insert(grandchild); err != nil {
		t.Fatalf("Insert(grandchild) error: %v", err)
	}

	if period, ok := parent.Children[0].Get(idFromByte(2)); !ok || period != 1 {
		t.Errorf("parent.Children[0][child] = (%d, %v), want (1, true)", period, ok)
	}
	if !dag.IsAncestor(idFromByte(1), idFromByte(3)) {
		t.Error("expected parent to be a transitive ancestor of grandchild")
	}
	if dag.IsAncestor(idFromByte(3), idFromByte(1)) {
		t.Error("grandchild must not be an ancestor of parent")
	}
}

func TestActiveDAGInsertToleratesMissingParentsWhenFinal(t *testing.T) {
	dag := NewActiveDAG(1)
	final := newTestActiveBlock(1, idFromByte(1), models.NewSlot(5, 0), 1,
		models.ParentWithPeriod{Id: idFromByte(99), Period: 4},
	)
	final.IsFinal = true
	if err := dag.Insert(final); err != nil {
		t.Fatalf("expected final block with pruned parent to insert cleanly, got %v", err)
	}
	if dag.LatestFinalPeriod(0) != 5 {
		t.Errorf("LatestFinalPeriod(0) = %d, want 5", dag.LatestFinalPeriod(0))
	}
}

func TestActiveDAGBestParentsPicksHighestFitnessWithTieBreak(t *testing.T) {
	dag := NewActiveDAG(1)
	genesis := newTestActiveBlock(1, idFromByte(1), models.NewSlot(0, 0), 1)
	dag.Insert(genesis)

	low := newTestActiveBlock(1, idFromByte(10), models.NewSlot(1, 0), 2,
		models.ParentWithPeriod{Id: idFromByte(1), Period: 0})
	high := newTestActiveBlock(1, idFromByte(2), models.NewSlot(1, 0), 5,
		models.ParentWithPeriod{Id: idFromByte(1), Period: 0})
	dag.Insert(low)
	dag.Insert(high)

	clique := models.NewClique()
	clique.BlockIds.Add(low.BlockId)
	clique.BlockIds.Add(high.BlockId)

	best := dag.BestParents(clique)
	if len(best) != 1 || best[0].Id != high.BlockId {
		t.Errorf("BestParents = %+v, want thread 0 = %v (highest fitness)", best, high.BlockId)
	}
}
