package consensus

import (
	"testing"

	"github.com/praizmiky/massa/models"
)

func setupCliqueFixture(t *testing.T, maxCliqueCount int) (*ActiveDAG, *CliqueEngine, *models.ActiveBlock, *models.ActiveBlock) {
	t.Helper()
	dag := NewActiveDAG(1)
	genesis := newTestActiveBlock(1, idFromByte(1), models.NewSlot(0, 0), 1)
	if err := dag.Insert(genesis); err != nil {
		t.Fatalf("insert genesis: %v", err)
	}

	a := newTestActiveBlock(1, idFromByte(2), models.NewSlot(1, 0), 2,
		models.ParentWithPeriod{Id: genesis.BlockId, Period: 0})
	b := newTestActiveBlock(1, idFromByte(3), models.NewSlot(1, 0), 3,
		models.ParentWithPeriod{Id: genesis.BlockId, Period: 0})
	if err := dag.Insert(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := dag.Insert(b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	engine := NewCliqueEngine(dag, 1, maxCliqueCount)
	return dag, engine, a, b
}

func TestCliqueEngineNoConflictInsertsIntoSingleClique(t *testing.T) {
	_, engine, a, _ := setupCliqueFixture(t, 10)
	if attack := engine.AddBlock(a); attack {
		t.Fatal("unexpected attack flag on first insert")
	}
	cliques := engine.Cliques()
	if len(cliques) != 1 || !cliques[0].BlockIds.Contains(a.BlockId) {
		t.Fatalf("expected a single clique containing a, got %+v", cliques)
	}
}

func TestCliqueEngineConflictSplitsCliques(t *testing.T) {
	_, engine, a, b := setupCliqueFixture(t, 10)
	engine.AddBlock(a)
	if attack := engine.AddBlock(b); attack {
		t.Fatal("unexpected attack flag")
	}

	cliques := engine.Cliques()
	if len(cliques) != 2 {
		t.Fatalf("expected 2 cliques after a same-thread conflict, got %d: %+v", len(cliques), cliques)
	}

	var sawA, sawB bool
	for _, k := range cliques {
		if k.BlockIds.Contains(a.BlockId) {
			sawA = true
		}
		if k.BlockIds.Contains(b.BlockId) {
			sawB = true
		}
		if k.BlockIds.Contains(a.BlockId) && k.BlockIds.Contains(b.BlockId) {
			t.Fatal("a and b are incompatible and must never share a clique")
		}
	}
	if !sawA || !sawB {
		t.Fatalf("expected both a and b to each own a clique, cliques=%+v", cliques)
	}
}

func TestCliqueEngineElectsHighestFitnessAsBlockclique(t *testing.T) {
	_, engine, a, b := setupCliqueFixture(t, 10)
	engine.AddBlock(a)
	engine.AddBlock(b)

	bc := engine.Blockclique()
	if bc == nil {
		t.Fatal("expected a blockclique to be set")
	}
	if !bc.BlockIds.Contains(b.BlockId) {
		t.Errorf("expected b (fitness 3) to win over a (fitness 2), blockclique=%+v", bc)
	}
}

func TestCliqueEngineStaleFitnessExcludesOwnClique(t *testing.T) {
	_, engine, a, b := setupCliqueFixture(t, 10)
	engine.AddBlock(a)
	engine.AddBlock(b)

	if got := engine.StaleFitness(b.BlockId); got != 2 {
		t.Errorf("StaleFitness(b) = %d, want 2 (fitness of a's clique)", got)
	}
	if got := engine.StaleFitness(a.BlockId); got != 3 {
		t.Errorf("StaleFitness(a) = %d, want 3 (fitness of b's clique)", got)
	}
}

func TestCliqueEngineAttackBoundDiscardsAndCounts(t *testing.T) {
	_, engine, a, b := setupCliqueFixture(t, 1)
	engine.AddBlock(a)
	attack := engine.AddBlock(b)
	if !attack {
		t.Fatal("expected the split to exceed max_clique_count and flag an attack")
	}
	if engine.AttackAttempts() != 1 {
		t.Errorf("AttackAttempts() = %d, want 1", engine.AttackAttempts())
	}
}

func TestCliqueEngineRemoveFinalizedClearsIncompatibilityGraph(t *testing.T) {
	_, engine, a, b := setupCliqueFixture(t, 10)
	engine.AddBlock(a)
	engine.AddBlock(b)

	if len(engine.IncompatibleWith(a.BlockId)) == 0 {
		t.Fatal("expected a to be recorded as incompatible with b before finalization")
	}

	engine.RemoveFinalized(b.BlockId)

	if ids := engine.IncompatibleWith(a.BlockId); len(ids) != 0 {
		t.Errorf("expected a's incompatibility set to be cleared of b, got %v", ids)
	}
	for _, k := range engine.Cliques() {
		if k.BlockIds.Contains(b.BlockId) {
			t.Error("expected b to be removed from every clique after finalization")
		}
	}
}
