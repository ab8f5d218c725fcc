package consensus

import (
	"testing"
	"time"

	"github.com/praizmiky/massa/crypto"
	"github.com/praizmiky/massa/models"
)

func testDriverConfig() *Config {
	cfg := DefaultConfig()
	cfg.ThreadCount = 2
	cfg.GenesisTimestamp = 1_000_000
	cfg.T0 = 16_000
	cfg.ClockCompensationMillis = 0
	cfg.FutureBlockProcessingMaxPeriods = 10
	return cfg
}

func newTestDriver(t *testing.T, cfg *Config) *Driver {
	t.Helper()
	clock := NewClock(cfg)
	statuses := NewStatusMap(100, 100)
	deps := NewDependencyTracker(statuses)
	dag := NewActiveDAG(cfg.ThreadCount)
	clique := NewCliqueEngine(dag, cfg.ThreadCount, 100)
	finality := NewFinalityEngine(dag, clique, statuses, deps, cfg.DeltaF0, cfg.ForceKeepFinalPeriods, nil)
	return NewDriver(cfg, clock, statuses, deps, dag, clique, finality)
}

// signedHeader builds and signs a header with the given slot and parents,
// leaving HasParents/len(Parents) consistent with genesis-vs-non-genesis.
func signedHeader(t *testing.T, priv crypto.PrivateKey, threadCount uint8, slot models.Slot, parents []models.BlockId) (*models.BlockHeader, models.BlockId) {
	t.Helper()
	h := &models.BlockHeader{
		CreatorPublicKey: priv.PublicKey(),
		Slot:             slot,
		HasParents:       len(parents) > 0,
		Parents:          parents,
	}
	signingHash, err := crypto.HeaderSigningHash(h, threadCount)
	if err != nil {
		t.Fatalf("HeaderSigningHash: %v", err)
	}
	sig, err := crypto.Sign(priv, signingHash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	h.Signature = sig
	id, err := crypto.HashBlockHeader(h, threadCount)
	if err != nil {
		t.Fatalf("HashBlockHeader: %v", err)
	}
	return h, id
}

func TestDriverRegisterGenesisActivatesImmediately(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()

	header, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(0, 0), nil)
	now := time.UnixMilli(cfg.GenesisTimestamp)

	status, err := d.RegisterBlockHeader(id, header, now)
	if err != nil {
		t.Fatalf("RegisterBlockHeader: %v", err)
	}
	if status.Kind != StatusActive {
		t.Fatalf("expected genesis to activate immediately, got %v", status.Kind)
	}
}

func TestDriverRegisterRejectsBadSignature(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()

	header, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(0, 0), nil)
	header.Signature[0] ^= 0xFF // corrupt
	now := time.UnixMilli(cfg.GenesisTimestamp)

	status, err := d.RegisterBlockHeader(id, header, now)
	if err != nil {
		t.Fatalf("RegisterBlockHeader: %v", err)
	}
	if status.Kind != StatusDiscarded || status.DiscardReason != DiscardInvalid {
		t.Fatalf("expected Discarded(invalid) on bad signature, got %+v", status)
	}
}

func TestDriverRegisterFutureSlotWaits(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()

	header, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(5, 0), nil)
	now := time.UnixMilli(cfg.GenesisTimestamp) // still at slot 0

	status, err := d.RegisterBlockHeader(id, header, now)
	if err != nil {
		t.Fatalf("RegisterBlockHeader: %v", err)
	}
	if status.Kind != StatusWaitingForSlot {
		t.Fatalf("expected WaitingForSlot for a future slot, got %v", status.Kind)
	}
}

func TestDriverRegisterMissingParentWaitsThenReleases(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()
	// Advance past period 0 entirely so every thread's genesis slot (0,*)
	// and the child's slot (1,0) are already current or past.
	now := time.UnixMilli(cfg.GenesisTimestamp + cfg.T0)

	genesisHeaders := make([]*models.BlockHeader, cfg.ThreadCount)
	genesisIds := make([]models.BlockId, cfg.ThreadCount)
	for th := uint8(0); th < cfg.ThreadCount; th++ {
		h, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(0, th), nil)
		genesisHeaders[th] = h
		genesisIds[th] = id
	}

	childHeader, childID := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(1, 0), genesisIds)

	// Register the child before any genesis block is known: it should wait
	// on the missing parents (spec.md §4.3).
	status, err := d.RegisterBlockHeader(childID, childHeader, now)
	if err != nil {
		t.Fatalf("RegisterBlockHeader(child): %v", err)
	}
	if status.Kind != StatusWaitingForDependencies {
		t.Fatalf("expected WaitingForDependencies, got %v", status.Kind)
	}

	// Now supply the genesis blocks; the child should be replayed and
	// activate once its last dependency resolves.
	for th, h := range genesisHeaders {
		status, err := d.RegisterBlockHeader(genesisIds[th], h, now)
		if err != nil {
			t.Fatalf("RegisterBlockHeader(genesis %d): %v", th, err)
		}
		if status.Kind != StatusActive {
			t.Fatalf("expected genesis %d to activate, got %v", th, status.Kind)
		}
	}

	final, ok := d.statuses.Get(childID)
	if !ok || final.Kind != StatusActive {
		t.Fatalf("expected child to activate once parents resolved, got %+v", final)
	}
}

func TestDriverExactlyOnceRejectsReinsertionOfDiscarded(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()
	now := time.UnixMilli(cfg.GenesisTimestamp)

	header, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(0, 0), nil)
	header.Signature[0] ^= 0xFF
	status, _ := d.RegisterBlockHeader(id, header, now)
	if status.Kind != StatusDiscarded {
		t.Fatalf("expected discard, got %v", status.Kind)
	}

	header.Signature[0] ^= 0xFF // restore a valid signature
	replay, err := d.RegisterBlockHeader(id, header, now)
	if err != nil {
		t.Fatalf("RegisterBlockHeader: %v", err)
	}
	if replay.Kind != StatusDiscarded {
		t.Fatalf("expected id to remain immune to re-insertion, got %v", replay.Kind)
	}
}

func TestDriverMarkInvalidBlockDiscardsActiveNonFinalBlock(t *testing.T) {
	cfg := testDriverConfig()
	d := newTestDriver(t, cfg)
	priv, _ := crypto.GeneratePrivateKey()
	now := time.UnixMilli(cfg.GenesisTimestamp)

	header, id := signedHeader(t, priv, cfg.ThreadCount, models.NewSlot(0, 0), nil)
	status, err := d.RegisterBlockHeader(id, header, now)
	if err != nil || status.Kind != StatusActive {
		t.Fatalf("setup: expected active genesis, got %+v err=%v", status, err)
	}

	discarded := d.MarkInvalidBlock(id)
	if discarded.Kind != StatusDiscarded || discarded.DiscardReason != DiscardInvalid {
		t.Fatalf("expected Discarded(invalid), got %+v", discarded)
	}
	if _, ok := d.dag.Get(id); ok {
		t.Error("expected block removed from the active DAG")
	}
}
