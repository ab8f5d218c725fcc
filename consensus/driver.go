package consensus

import (
	"errors"
	"time"

	"github.com/praizmiky/massa/crypto"
	"github.com/praizmiky/massa/models"
)

// ErrEndorsementCount is returned when a header carries more endorsements
// than endorsement_count allows.
var ErrEndorsementCount = errors.New("driver: too many endorsements")

// ErrParentCount is returned when a header's parent count does not match
// thread_count (or is non-empty for what should be a genesis header).
var ErrParentCount = errors.New("driver: wrong parent count")

// Driver implements spec.md §4.7: the single entry point through which
// headers and full blocks are validated and carried through the status
// state machine into the active DAG, clique engine and finality engine.
// It is not itself concurrency-safe; the worker (C9) is the only caller and
// serializes every command and slot tick.
type Driver struct {
	cfg      *Config
	clock    *Clock
	statuses *StatusMap
	deps     *DependencyTracker
	dag      *ActiveDAG
	clique   *CliqueEngine
	finality *FinalityEngine

	// onActive, if set, fires once per block that reaches Active, after it
	// has joined the DAG/clique engine but before dependents are replayed.
	// Worker uses this to feed the broadcast sinks named in spec.md §6.
	onActive func(*models.ActiveBlock, *models.BlockHeader, [][]byte)

	// onMissingBlock, if set, fires once per id discovered missing while
	// resolving a header's parents/endorsements. Worker uses this to drive
	// the wishlist dedupe in front of the protocol layer's block requests.
	onMissingBlock func(models.BlockId)
}

// NewDriver wires a Driver over the given components.
func NewDriver(cfg *Config, clock *Clock, statuses *StatusMap, deps *DependencyTracker, dag *ActiveDAG, clique *CliqueEngine, finality *FinalityEngine) *Driver {
	return &Driver{cfg: cfg, clock: clock, statuses: statuses, deps: deps, dag: dag, clique: clique, finality: finality}
}

// OnActive registers fn to be called for every block that reaches Active.
func (d *Driver) OnActive(fn func(*models.ActiveBlock, *models.BlockHeader, [][]byte)) {
	d.onActive = fn
}

// OnMissingBlock registers fn to be called for every id discovered missing
// while resolving a header's dependencies.
func (d *Driver) OnMissingBlock(fn func(models.BlockId)) {
	d.onMissingBlock = fn
}

func (d *Driver) notifyMissing(missing *models.PreHashSet) {
	if d.onMissingBlock == nil {
		return
	}
	for _, id := range missing.ToSlice() {
		d.onMissingBlock(id)
	}
}

// RegisterBlockHeader implements spec.md §4.7's RegisterBlockHeader command.
func (d *Driver) RegisterBlockHeader(id models.BlockId, header *models.BlockHeader, now time.Time) (BlockStatus, error) {
	return d.register(id, header, nil, nil, now)
}

// RegisterBlock implements spec.md §4.7's RegisterBlock command.
func (d *Driver) RegisterBlock(id models.BlockId, block *models.Block, handle models.StorageHandle, now time.Time) (BlockStatus, error) {
	return d.register(id, &block.Header, block.Operations, handle, now)
}

// MarkInvalidBlock implements spec.md §4.7: "force Discarded(invalid);
// cascade stale to dependents." Unlike a normal validation failure this
// applies even to a block already Active (a later-detected problem), as
// long as it is not yet final.
func (d *Driver) MarkInvalidBlock(id models.BlockId) BlockStatus {
	status, ok := d.statuses.Get(id)
	if ok && status.Kind == StatusActive && status.Active != nil {
		if status.Active.IsFinal {
			return status // immune; exactly-once transition rule
		}
		d.dag.Remove(id)
		d.clique.RemoveDiscarded(id)
	}
	discarded := d.discard(id, DiscardInvalid)
	d.deps.DiscardDependency(id)
	return discarded
}

// register is the shared body of RegisterBlockHeader/RegisterBlock, per
// spec.md §4.7: "validate signature, slot well-formed, parent count
// matches thread_count, endorsement count <= endorsement_count, slot <=
// current + future_block_processing_max_periods. On validation failure:
// Discarded(invalid). On slot-in-future: WaitingForSlot. If any parent or
// endorsed block is unknown: WaitingForDependencies. Otherwise: insert as
// Active and run §4.5-4.6."
func (d *Driver) register(id models.BlockId, header *models.BlockHeader, operations [][]byte, handle models.StorageHandle, now time.Time) (BlockStatus, error) {
	if status, ok := d.statuses.Get(id); ok && status.IsTerminal() {
		return status, nil // duplicates on a sticky id are silently ignored
	}

	if err := d.validate(header); err != nil {
		return d.discard(id, DiscardInvalid), nil
	}

	current, haveCurrent, err := d.clock.CurrentSlot(now)
	if err != nil {
		return BlockStatus{}, err // ClockOverflow: fatal per spec.md §7
	}

	if haveCurrent && header.Slot.Period > current.Period+d.cfg.FutureBlockProcessingMaxPeriods {
		return d.discard(id, DiscardInvalid), nil
	}

	if !haveCurrent || header.Slot.After(current) {
		status := NewWaitingForSlotStatus(header.Slot, header, blockFrom(header, operations))
		status.Handle = handle
		d.statuses.Insert(id, status)
		return status, nil
	}

	if missing := d.missingDependencies(header); missing.Len() > 0 {
		d.deps.WaitForDependencies(id, missing, header, blockFrom(header, operations))
		d.notifyMissing(missing)
		status, _ := d.statuses.Get(id)
		status.Handle = handle
		d.statuses.Insert(id, status)
		return status, nil
	}

	return d.activate(id, header, operations, handle, now)
}

// validate checks signature, slot and structural bounds (spec.md §4.7,
// §6). It does not check dependencies; that happens separately so the
// caller can distinguish InvalidBlock from WaitingForDependencies.
func (d *Driver) validate(header *models.BlockHeader) error {
	if header.Slot.Thread >= d.cfg.ThreadCount {
		return ErrInvalidSlotThread
	}
	if header.HasParents {
		if len(header.Parents) != int(d.cfg.ThreadCount) {
			return ErrParentCount
		}
	} else if len(header.Parents) != 0 {
		return ErrParentCount
	}
	if uint32(len(header.Endorsements)) > d.cfg.EndorsementCount {
		return ErrEndorsementCount
	}
	signingHash, err := crypto.HeaderSigningHash(header, d.cfg.ThreadCount)
	if err != nil {
		return err
	}
	return crypto.Verify(header.CreatorPublicKey, signingHash, header.Signature)
}

// ErrInvalidSlotThread is returned when a header's slot names a thread
// outside [0, thread_count).
var ErrInvalidSlotThread = errors.New("driver: slot thread out of range")

// missingDependencies returns the parents and endorsed blocks named by
// header that are not yet resolvable in the active DAG (spec.md §4.3).
func (d *Driver) missingDependencies(header *models.BlockHeader) *models.PreHashSet {
	missing := models.NewPreHashSet()
	for _, p := range header.Parents {
		if _, ok := d.dag.Get(p); !ok {
			missing.Add(p)
		}
	}
	for _, e := range header.Endorsements {
		if _, ok := d.dag.Get(e.EndorsedBlock); !ok {
			missing.Add(e.EndorsedBlock)
		}
	}
	return missing
}

// activate builds the ActiveBlock for a header whose dependencies are all
// known and inserts it into the DAG, clique engine and finality engine
// (spec.md §4.4-4.6), then releases anything that was waiting on it.
func (d *Driver) activate(id models.BlockId, header *models.BlockHeader, operations [][]byte, handle models.StorageHandle, now time.Time) (BlockStatus, error) {
	ab := models.NewActiveBlock(d.cfg.ThreadCount)
	ab.BlockId = id
	ab.Slot = header.Slot
	ab.CreatorAddress = header.CreatorPublicKey.Address(func(b []byte) []byte { return crypto.Keccak256(b) })
	ab.Fitness = header.Fitness()
	ab.Storage = handle

	ab.Parents = make([]models.ParentWithPeriod, len(header.Parents))
	for i, pid := range header.Parents {
		parentAB, ok := d.dag.Get(pid)
		if !ok {
			// Lost a race against a concurrent prune between the
			// dependency check above and here; fall back to waiting.
			missing := models.NewPreHashSet(pid)
			d.deps.WaitForDependencies(id, missing, header, blockFrom(header, operations))
			d.notifyMissing(missing)
			status, _ := d.statuses.Get(id)
			status.Handle = handle
			d.statuses.Insert(id, status)
			return status, nil
		}
		ab.Parents[i] = models.ParentWithPeriod{Id: pid, Period: parentAB.Slot.Period}
	}

	if err := d.dag.Insert(ab); err != nil {
		return d.discard(id, DiscardInvalid), nil
	}

	d.statuses.Insert(id, NewActiveStatus(ab))

	if attack := d.clique.AddBlock(ab); attack {
		d.dag.Remove(id)
		return d.discard(id, DiscardAttack), nil
	}

	d.finality.Advance()
	if d.onActive != nil {
		d.onActive(ab, header, operations)
	}
	d.releaseDependents(id, now)

	status, _ := d.statuses.Get(id)
	return status, nil
}

// releaseDependents re-drives every block that was only waiting on id
// through register, now that id is resolved (spec.md §4.3: "any block
// whose set becomes empty re-enters the driver").
func (d *Driver) releaseDependents(id models.BlockId, now time.Time) {
	for _, rid := range d.deps.ResolveDependency(id) {
		status, ok := d.statuses.Get(rid)
		if !ok || status.Kind != StatusWaitingForDependencies || status.Header == nil {
			continue
		}
		var ops [][]byte
		if status.Block != nil {
			ops = status.Block.Operations
		}
		d.register(rid, status.Header, ops, status.Handle, now)
	}
}

// discard transitions id to Discarded(reason), preserving its sequence
// number for deterministic eviction ordering.
func (d *Driver) discard(id models.BlockId, reason DiscardReason) BlockStatus {
	seq, _ := d.statuses.SequenceOf(id)
	status := NewDiscardedStatus(reason, seq)
	d.statuses.Insert(id, status)
	got, _ := d.statuses.Get(id)
	return got
}

func blockFrom(header *models.BlockHeader, operations [][]byte) *models.Block {
	if operations == nil {
		return nil
	}
	return &models.Block{Header: *header, Operations: operations}
}
