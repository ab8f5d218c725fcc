// Package consensus implements the consensus graph core: a directed acyclic
// graph of blocks organized across a fixed number of parallel threads, a
// per-block status state machine, competing-fork clique tracking with
// fitness-based selection, and finality decisions over the chosen clique.
package consensus

import (
	"github.com/praizmiky/massa/models"
)

// DiscardReason distinguishes why a block was permanently rejected
// (spec.md §3: "Discarded { reason, sequence: u64 }").
type DiscardReason int

const (
	DiscardInvalid DiscardReason = iota
	DiscardStale
	DiscardAttack
	// DiscardFinal marks a block pruned after falling more than
	// force_keep_final_periods behind its thread's latest final period,
	// with no final descendant (spec.md §4.6: "pruned to
	// Discarded(final)"). This is a successful-path
	// discard, unlike the three rejection reasons named in spec.md §3.
	DiscardFinal
)

func (r DiscardReason) String() string {
	switch r {
	case DiscardInvalid:
		return "invalid"
	case DiscardStale:
		return "stale"
	case DiscardAttack:
		return "attack"
	case DiscardFinal:
		return "final"
	default:
		return "unknown"
	}
}

// StatusKind tags the variant held by a BlockStatus.
type StatusKind int

const (
	StatusIncoming StatusKind = iota
	StatusWaitingForSlot
	StatusWaitingForDependencies
	StatusActive
	StatusDiscarded
)

// BlockStatus is the tagged variant over one block's lifecycle (spec.md §3).
// Exactly one of the Incoming/WaitingForSlot/WaitingForDependencies/
// Active/Discarded-shaped field groups is meaningful, selected by Kind; this
// mirrors the "tagged variant, not an interface hierarchy" guidance of
// spec.md §9 so each status carries exactly the fields it needs.
type BlockStatus struct {
	Kind StatusKind

	// Header/Block: carried by StatusIncoming (header-only until the full
	// block arrives) and by StatusWaitingForSlot (header already validated,
	// held so the block can re-enter as Incoming once its slot arrives).
	Header *models.BlockHeader
	Block  *models.Block
	// Handle is the storage handle supplied with RegisterBlock, carried
	// alongside Header/Block through WaitingForSlot/WaitingForDependencies
	// so it survives to the eventual Active transition without a second
	// round trip to the protocol layer.
	Handle models.StorageHandle

	// StatusWaitingForSlot: header valid, slot still in the future.
	WaitingSlot models.Slot

	// StatusWaitingForDependencies.
	Missing  *models.PreHashSet
	Sequence uint64

	// StatusActive.
	Active *models.ActiveBlock

	// StatusDiscarded.
	DiscardReason DiscardReason
}

// NewIncomingStatus wraps a freshly received header-or-full block.
func NewIncomingStatus(header *models.BlockHeader, block *models.Block) BlockStatus {
	return BlockStatus{Kind: StatusIncoming, Header: header, Block: block}
}

// NewWaitingForSlotStatus wraps a header valid except for its future slot,
// retaining header and block so the entry can re-enter as Incoming verbatim
// once its slot arrives (spec.md §4.3: "the worker drains all entries with
// slot <= current_slot each tick and re-submits them as Incoming").
func NewWaitingForSlotStatus(slot models.Slot, header *models.BlockHeader, block *models.Block) BlockStatus {
	return BlockStatus{Kind: StatusWaitingForSlot, WaitingSlot: slot, Header: header, Block: block}
}

// NewWaitingForDependenciesStatus wraps a header blocked on unknown parents
// or endorsed blocks. Header/block are retained, as with
// NewWaitingForSlotStatus, so the driver can replay registration once every
// missing id resolves (spec.md §4.3: "any block whose set becomes empty
// re-enters the driver").
func NewWaitingForDependenciesStatus(missing *models.PreHashSet, sequence uint64, header *models.BlockHeader, block *models.Block) BlockStatus {
	return BlockStatus{Kind: StatusWaitingForDependencies, Missing: missing, Sequence: sequence, Header: header, Block: block}
}

// NewActiveStatus wraps a block that has joined the DAG.
func NewActiveStatus(ab *models.ActiveBlock) BlockStatus {
	return BlockStatus{Kind: StatusActive, Active: ab}
}

// NewDiscardedStatus wraps a permanently rejected block.
func NewDiscardedStatus(reason DiscardReason, sequence uint64) BlockStatus {
	return BlockStatus{Kind: StatusDiscarded, DiscardReason: reason, Sequence: sequence}
}

// IsTerminal reports whether this status is immune to re-insertion
// (spec.md §4.7: "Exactly-once transition rule: any block id that has ever
// been Discarded or Active{is_final:true} is immune to re-insertion").
func (s BlockStatus) IsTerminal() bool {
	if s.Kind == StatusDiscarded {
		return true
	}
	return s.Kind == StatusActive && s.Active != nil && s.Active.IsFinal
}
