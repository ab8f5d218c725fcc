package models

// StorageHandle keeps a block's underlying bytes alive for exactly as long
// as an ActiveBlock entry referencing it exists (spec.md §3: "storage_handle
// ensures the underlying block bytes remain live exactly as long as the
// active entry does."). Implemented by package storage; declared here to
// avoid a models -> storage import cycle.
type StorageHandle interface {
	Release()
}

// ActiveBlock is one node of the active DAG (spec.md §3).
type ActiveBlock struct {
	BlockId        BlockId
	Slot           Slot
	CreatorAddress Address
	Parents        []ParentWithPeriod    // one per thread
	Children       []*PreHashMap[uint64] // one map[BlockId]period per thread
	Descendants    *PreHashSet
	IsFinal        bool
	Fitness        uint64
	Storage        StorageHandle
}

// NewActiveBlock allocates an ActiveBlock with its per-thread children maps
// and descendants set initialized, ready for Parents/fields to be filled in.
func NewActiveBlock(threadCount uint8) *ActiveBlock {
	children := make([]*PreHashMap[uint64], threadCount)
	for i := range children {
		children[i] = NewPreHashMap[uint64]()
	}
	return &ActiveBlock{
		Children:    children,
		Descendants: NewPreHashSet(),
	}
}

// Clique is a maximal antichain of pairwise-compatible active non-final
// blocks (spec.md §3, GLOSSARY).
type Clique struct {
	BlockIds      *PreHashSet
	Fitness       uint64
	IsBlockclique bool
}

// NewClique returns an empty, non-blockclique Clique.
func NewClique() *Clique {
	return &Clique{BlockIds: NewPreHashSet()}
}

// SortedBlockIds exposes the clique's members in the deterministic order used
// for lexicographic-smallest-set tie-breaks (spec.md §4.5 step 5, §9).
func (c *Clique) SortedBlockIds() []BlockId {
	return c.BlockIds.ToSortedSlice()
}

// ExportActiveBlock is the bootstrap wire form of one final ActiveBlock: the
// full block plus the derived fields needed to reinsert it as
// Active{is_final:true} and rebuild children/descendants via the normal
// insert path (spec.md §4.8).
type ExportActiveBlock struct {
	Header         BlockHeader
	Operations     [][]byte
	Id             BlockId
	CreatorAddress Address
	Fitness        uint64
}

// BootstrapableGraph is the paginated bootstrap snapshot: the set of final
// active blocks needed to reconstruct the pruned DAG on import (spec.md
// §4.8, §6).
type BootstrapableGraph struct {
	FinalBlocks []ExportActiveBlock
}
