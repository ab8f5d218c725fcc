package models

// Endorsement is an attestation, by its creator, that a given block is a
// good parent candidate for the endorsed slot's thread. Fitness credits one
// point per endorsement carried by a header (spec.md GLOSSARY: Fitness).
type Endorsement struct {
	EndorserPublicKey PublicKey
	EndorsedSlot       Slot
	Index              uint32
	EndorsedBlock      BlockId
	Signature          Signature
}

// BlockHeader is the signed envelope describing a block's slot, parentage
// and endorsements, without its operations (spec.md §3, §6).
type BlockHeader struct {
	CreatorPublicKey  PublicKey
	Slot              Slot
	HasParents        bool
	Parents           []BlockId // exactly one per thread when HasParents; empty for genesis
	OperationMerkleRoot BlockId
	Endorsements      []Endorsement
	Signature         Signature
}

// Fitness is 1 + the number of endorsements carried by the header, per the
// GLOSSARY definition of Fitness.
func (h *BlockHeader) Fitness() uint64 {
	return 1 + uint64(len(h.Endorsements))
}

// Block is a header plus its operations. Operation bytes are treated as an
// opaque, already-serialized payload: the consensus graph core never
// inspects operation contents (spec.md §1 Non-goals: no execution/VM
// semantics).
type Block struct {
	Header     BlockHeader
	Operations [][]byte
}

// WrappedBlock bundles a fully validated block with its derived identity and
// bookkeeping fields (spec.md §3: WrappedBlock).
type WrappedBlock struct {
	Header          BlockHeader
	Operations      [][]byte
	Id              BlockId
	CreatorAddress  Address
	Fitness         uint64
}

// ParentWithPeriod pairs a parent BlockId with the period it was produced at,
// used by ActiveBlock.Parents and Children (spec.md §3).
type ParentWithPeriod struct {
	Id     BlockId
	Period uint64
}
