package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire layout constants, spec.md §6.
const (
	slotEncodedSize = 9 // period(8 BE) + thread(1)
)

// EncodeSlot writes period(8 BE) || thread(1).
func EncodeSlot(buf *bytes.Buffer, s Slot) {
	var b [slotEncodedSize]byte
	binary.BigEndian.PutUint64(b[:8], s.Period)
	b[8] = s.Thread
	buf.Write(b[:])
}

// DecodeSlot reads a 9-byte slot.
func DecodeSlot(r *bytes.Reader) (Slot, error) {
	var b [slotEncodedSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Slot{}, fmt.Errorf("models: decode slot: %w", err)
	}
	return Slot{Period: binary.BigEndian.Uint64(b[:8]), Thread: b[8]}, nil
}

// EncodeEndorsement writes endorser_pubkey(32) || endorsed_slot(9) ||
// index(varint) || endorsed_block(32) || signature(64).
func EncodeEndorsement(buf *bytes.Buffer, e *Endorsement) {
	buf.Write(e.EndorserPublicKey[:])
	EncodeSlot(buf, e.EndorsedSlot)
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(e.Index))
	buf.Write(varintBuf[:n])
	buf.Write(e.EndorsedBlock[:])
	buf.Write(e.Signature[:])
}

// DecodeEndorsement is the inverse of EncodeEndorsement.
func DecodeEndorsement(r *bytes.Reader) (Endorsement, error) {
	var e Endorsement
	if _, err := io.ReadFull(r, e.EndorserPublicKey[:]); err != nil {
		return e, fmt.Errorf("models: decode endorsement pubkey: %w", err)
	}
	slot, err := DecodeSlot(r)
	if err != nil {
		return e, err
	}
	e.EndorsedSlot = slot
	index, err := binary.ReadUvarint(r)
	if err != nil {
		return e, fmt.Errorf("models: decode endorsement index: %w", err)
	}
	e.Index = uint32(index)
	if _, err := io.ReadFull(r, e.EndorsedBlock[:]); err != nil {
		return e, fmt.Errorf("models: decode endorsement endorsed block: %w", err)
	}
	if _, err := io.ReadFull(r, e.Signature[:]); err != nil {
		return e, fmt.Errorf("models: decode endorsement signature: %w", err)
	}
	return e, nil
}

// EncodeHeader writes creator_pubkey(32) || slot(9) || has_parents(1) ||
// parents(32*threadCount if has_parents) || op_merkle_root(32) ||
// endorsement_count(varint) || endorsements* || signature(64), per §6.
// threadCount is the configured THREAD_COUNT; it is the caller's
// responsibility to ensure len(h.Parents) == int(threadCount) whenever
// h.HasParents is true.
func EncodeHeader(buf *bytes.Buffer, h *BlockHeader, threadCount uint8) error {
	if h.HasParents && len(h.Parents) != int(threadCount) {
		return fmt.Errorf("models: header has %d parents, want %d", len(h.Parents), threadCount)
	}
	buf.Write(h.CreatorPublicKey[:])
	EncodeSlot(buf, h.Slot)
	if h.HasParents {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if h.HasParents {
		for _, p := range h.Parents {
			buf.Write(p[:])
		}
	}
	buf.Write(h.OperationMerkleRoot[:])
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(len(h.Endorsements)))
	buf.Write(varintBuf[:n])
	for i := range h.Endorsements {
		EncodeEndorsement(buf, &h.Endorsements[i])
	}
	buf.Write(h.Signature[:])
	return nil
}

// DecodeHeader is the inverse of EncodeHeader. maxEndorsements bounds the
// endorsement count to guard against a hostile varint (spec.md §4.7:
// "endorsement count <= endorsement_count").
func DecodeHeader(r *bytes.Reader, threadCount uint8, maxEndorsements uint64) (BlockHeader, error) {
	var h BlockHeader
	if _, err := io.ReadFull(r, h.CreatorPublicKey[:]); err != nil {
		return h, fmt.Errorf("models: decode header creator pubkey: %w", err)
	}
	slot, err := DecodeSlot(r)
	if err != nil {
		return h, err
	}
	h.Slot = slot
	hasParentsByte, err := r.ReadByte()
	if err != nil {
		return h, fmt.Errorf("models: decode header has_parents: %w", err)
	}
	h.HasParents = hasParentsByte != 0
	if h.HasParents {
		h.Parents = make([]BlockId, threadCount)
		for i := range h.Parents {
			if _, err := io.ReadFull(r, h.Parents[i][:]); err != nil {
				return h, fmt.Errorf("models: decode header parent %d: %w", i, err)
			}
		}
	}
	if _, err := io.ReadFull(r, h.OperationMerkleRoot[:]); err != nil {
		return h, fmt.Errorf("models: decode header op merkle root: %w", err)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return h, fmt.Errorf("models: decode header endorsement count: %w", err)
	}
	if count > maxEndorsements {
		return h, fmt.Errorf("models: header endorsement count %d exceeds max %d", count, maxEndorsements)
	}
	h.Endorsements = make([]Endorsement, count)
	for i := range h.Endorsements {
		e, err := DecodeEndorsement(r)
		if err != nil {
			return h, fmt.Errorf("models: decode endorsement %d: %w", i, err)
		}
		h.Endorsements[i] = e
	}
	if _, err := io.ReadFull(r, h.Signature[:]); err != nil {
		return h, fmt.Errorf("models: decode header signature: %w", err)
	}
	return h, nil
}

// EncodeBlock writes header || op_count(varint) || operations*, per §6.
func EncodeBlock(b *Block, threadCount uint8) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeHeader(&buf, &b.Header, threadCount); err != nil {
		return nil, err
	}
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(len(b.Operations)))
	buf.Write(varintBuf[:n])
	for _, op := range b.Operations {
		opLen := make([]byte, binary.MaxVarintLen64)
		ln := binary.PutUvarint(opLen, uint64(len(op)))
		buf.Write(opLen[:ln])
		buf.Write(op)
	}
	return buf.Bytes(), nil
}

// DecodeBlock is the inverse of EncodeBlock. maxOperations and maxBlockSize
// enforce the §6 bounds ("op_count bounded by max_block_operations", "total
// size <= max_block_size").
func DecodeBlock(data []byte, threadCount uint8, maxEndorsements, maxOperations uint64, maxBlockSize int) (Block, error) {
	if maxBlockSize > 0 && len(data) > maxBlockSize {
		return Block{}, fmt.Errorf("models: block size %d exceeds max %d", len(data), maxBlockSize)
	}
	r := bytes.NewReader(data)
	header, err := DecodeHeader(r, threadCount, maxEndorsements)
	if err != nil {
		return Block{}, err
	}
	opCount, err := binary.ReadUvarint(r)
	if err != nil {
		return Block{}, fmt.Errorf("models: decode block op count: %w", err)
	}
	if opCount > maxOperations {
		return Block{}, fmt.Errorf("models: block op count %d exceeds max %d", opCount, maxOperations)
	}
	ops := make([][]byte, opCount)
	for i := range ops {
		opLen, err := binary.ReadUvarint(r)
		if err != nil {
			return Block{}, fmt.Errorf("models: decode operation %d length: %w", i, err)
		}
		op := make([]byte, opLen)
		if _, err := io.ReadFull(r, op); err != nil {
			return Block{}, fmt.Errorf("models: decode operation %d: %w", i, err)
		}
		ops[i] = op
	}
	return Block{Header: header, Operations: ops}, nil
}

// encodeExportActiveBlock writes an ExportActiveBlock as header ||
// op_count(varint) || operations* || creator_address(32) || fitness(varint).
// Id is not written; it is recomputed from the header on import.
func encodeExportActiveBlock(buf *bytes.Buffer, b *ExportActiveBlock, threadCount uint8) error {
	if err := EncodeHeader(buf, &b.Header, threadCount); err != nil {
		return err
	}
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(len(b.Operations)))
	buf.Write(varintBuf[:n])
	for _, op := range b.Operations {
		opLen := make([]byte, binary.MaxVarintLen64)
		ln := binary.PutUvarint(opLen, uint64(len(op)))
		buf.Write(opLen[:ln])
		buf.Write(op)
	}
	buf.Write(b.CreatorAddress[:])
	n = binary.PutUvarint(varintBuf[:], b.Fitness)
	buf.Write(varintBuf[:n])
	return nil
}

func decodeExportActiveBlock(r *bytes.Reader, threadCount uint8, maxEndorsements, maxOperations uint64) (ExportActiveBlock, error) {
	var b ExportActiveBlock
	header, err := DecodeHeader(r, threadCount, maxEndorsements)
	if err != nil {
		return b, err
	}
	b.Header = header
	opCount, err := binary.ReadUvarint(r)
	if err != nil {
		return b, fmt.Errorf("models: decode export block op count: %w", err)
	}
	if opCount > maxOperations {
		return b, fmt.Errorf("models: export block op count %d exceeds max %d", opCount, maxOperations)
	}
	ops := make([][]byte, opCount)
	for i := range ops {
		opLen, err := binary.ReadUvarint(r)
		if err != nil {
			return b, fmt.Errorf("models: decode export operation %d length: %w", i, err)
		}
		op := make([]byte, opLen)
		if _, err := io.ReadFull(r, op); err != nil {
			return b, fmt.Errorf("models: decode export operation %d: %w", i, err)
		}
		ops[i] = op
	}
	b.Operations = ops
	if _, err := io.ReadFull(r, b.CreatorAddress[:]); err != nil {
		return b, fmt.Errorf("models: decode export creator address: %w", err)
	}
	fitness, err := binary.ReadUvarint(r)
	if err != nil {
		return b, fmt.Errorf("models: decode export fitness: %w", err)
	}
	b.Fitness = fitness
	return b, nil
}

// EncodeBootstrapableGraph writes final_blocks as a varint length prefix
// followed by each ExportActiveBlock in order (spec.md §6: "length-prefixed
// vector of ExportActiveBlock").
func EncodeBootstrapableGraph(g *BootstrapableGraph, threadCount uint8) ([]byte, error) {
	var buf bytes.Buffer
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(len(g.FinalBlocks)))
	buf.Write(varintBuf[:n])
	for i := range g.FinalBlocks {
		if err := encodeExportActiveBlock(&buf, &g.FinalBlocks[i], threadCount); err != nil {
			return nil, fmt.Errorf("models: encode final block %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeBootstrapableGraph is the inverse of EncodeBootstrapableGraph. Each
// decoded ExportActiveBlock has its Id recomputed via idFunc, the caller's
// block-id hash (crypto.HashBlockHeader), since the id is not carried on the
// wire.
func DecodeBootstrapableGraph(data []byte, threadCount uint8, maxEndorsements, maxOperations uint64, idFunc func(*BlockHeader) BlockId) (BootstrapableGraph, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return BootstrapableGraph{}, fmt.Errorf("models: decode bootstrap graph count: %w", err)
	}
	blocks := make([]ExportActiveBlock, count)
	for i := range blocks {
		b, err := decodeExportActiveBlock(r, threadCount, maxEndorsements, maxOperations)
		if err != nil {
			return BootstrapableGraph{}, fmt.Errorf("models: decode final block %d: %w", i, err)
		}
		if idFunc != nil {
			b.Id = idFunc(&b.Header)
		}
		blocks[i] = b
	}
	return BootstrapableGraph{FinalBlocks: blocks}, nil
}
