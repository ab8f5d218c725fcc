package crypto

// Extended Keccak utilities: Keccak-512, domain-separated hashing, an
// incremental hasher, and a commutative pairwise hash for Merkle
// constructions.

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/praizmiky/massa/models"
)

// Keccak512 calculates the Keccak-512 hash of the given data.
func Keccak512(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak512()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// DomainSeparatedHash computes Keccak256(domain || data) with a
// length-prefixed domain string to prevent collisions across different
// usage contexts. The domain is prefixed with its 2-byte big-endian length.
func DomainSeparatedHash(domain string, data []byte) []byte {
	d := sha3.NewLegacyKeccak256()
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(domain)))
	d.Write(lenBuf[:])
	d.Write([]byte(domain))
	d.Write(data)
	return d.Sum(nil)
}

// DomainSeparatedBlockId is like DomainSeparatedHash but returns a
// models.BlockId.
func DomainSeparatedBlockId(domain string, data []byte) models.BlockId {
	return models.BytesToBlockId(DomainSeparatedHash(domain, data))
}

// IncrementalHasher is an incremental Keccak-256 hasher that allows data to
// be fed in chunks. It wraps sha3.NewLegacyKeccak256() with a convenient API
// for building an operation Merkle root over a block's operations.
type IncrementalHasher struct {
	state hash.Hash
	size  int // total bytes written
}

// NewIncrementalHasher creates a new incremental Keccak-256 hasher.
func NewIncrementalHasher() *IncrementalHasher {
	return &IncrementalHasher{
		state: sha3.NewLegacyKeccak256(),
	}
}

// Write feeds data into the hasher. Returns the number of bytes written.
func (h *IncrementalHasher) Write(data []byte) (int, error) {
	n, err := h.state.Write(data)
	h.size += n
	return n, err
}

// WriteUint64 writes a uint64 in big-endian encoding.
func (h *IncrementalHasher) WriteUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.state.Write(buf[:])
	h.size += 8
}

// WriteBlockId writes a 32-byte block id.
func (h *IncrementalHasher) WriteBlockId(id models.BlockId) {
	b := id.Bytes()
	h.state.Write(b[:])
	h.size += models.BlockIdLength
}

// WriteAddress writes a 32-byte address.
func (h *IncrementalHasher) WriteAddress(addr models.Address) {
	b := addr.Bytes()
	h.state.Write(b[:])
	h.size += models.AddressLength
}

// SumBlockId finalizes the hash and returns a models.BlockId. After calling
// SumBlockId, the hasher must not be reused.
func (h *IncrementalHasher) SumBlockId() models.BlockId {
	return models.BytesToBlockId(h.state.Sum(nil))
}

// SumBytes finalizes the hash and returns the digest as a byte slice.
func (h *IncrementalHasher) SumBytes() []byte {
	return h.state.Sum(nil)[:32]
}

// Size returns the total number of bytes written so far.
func (h *IncrementalHasher) Size() int {
	return h.size
}

// Reset resets the hasher to its initial state.
func (h *IncrementalHasher) Reset() {
	h.state.Reset()
	h.size = 0
}

// CommitHash computes Keccak256(a || b), sorting inputs lexicographically
// first so the result is commutative.
func CommitHash(a, b models.BlockId) models.BlockId {
	for i := 0; i < models.BlockIdLength; i++ {
		if a[i] < b[i] {
			return Keccak256BlockId(a[:], b[:])
		} else if a[i] > b[i] {
			return Keccak256BlockId(b[:], a[:])
		}
	}
	return Keccak256BlockId(a[:], b[:])
}

// PersonalizedHash computes a personalized Keccak-256 hash with a
// fixed-length tag, zero-padded to 32 bytes before prepending.
func PersonalizedHash(tag string, data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	var tagBuf [32]byte
	copy(tagBuf[:], []byte(tag))
	d.Write(tagBuf[:])
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}
