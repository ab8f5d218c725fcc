package models

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/cespare/xxhash/v2"
)

// BlockIdLength is the size in bytes of a BlockId (a content hash).
const BlockIdLength = 32

// AddressLength is the size in bytes of an Address (derived from a public key).
const AddressLength = 32

// BlockId is the opaque 32-byte content-hash identifier of a block.
type BlockId [BlockIdLength]byte

// ZeroBlockId is the zero-valued BlockId, used as a sentinel for "no parent".
var ZeroBlockId = BlockId{}

// BytesToBlockId converts bytes to a BlockId, truncating or left-padding as
// common.Hash does in the teacher's types package.
func BytesToBlockId(b []byte) BlockId {
	var id BlockId
	if len(b) > BlockIdLength {
		b = b[len(b)-BlockIdLength:]
	}
	copy(id[BlockIdLength-len(b):], b)
	return id
}

// Bytes returns the byte slice backing the id.
func (id BlockId) Bytes() []byte { return id[:] }

// IsZero reports whether the id is the zero value.
func (id BlockId) IsZero() bool { return id == ZeroBlockId }

// Less reports whether id sorts before o, lexicographically on bytes. Used
// for the deterministic "smaller wins" tie-breaks of spec.md §4.4 and §4.5.
func (id BlockId) Less(o BlockId) bool {
	for i := range id {
		if id[i] != o[i] {
			return id[i] < o[i]
		}
	}
	return false
}

// String renders the id in bs58check form, with no prefix (BlockIds are not
// key material so they never carry the PRI-/PUB-/SIG- prefixes of §6).
func (id BlockId) String() string {
	return base58.CheckEncode(id[:], 0)
}

// Prehash returns a fast, non-cryptographic hash of the id suitable for
// bucketing in a PreHashMap/PreHashSet (see prehash.go). It deliberately
// reuses xxhash rather than Go's built-in map hashing so that looking a
// BlockId up does not re-hash an already-random 32 byte content hash through
// a second hash function on every access.
func (id BlockId) Prehash() uint64 {
	return xxhash.Sum64(id[:])
}

// ParseBlockId parses a bs58check-encoded BlockId string.
func ParseBlockId(s string) (BlockId, error) {
	b, _, err := base58.CheckDecode(s)
	if err != nil {
		return BlockId{}, err
	}
	return BytesToBlockId(b), nil
}

// Address is derived from a creator's public key (see crypto.PublicKey.Address).
type Address [AddressLength]byte

// ZeroAddress is the zero-valued Address.
var ZeroAddress = Address{}

// BytesToAddress converts bytes to an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Bytes returns the byte slice backing the address.
func (a Address) Bytes() []byte { return a[:] }

// String renders the address in bs58check form.
func (a Address) String() string {
	return base58.CheckEncode(a[:], 0)
}
