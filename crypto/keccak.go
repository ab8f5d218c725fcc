package crypto

import (
	"bytes"

	"golang.org/x/crypto/sha3"

	"github.com/praizmiky/massa/models"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256BlockId calculates Keccak-256 and returns it as a models.BlockId,
// the content hash used to identify blocks (spec.md §3: BlockId).
func Keccak256BlockId(data ...[]byte) models.BlockId {
	return models.BytesToBlockId(Keccak256(data...))
}

// HashBlockHeader computes the BlockId of a header: the Keccak-256 digest of
// its wire encoding with threadCount parents (spec.md §6 codec, §3 BlockId).
// Callers that already have operations available should prefer hashing the
// full encoded block; headers and blocks of the same content hash to the
// same id since the header's operation_merkle_root commits to the
// operations.
func HashBlockHeader(h *models.BlockHeader, threadCount uint8) (models.BlockId, error) {
	var buf bytes.Buffer
	if err := models.EncodeHeader(&buf, h, threadCount); err != nil {
		return models.BlockId{}, err
	}
	return Keccak256BlockId(buf.Bytes()), nil
}

// HeaderSigningHash computes the hash a header's creator signs: the same
// encoding as HashBlockHeader but with the Signature field zeroed, since a
// signature cannot cover itself. Verify against this hash, not against the
// BlockId returned by HashBlockHeader.
func HeaderSigningHash(h *models.BlockHeader, threadCount uint8) (models.BlockId, error) {
	unsigned := *h
	unsigned.Signature = models.Signature{}
	return HashBlockHeader(&unsigned, threadCount)
}
