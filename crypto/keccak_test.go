package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/praizmiky/massa/models"
)

func TestKeccak256EmptyString(t *testing.T) {
	hash := Keccak256([]byte{})
	got := hex.EncodeToString(hash)
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got != want {
		t.Errorf("Keccak256(empty) = %s, want %s", got, want)
	}
}

func TestKeccak256Hello(t *testing.T) {
	hash := Keccak256([]byte("hello"))
	got := hex.EncodeToString(hash)
	want := "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	if got != want {
		t.Errorf("Keccak256(hello) = %s, want %s", got, want)
	}
}

func TestKeccak256MultipleInputs(t *testing.T) {
	// Keccak256("hello", "world") should equal Keccak256("helloworld")
	combined := Keccak256([]byte("helloworld"))
	separate := Keccak256([]byte("hello"), []byte("world"))
	if hex.EncodeToString(combined) != hex.EncodeToString(separate) {
		t.Errorf("Keccak256 multi-input mismatch: %x != %x", combined, separate)
	}
}

func TestKeccak256BlockIdReturnsCorrectType(t *testing.T) {
	id := Keccak256BlockId([]byte{})
	want := hex.EncodeToString([]byte{0xc5, 0xd2, 0x46, 0x01, 0x86})
	got := hex.EncodeToString(id.Bytes()[:5])
	if got != want {
		t.Errorf("Keccak256BlockId(empty)[:5] = %s, want %s", got, want)
	}
}

func TestKeccak256BlockIdLength(t *testing.T) {
	id := Keccak256BlockId([]byte("test"))
	if len(id.Bytes()) != 32 {
		t.Errorf("Keccak256BlockId length = %d, want 32", len(id.Bytes()))
	}
}

func TestHeaderSigningHashIgnoresSignatureField(t *testing.T) {
	h := &models.BlockHeader{Slot: models.NewSlot(1, 0)}
	unsigned, err := HeaderSigningHash(h, 4)
	if err != nil {
		t.Fatalf("HeaderSigningHash() error: %v", err)
	}
	h.Signature = models.Signature{0xFF}
	withSig, err := HeaderSigningHash(h, 4)
	if err != nil {
		t.Fatalf("HeaderSigningHash() error: %v", err)
	}
	if unsigned != withSig {
		t.Error("HeaderSigningHash must not be affected by the Signature field")
	}
}

func TestHeaderSigningHashDiffersFromBlockId(t *testing.T) {
	h := &models.BlockHeader{Slot: models.NewSlot(1, 0), Signature: models.Signature{0xAB}}
	signingHash, err := HeaderSigningHash(h, 4)
	if err != nil {
		t.Fatalf("HeaderSigningHash() error: %v", err)
	}
	id, err := HashBlockHeader(h, 4)
	if err != nil {
		t.Fatalf("HashBlockHeader() error: %v", err)
	}
	if signingHash == id {
		t.Error("expected the signing hash (no signature) to differ from the full content hash")
	}
}

func TestKeccak256Deterministic(t *testing.T) {
	data := []byte("deterministic test")
	h1 := Keccak256(data)
	h2 := Keccak256(data)
	if hex.EncodeToString(h1) != hex.EncodeToString(h2) {
		t.Error("Keccak256 is not deterministic")
	}
}
