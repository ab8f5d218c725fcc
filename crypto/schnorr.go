package crypto

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/praizmiky/massa/models"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// check out against the given public key and message hash.
var ErrInvalidSignature = errors.New("crypto: invalid schnorr signature")

// PrivateKey is a 32-byte secp256k1 scalar (spec.md §6: "32-byte private keys").
type PrivateKey [32]byte

// GeneratePrivateKey draws a new random secp256k1 private key.
func GeneratePrivateKey() (PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return PrivateKey{}, err
	}
	var out PrivateKey
	copy(out[:], k.Serialize())
	return out, nil
}

// PublicKey derives the x-only public key for this private key (spec.md §6:
// "32-byte x-only public keys").
func (p PrivateKey) PublicKey() models.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(p[:])
	var out models.PublicKey
	copy(out[:], schnorr.SerializePubKey(pub))
	return out
}

// Sign produces a BIP-340 Schnorr signature of hash (typically a BlockId or
// the hash of a header's signed fields) under this private key.
func Sign(p PrivateKey, hash models.BlockId) (models.Signature, error) {
	priv, _ := btcec.PrivKeyFromBytes(p[:])
	sig, err := schnorr.Sign(priv, hash[:])
	if err != nil {
		return models.Signature{}, err
	}
	var out models.Signature
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks a 64-byte Schnorr signature against the x-only public key
// and message hash.
func Verify(pub models.PublicKey, hash models.BlockId, sig models.Signature) error {
	parsedPub, err := schnorr.ParsePubKey(pub[:])
	if err != nil {
		return err
	}
	parsedSig, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return err
	}
	if !parsedSig.Verify(hash[:], parsedPub) {
		return ErrInvalidSignature
	}
	return nil
}

// PrivateKeyFromBytes parses a raw 32-byte scalar as a PrivateKey. It
// checks only that b is 32 bytes long; the scalar's range is not checked.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != 32 {
		return PrivateKey{}, errors.New("crypto: private key must be 32 bytes")
	}
	var out PrivateKey
	copy(out[:], b)
	return out, nil
}
