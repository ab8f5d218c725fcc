package models

import "fmt"

// PublicKeySize is the size in bytes of an x-only secp256k1 public key.
const PublicKeySize = 32

// SignatureSize is the size in bytes of a Schnorr signature.
const SignatureSize = 64

// PublicKey is a 32-byte x-only secp256k1 public key (wire/data form only;
// signing and verification live in package crypto).
type PublicKey [PublicKeySize]byte

// String renders the public key in bs58check form with the "PUB-" prefix
// (subject to IDStringPrefixes).
func (p PublicKey) String() string {
	return formatIDString(publicKeyPrefix, p[:])
}

// ParsePublicKey parses a public key string produced by PublicKey.String.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := parseIDString(publicKeyPrefix, s)
	if err != nil {
		return PublicKey{}, err
	}
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("models: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// Address derives the creator address from the public key, per spec.md §3
// ("Address derived from a public key"). The derivation hashes the raw
// public key bytes with Keccak-256 (see crypto.Keccak256) and keeps the
// low AddressLength bytes, the same scheme the teacher's PubkeyToAddress
// uses for 20-byte Ethereum addresses, widened to the full 32-byte digest
// since massa addresses are not truncated.
func (p PublicKey) Address(hash func([]byte) []byte) Address {
	return BytesToAddress(hash(p[:]))
}

// Signature is a 64-byte Schnorr signature.
type Signature [SignatureSize]byte

// String renders the signature in bs58check form with the "SIG-" prefix
// (subject to IDStringPrefixes).
func (s Signature) String() string {
	return formatIDString(signaturePrefix, s[:])
}

// ParseSignature parses a signature string produced by Signature.String.
func ParseSignature(s string) (Signature, error) {
	b, err := parseIDString(signaturePrefix, s)
	if err != nil {
		return Signature{}, err
	}
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("models: signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	var sig Signature
	copy(sig[:], b)
	return sig, nil
}
