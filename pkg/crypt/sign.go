package crypt

import (
	"crypto/ed25519"
	"fmt"

	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// NewSigningKey generates an Ed25519 key pair. The private seed is
// returned in a guarded buffer (unlocked); the public key is plain bytes,
// public by definition.
func NewSigningKey() (*guard.Buffer, ed25519.PublicKey, error) {
	seed, err := entropy.Bytes(ed25519.SeedSize, guard.StartUnlocked())
	if err != nil {
		return nil, nil, err
	}

	sb, err := seed.Bytes()
	if err != nil {
		seed.Destroy()
		return nil, nil, err
	}
	private := ed25519.NewKeyFromSeed(sb)
	guard.Wipe(sb)

	public := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(public, private[ed25519.SeedSize:])
	guard.Wipe(private)

	return seed, public, nil
}

// Sign signs message with the guarded Ed25519 seed produced by
// NewSigningKey. The seed must be unlocked; the expanded private key
// exists only for the duration of the call and is wiped before returning.
func Sign(seed *guard.Buffer, message []byte) ([]byte, error) {
	sb, err := seed.Bytes()
	if err != nil {
		return nil, err
	}
	defer guard.Wipe(sb)

	if len(sb) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypt: signing seed is %d bytes, want %d", len(sb), ed25519.SeedSize)
	}

	private := ed25519.NewKeyFromSeed(sb)
	defer guard.Wipe(private)

	return ed25519.Sign(private, message), nil
}

// Verify reports whether sig is a valid Ed25519 signature of message under
// public. Purely public inputs; no gating involved.
func Verify(public ed25519.PublicKey, message, sig []byte) bool {
	return len(public) == ed25519.PublicKeySize && ed25519.Verify(public, message, sig)
}
