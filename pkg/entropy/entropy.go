// Package entropy generates cryptographically secure random material,
// returning it inside guarded buffers so fresh keys and nonces never sit
// on the unprotected heap.
package entropy

import (
	"crypto/rand"
	"fmt"

	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// Standard sizes for the cryptographic collaborators.
const (
	// KeySize is the byte length of symmetric keys and keyed-hash keys.
	KeySize = 32
	// NonceSize is the byte length of an XChaCha20-Poly1305 nonce.
	NonceSize = 24
)

// Bytes returns n cryptographically random bytes in a guarded buffer. n
// must be at least 1; random generation of nothing is a caller bug and is
// reported as guard.ErrInvalidLength. The bytes are read straight into the
// protected region.
func Bytes(n int, opts ...guard.Option) (*guard.Buffer, error) {
	if n < 1 {
		return nil, guard.ErrInvalidLength
	}
	b, err := guard.NewFromReader(rand.Reader, n, opts...)
	if err != nil {
		return nil, fmt.Errorf("entropy: %w", err)
	}
	return b, nil
}

// Key returns a fresh 32-byte symmetric key in a guarded buffer.
func Key(opts ...guard.Option) (*guard.Buffer, error) {
	return Bytes(KeySize, opts...)
}

// Nonce returns a fresh 24-byte nonce in a guarded buffer.
func Nonce(opts ...guard.Option) (*guard.Buffer, error) {
	return Bytes(NonceSize, opts...)
}

// Plain returns n random bytes as an ordinary slice, for values that are
// public by design (salts, nonces embedded in ciphertext). n must be at
// least 1.
func Plain(n int) ([]byte, error) {
	if n < 1 {
		return nil, guard.ErrInvalidLength
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("entropy: crypto/rand failed: %w", err)
	}
	return b, nil
}
