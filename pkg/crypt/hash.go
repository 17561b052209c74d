package crypt

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// Fingerprint computes a 32-byte BLAKE3 keyed hash of data under a guarded
// 32-byte key. Keyed fingerprints let callers compare or index secret
// payloads without ever exposing the payloads themselves, and without the
// key an observer cannot brute-force low-entropy inputs from the digest.
// The key must be unlocked.
func Fingerprint(key *guard.Buffer, data []byte) ([]byte, error) {
	kb, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	defer guard.Wipe(kb)

	h, err := blake3.NewKeyed(kb)
	if err != nil {
		return nil, fmt.Errorf("crypt: bad fingerprint key: %w", err)
	}
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}
