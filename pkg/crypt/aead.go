package crypt

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// blobVersion is prepended to every sealed blob and authenticated as part
// of the additional data, so tampering with it fails authentication.
const blobVersion byte = 0x01

// blobOverhead is the fixed byte overhead of a sealed blob:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// ErrDecryptFailed is returned when a sealed blob fails authentication:
// wrong key, truncated or modified blob, or mismatched additional data.
var ErrDecryptFailed = errors.New("crypt: ciphertext authentication failed")

// Seal encrypts plaintext under a 32-byte guarded key with
// XChaCha20-Poly1305 and returns version ‖ nonce ‖ ciphertext. The version
// byte and aad are both authenticated. The key must be unlocked.
func Seal(key *guard.Buffer, plaintext, aad []byte) ([]byte, error) {
	kb, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	defer guard.Wipe(kb)

	aead, err := chacha20poly1305.NewX(kb)
	if err != nil {
		return nil, fmt.Errorf("crypt: bad sealing key: %w", err)
	}

	nonce, err := entropy.Plain(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, blobOverhead+len(plaintext))
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, authData(aad)), nil
}

// Open authenticates and decrypts a blob produced by Seal, returning the
// plaintext in a fresh guarded buffer whose initial lock state follows the
// process default. The key must be unlocked. Any authentication failure is
// ErrDecryptFailed.
func Open(key *guard.Buffer, blob, aad []byte) (*guard.Buffer, error) {
	plaintext, err := openPlain(key, blob, aad)
	if err != nil {
		return nil, err
	}
	return guard.New(plaintext, guard.WipeSource())
}

// openPlain is Open without the guarded wrapping, for internal callers
// that immediately re-encrypt the plaintext.
func openPlain(key *guard.Buffer, blob, aad []byte) ([]byte, error) {
	kb, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	defer guard.Wipe(kb)

	aead, err := chacha20poly1305.NewX(kb)
	if err != nil {
		return nil, fmt.Errorf("crypt: bad sealing key: %w", err)
	}

	if len(blob) < blobOverhead || blob[0] != blobVersion {
		return nil, ErrDecryptFailed
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := blob[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, authData(aad))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// authData binds the blob version into the authenticated data.
func authData(aad []byte) []byte {
	full := make([]byte, 0, 1+len(aad))
	full = append(full, blobVersion)
	return append(full, aad...)
}
