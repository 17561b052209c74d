package crypt

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// Argon2id parameters for password-based derivation: 64 MiB memory, one
// pass, four lanes. Interactive-login strength.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// SaltSize is the byte length of salts produced for PasswordKey.
const SaltSize = 16

// DeriveKey derives a fresh 32-byte key from a guarded master key with
// HKDF-SHA256. The info string separates derivation domains: different
// info values yield independent keys from the same master. The master must
// be unlocked and is not consumed.
func DeriveKey(master *guard.Buffer, info []byte) (*guard.Buffer, error) {
	mk, err := master.Bytes()
	if err != nil {
		return nil, err
	}
	defer guard.Wipe(mk)

	out := make([]byte, entropy.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, mk, nil, info), out); err != nil {
		return nil, fmt.Errorf("crypt: hkdf failed: %w", err)
	}
	return guard.New(out, guard.WipeSource())
}

// PasswordKey derives a 32-byte key from a password with Argon2id. The
// password slice is wiped before returning — the caller visibly gives up
// its plaintext copy. The salt is public and must be stored alongside
// whatever the key protects.
func PasswordKey(password, salt []byte) (*guard.Buffer, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("crypt: empty salt")
	}

	key := argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, entropy.KeySize)
	guard.Wipe(password)
	return guard.New(key, guard.WipeSource())
}

// NewSalt returns a fresh random salt for PasswordKey.
func NewSalt() ([]byte, error) {
	return entropy.Plain(SaltSize)
}
