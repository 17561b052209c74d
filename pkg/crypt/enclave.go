package crypt

import (
	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// enclaveAAD domain-separates enclave blobs from other sealed data.
var enclaveAAD = []byte("palisade.enclave.v1")

// Enclave stores a secret encrypted at rest in ordinary memory under a
// guarded key. A memory dump captures only ciphertext plus a key living in
// a guarded region that dumps exclude; periodic Rekey further narrows the
// window an attacker has to correlate the two. Use an Enclave for secrets
// that stay resident for a long time but are consulted rarely, where a
// page-backed guard.Buffer per secret would exhaust mlock limits.
type Enclave struct {
	key  *guard.Buffer
	blob []byte
}

// NewEnclave encrypts secret under a fresh guarded key and wipes the
// caller's secret slice — after construction the ciphertext is the only
// copy.
func NewEnclave(secret []byte) (*Enclave, error) {
	key, err := entropy.Key(guard.StartUnlocked())
	if err != nil {
		return nil, err
	}

	blob, err := Seal(key, secret, enclaveAAD)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	guard.Wipe(secret)

	return &Enclave{key: key, blob: blob}, nil
}

// Open decrypts the stored secret into a fresh guarded buffer whose
// initial lock state follows the process default. The enclave remains
// sealed and can be opened again.
func (e *Enclave) Open() (*guard.Buffer, error) {
	return Open(e.key, e.blob, enclaveAAD)
}

// Rekey re-encrypts the secret under a fresh key, destroying the old key
// and wiping the old ciphertext. Call periodically to rotate the resident
// key material.
func (e *Enclave) Rekey() error {
	plaintext, err := openPlain(e.key, e.blob, enclaveAAD)
	if err != nil {
		return err
	}

	newKey, err := entropy.Key(guard.StartUnlocked())
	if err != nil {
		guard.Wipe(plaintext)
		return err
	}
	newBlob, err := Seal(newKey, plaintext, enclaveAAD)
	guard.Wipe(plaintext)
	if err != nil {
		newKey.Destroy()
		return err
	}

	e.key.Destroy()
	guard.Wipe(e.blob)
	e.key = newKey
	e.blob = newBlob
	return nil
}

// Destroy wipes the ciphertext and destroys the key. The enclave is
// unusable afterwards.
func (e *Enclave) Destroy() {
	e.key.Destroy()
	guard.Wipe(e.blob)
	e.blob = nil
}
