// Package crypt provides the cryptographic collaborators that produce and
// consume guarded buffers: authenticated encryption, key derivation, keyed
// fingerprints, signing, and the Enclave container for secrets encrypted at
// rest in memory.
//
// Key material crosses these APIs as *guard.Buffer values and must be
// unlocked by the caller; a locked key surfaces the gate's
// guard.ErrAccessDenied unchanged. Raw key bytes are copied out of the
// guarded region only for the duration of the operation and wiped before
// returning.
package crypt
