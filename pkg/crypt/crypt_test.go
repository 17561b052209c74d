package crypt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
)

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

// allZero returns true if every byte in b is 0x00.
func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// freshKey returns an unlocked 32-byte key.
func freshKey(t *testing.T) *guard.Buffer {
	t.Helper()
	k, err := entropy.Key(guard.StartUnlocked())
	if err != nil {
		t.Fatalf("entropy.Key failed: %v", err)
	}
	return k
}

// readBuffer unlocks and reads a guarded buffer.
func readBuffer(t *testing.T, b *guard.Buffer) []byte {
	t.Helper()
	b.Unlock()
	out, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	return out
}

// --------------------------------------------------------------------------
// Seal / Open
// --------------------------------------------------------------------------

func TestSealOpen(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()

		plaintext := []byte("attack at dawn")
		blob, err := Seal(key, plaintext, []byte("ctx"))
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		if len(blob) != blobOverhead+len(plaintext) {
			t.Fatalf("blob length = %d, want %d", len(blob), blobOverhead+len(plaintext))
		}

		opened, err := Open(key, blob, []byte("ctx"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer opened.Destroy()

		if got := readBuffer(t, opened); !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	})

	t.Run("tampered blob fails", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()

		blob, err := Seal(key, []byte("payload"), nil)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		blob[len(blob)-1] ^= 0x01

		if _, err := Open(key, blob, nil); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("tampered version byte fails", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()

		blob, err := Seal(key, []byte("payload"), nil)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		blob[0] = 0x7F

		if _, err := Open(key, blob, nil); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("mismatched aad fails", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()

		blob, err := Seal(key, []byte("payload"), []byte("right"))
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}

		if _, err := Open(key, blob, []byte("wrong")); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("wrong key fails", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()
		other := freshKey(t)
		defer other.Destroy()

		blob, err := Seal(key, []byte("payload"), nil)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}

		if _, err := Open(other, blob, nil); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("truncated blob fails", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()

		if _, err := Open(key, []byte{blobVersion, 0x00}, nil); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("locked key is access denied", func(t *testing.T) {
		key := freshKey(t)
		defer key.Destroy()
		key.Lock()

		if _, err := Seal(key, []byte("payload"), nil); !errors.Is(err, guard.ErrAccessDenied) {
			t.Fatalf("Seal: got %v, want guard.ErrAccessDenied", err)
		}
		if _, err := Open(key, []byte("blob"), nil); !errors.Is(err, guard.ErrAccessDenied) {
			t.Fatalf("Open: got %v, want guard.ErrAccessDenied", err)
		}
	})
}

// --------------------------------------------------------------------------
// key derivation
// --------------------------------------------------------------------------

func TestDeriveKey(t *testing.T) {
	master := freshKey(t)
	defer master.Destroy()

	t.Run("deterministic per info", func(t *testing.T) {
		a, err := DeriveKey(master, []byte("palisade.test.a"))
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		defer a.Destroy()
		b, err := DeriveKey(master, []byte("palisade.test.a"))
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		defer b.Destroy()

		a.Unlock()
		b.Unlock()
		eq, err := a.Equal(b)
		if err != nil {
			t.Fatalf("Equal failed: %v", err)
		}
		if !eq {
			t.Fatal("same master and info produced different keys")
		}
	})

	t.Run("domain separated", func(t *testing.T) {
		a, err := DeriveKey(master, []byte("palisade.test.a"))
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		defer a.Destroy()
		b, err := DeriveKey(master, []byte("palisade.test.b"))
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}
		defer b.Destroy()

		a.Unlock()
		b.Unlock()
		eq, err := a.Equal(b)
		if err != nil {
			t.Fatalf("Equal failed: %v", err)
		}
		if eq {
			t.Fatal("different info strings produced the same key")
		}
	})

	t.Run("locked master is access denied", func(t *testing.T) {
		master.Lock()
		defer master.Unlock()

		if _, err := DeriveKey(master, []byte("info")); !errors.Is(err, guard.ErrAccessDenied) {
			t.Fatalf("got %v, want guard.ErrAccessDenied", err)
		}
	})
}

func TestPasswordKey(t *testing.T) {
	t.Run("deterministic for fixed salt and wipes password", func(t *testing.T) {
		salt := bytes.Repeat([]byte{0x24}, SaltSize)

		first, err := PasswordKey([]byte("hunter2"), salt)
		if err != nil {
			t.Fatalf("PasswordKey failed: %v", err)
		}
		defer first.Destroy()

		pw := []byte("hunter2")
		second, err := PasswordKey(pw, salt)
		if err != nil {
			t.Fatalf("PasswordKey failed: %v", err)
		}
		defer second.Destroy()

		if !allZero(pw) {
			t.Fatal("password slice was not wiped")
		}

		first.Unlock()
		second.Unlock()
		eq, err := first.Equal(second)
		if err != nil {
			t.Fatalf("Equal failed: %v", err)
		}
		if !eq {
			t.Fatal("same password and salt produced different keys")
		}
	})

	t.Run("empty salt rejected", func(t *testing.T) {
		if _, err := PasswordKey([]byte("pw"), nil); err == nil {
			t.Fatal("expected error for empty salt")
		}
	})
}

// --------------------------------------------------------------------------
// fingerprints
// --------------------------------------------------------------------------

func TestFingerprint(t *testing.T) {
	key := freshKey(t)
	defer key.Destroy()

	a, err := Fingerprint(key, []byte("data"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	b, err := Fingerprint(key, []byte("data"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("fingerprint is not deterministic")
	}

	c, err := Fingerprint(key, []byte("other"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("different data produced the same fingerprint")
	}

	other := freshKey(t)
	defer other.Destroy()
	d, err := Fingerprint(other, []byte("data"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if bytes.Equal(a, d) {
		t.Fatal("different keys produced the same fingerprint")
	}
}

// --------------------------------------------------------------------------
// signing
// --------------------------------------------------------------------------

func TestSigning(t *testing.T) {
	seed, public, err := NewSigningKey()
	if err != nil {
		t.Fatalf("NewSigningKey failed: %v", err)
	}
	defer seed.Destroy()

	message := []byte("signed statement")
	sig, err := Sign(seed, message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !Verify(public, message, sig) {
		t.Fatal("valid signature did not verify")
	}
	if Verify(public, []byte("altered statement"), sig) {
		t.Fatal("signature verified against altered message")
	}

	t.Run("locked seed is access denied", func(t *testing.T) {
		seed.Lock()
		defer seed.Unlock()

		if _, err := Sign(seed, message); !errors.Is(err, guard.ErrAccessDenied) {
			t.Fatalf("got %v, want guard.ErrAccessDenied", err)
		}
	})
}

// --------------------------------------------------------------------------
// Enclave
// --------------------------------------------------------------------------

func TestEnclave(t *testing.T) {
	t.Run("round trip and source wipe", func(t *testing.T) {
		secret := []byte("long-lived resident secret")
		saved := make([]byte, len(secret))
		copy(saved, secret)

		e, err := NewEnclave(secret)
		if err != nil {
			t.Fatalf("NewEnclave failed: %v", err)
		}
		defer e.Destroy()

		if !allZero(secret) {
			t.Fatal("caller's secret was not wiped")
		}

		opened, err := e.Open()
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer opened.Destroy()

		if got := readBuffer(t, opened); !bytes.Equal(got, saved) {
			t.Fatalf("round trip mismatch: got %q, want %q", got, saved)
		}
	})

	t.Run("rekey preserves the secret and replaces the blob", func(t *testing.T) {
		e, err := NewEnclave([]byte("rotate me"))
		if err != nil {
			t.Fatalf("NewEnclave failed: %v", err)
		}
		defer e.Destroy()

		before := make([]byte, len(e.blob))
		copy(before, e.blob)

		if err := e.Rekey(); err != nil {
			t.Fatalf("Rekey failed: %v", err)
		}
		if bytes.Equal(before, e.blob) {
			t.Fatal("rekey left the ciphertext unchanged")
		}

		opened, err := e.Open()
		if err != nil {
			t.Fatalf("Open after rekey failed: %v", err)
		}
		defer opened.Destroy()

		if got := readBuffer(t, opened); string(got) != "rotate me" {
			t.Fatalf("secret changed across rekey: %q", got)
		}
	})

	t.Run("empty secret", func(t *testing.T) {
		e, err := NewEnclave(nil)
		if err != nil {
			t.Fatalf("NewEnclave failed: %v", err)
		}
		defer e.Destroy()

		opened, err := e.Open()
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer opened.Destroy()

		if opened.Len() != 0 {
			t.Fatalf("Len() = %d, want 0", opened.Len())
		}
	})
}
