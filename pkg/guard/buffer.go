package guard

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

var (
	// ErrAccessDenied is returned by read operations on a LOCKED buffer.
	// Unlock the buffer before accessing the data.
	ErrAccessDenied = errors.New("guard: buffer is locked: unlock the buffer before accessing the data")

	// ErrInvalidLength is returned for allocation requests and repeat
	// counts that make no sense (zero where at least one byte is
	// required, or negative values).
	ErrInvalidLength = errors.New("guard: invalid length")
)

// Buffer holds a fixed-length secret payload in a guarded memory region.
// The payload is immutable for the Buffer's whole life; the only state that
// changes is the lock gate, and the only writes to the region are the
// construction-time copy and the zero-fill at destruction.
//
// A Buffer carries no internal synchronization. It is a single-owner value:
// concurrent Lock/Unlock/read calls on one instance must be serialized by
// the caller. Destroy must be called when the secret is no longer needed;
// using a destroyed buffer panics.
type Buffer struct {
	r         *region
	length    int
	locked    bool
	destroyed bool
}

// New copies src into a freshly allocated guarded region. An empty src is
// valid and yields a zero-length buffer (a real allocation with an empty
// payload window, not a nil value).
//
// With WipeSource, src is zeroed in place after the copy — the call site
// visibly gives up its unprotected copy of the secret. The initial lock
// state comes from the process default unless StartLocked or StartUnlocked
// is given.
func New(src []byte, opts ...Option) (*Buffer, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := allocRegion(len(src))
	if err != nil {
		return nil, err
	}
	copy(r.data, src)

	if cfg.wipeSource {
		Wipe(src)
	}

	return seal(r, &cfg), nil
}

// NewFromReader fills a new guarded buffer with exactly size bytes from r,
// reading directly into the protected region so the secret never crosses
// the Go heap. size must be at least 1.
func NewFromReader(r io.Reader, size int, opts ...Option) (*Buffer, error) {
	if size < 1 {
		return nil, ErrInvalidLength
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	reg, err := allocRegion(size)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, reg.data); err != nil {
		reg.free()
		return nil, fmt.Errorf("guard: short read while filling buffer: %w", err)
	}

	return seal(reg, &cfg), nil
}

// seal applies the construction-time protection state to a filled region
// and wraps it in a Buffer.
func seal(r *region, cfg *config) *Buffer {
	b := &Buffer{r: r, length: len(r.data)}
	if cfg.initialLocked() {
		b.locked = true
		b.setProtection(unix.PROT_NONE)
	} else {
		b.setProtection(unix.PROT_READ)
	}
	return b
}

// setProtection changes the data pages' protection. The kernel refusing a
// protection change on our own anonymous mapping means the gate can no
// longer be trusted to hold, so it is treated as fatal.
func (b *Buffer) setProtection(prot int) {
	if err := b.r.protect(prot); err != nil {
		fatal("mprotect failed: %v", err)
	}
}

// Lock transitions the buffer to the LOCKED state and removes all access
// permissions from the data pages. Idempotent.
func (b *Buffer) Lock() {
	b.mustBeAlive()
	if b.locked {
		return
	}
	b.setProtection(unix.PROT_NONE)
	b.locked = true
}

// Unlock transitions the buffer to the UNLOCKED state and makes the data
// pages read-only. Idempotent.
func (b *Buffer) Unlock() {
	b.mustBeAlive()
	if !b.locked {
		return
	}
	b.setProtection(unix.PROT_READ)
	b.locked = false
}

// IsLocked reports whether the buffer is in the LOCKED state. Metadata
// only; allowed in either state.
func (b *Buffer) IsLocked() bool {
	b.mustBeAlive()
	return b.locked
}

// Len returns the payload length in bytes. Metadata only; allowed in
// either state.
func (b *Buffer) Len() int {
	b.mustBeAlive()
	return b.length
}

// Bool reports whether the buffer holds any bytes at all. It never
// dereferences the payload: a three-byte buffer of zeroes is still true,
// and the result is independent of the lock state.
func (b *Buffer) Bool() bool {
	b.mustBeAlive()
	return b.length > 0
}

// Bytes returns the payload as an ordinary heap-allocated copy. This is a
// deliberate escape from protection: the caller owns an unguarded copy and
// is responsible for wiping it. Requires UNLOCKED.
func (b *Buffer) Bytes() ([]byte, error) {
	if err := b.beginRead(); err != nil {
		return nil, err
	}
	out := make([]byte, b.length)
	copy(out, b.r.data)
	return out, nil
}

// Hex returns the payload encoded as lowercase hexadecimal text. Requires
// UNLOCKED.
func (b *Buffer) Hex() (string, error) {
	if err := b.beginRead(); err != nil {
		return "", err
	}
	return hex.EncodeToString(b.r.data), nil
}

// Equal reports whether both buffers hold identical bytes. Both operands
// must be UNLOCKED. Buffers of different length are unequal by definition
// — no error, and no payload bytes are compared at all. The comparison is
// not constant-time; the length short-circuit and the byte-wise compare
// are a timing side channel, acceptable here because this is a value
// operation, not an authentication check (use secutil.Compare for that).
func (b *Buffer) Equal(other *Buffer) (bool, error) {
	if err := b.beginRead(); err != nil {
		return false, err
	}
	if err := other.beginRead(); err != nil {
		return false, err
	}
	if b.length != other.length {
		return false, nil
	}
	return bytes.Equal(b.r.data, other.r.data), nil
}

// NotEqual is the negation of Equal, with the same gating.
func (b *Buffer) NotEqual(other *Buffer) (bool, error) {
	eq, err := b.Equal(other)
	if err != nil {
		return false, err
	}
	return !eq, nil
}

// EqualBytes compares the payload against a plain byte slice. The buffer
// must be UNLOCKED; length mismatch means unequal, not an error.
func (b *Buffer) EqualBytes(other []byte) (bool, error) {
	if err := b.beginRead(); err != nil {
		return false, err
	}
	if b.length != len(other) {
		return false, nil
	}
	return bytes.Equal(b.r.data, other), nil
}

// NotEqualBytes is the negation of EqualBytes, with the same gating.
func (b *Buffer) NotEqualBytes(other []byte) (bool, error) {
	eq, err := b.EqualBytes(other)
	if err != nil {
		return false, err
	}
	return !eq, nil
}

// Concat returns a new guarded buffer holding this buffer's payload
// followed by other's. Both operands must be UNLOCKED and are not
// modified; the result is an independent allocation whose initial lock
// state follows the process default.
func (b *Buffer) Concat(other *Buffer) (*Buffer, error) {
	if err := b.beginRead(); err != nil {
		return nil, err
	}
	if err := other.beginRead(); err != nil {
		return nil, err
	}
	return derive(b.r.data, other.r.data)
}

// ConcatBytes returns a new guarded buffer holding this buffer's payload
// followed by the given plain bytes. The buffer must be UNLOCKED.
func (b *Buffer) ConcatBytes(other []byte) (*Buffer, error) {
	if err := b.beginRead(); err != nil {
		return nil, err
	}
	return derive(b.r.data, other)
}

// Repeat returns a new guarded buffer holding the payload repeated count
// times. count zero yields a valid zero-length buffer; a negative count is
// ErrInvalidLength. The source must be UNLOCKED and is not modified.
func (b *Buffer) Repeat(count int) (*Buffer, error) {
	if count < 0 {
		return nil, ErrInvalidLength
	}
	if err := b.beginRead(); err != nil {
		return nil, err
	}

	parts := make([][]byte, count)
	for i := range parts {
		parts[i] = b.r.data
	}
	return derive(parts...)
}

// Destroy verifies the canary, zeroes the whole region, and releases the
// mapping. It runs to completion regardless of the lock state at the time
// of the call, and is idempotent. After Destroy, any further use of the
// buffer panics.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.r.free()
	b.r = nil
	b.length = 0
}

// derive builds a new buffer from the byte-wise join of parts, writing
// directly into the fresh region. The result takes the process default
// lock state, like any other construction without explicit options.
func derive(parts ...[]byte) (*Buffer, error) {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	r, err := allocRegion(total)
	if err != nil {
		return nil, err
	}
	off := 0
	for _, p := range parts {
		copy(r.data[off:], p)
		off += len(p)
	}

	var cfg config
	return seal(r, &cfg), nil
}

// beginRead enforces the access gate and the canary check shared by every
// operation that dereferences the payload. It performs no partial read: a
// locked buffer is reported before any byte of the region is touched.
func (b *Buffer) beginRead() error {
	b.mustBeAlive()
	if b.locked {
		return ErrAccessDenied
	}
	b.r.verifyCanary()
	return nil
}

func (b *Buffer) mustBeAlive() {
	if b.destroyed {
		panic("guard: use of destroyed buffer")
	}
}
