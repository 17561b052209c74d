package guard

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// sentinelByte fills the payload window before real data is written, so an
// uninitialized-read bug shows a recognizable pattern instead of zeroes that
// could pass for valid data.
const sentinelByte = 0xDB

// canarySize is the length of the random pattern tiled across the bytes
// between the leading guard page and the payload.
const canarySize = 32

var (
	canaryOnce    sync.Once
	canaryPattern [canarySize]byte
)

// canary returns the process-wide random canary pattern, generating it on
// first use. Holding a single pattern means verification never needs a
// per-region copy sitting on the unprotected Go heap.
func canary() []byte {
	canaryOnce.Do(func() {
		if _, err := rand.Read(canaryPattern[:]); err != nil {
			fatal("crypto/rand failed while generating canary: %v", err)
		}
	})
	return canaryPattern[:]
}

// region is the exclusively owned mapping backing one Buffer:
//
//	[guard page][canary prefix | payload][guard page]
//
// The payload sits at the trailing edge of the inner pages so that a
// one-byte over-read falls directly onto the trailing guard page. The
// canary prefix absorbs the page-rounding slack and detects writes that
// arrive from below.
type region struct {
	mapping []byte // the full mmap, guard pages included
	inner   []byte // canary prefix + payload, the pages whose protection changes
	data    []byte // payload window at the end of inner
}

func roundToPageSize(length int) int {
	pageSize := os.Getpagesize()
	return (length + pageSize - 1) / pageSize * pageSize
}

// allocRegion maps a fresh guarded region with a payload window of exactly
// size bytes. size zero is valid: the inner pages are always at least one
// page and the payload window is empty. The region comes back readable and
// writable; the caller fills the payload and then seals the protection.
//
// Mapping failure is returned as a hard error. The swap and dump exclusion
// hints are best-effort: kernels without MADV_DONTDUMP or with a tight
// RLIMIT_MEMLOCK still get guard pages and canaries.
func allocRegion(size int) (*region, error) {
	if size < 0 {
		return nil, ErrInvalidLength
	}

	pageSize := os.Getpagesize()
	innerLen := roundToPageSize(size + canarySize)
	total := pageSize + innerLen + pageSize

	mapping, err := unix.Mmap(-1, 0, total,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("guard: mmap of %d bytes failed: %w", total, err)
	}

	r := &region{
		mapping: mapping,
		inner:   mapping[pageSize : pageSize+innerLen],
	}
	r.data = r.inner[innerLen-size:]

	// Keep the secret out of swap and out of core dumps. MADV_WIPEONFORK
	// additionally blanks the region in forked children, defeating
	// fork-based memory dumpers.
	_ = unix.Mlock(r.inner)
	_ = unix.Madvise(r.inner, unix.MADV_DONTDUMP)
	_ = unix.Madvise(r.inner, unix.MADV_WIPEONFORK)

	// Sentinel-fill the payload window, then tile the canary over the
	// prefix.
	for i := range r.data {
		r.data[i] = sentinelByte
	}
	fillCanary(r.inner[:innerLen-size])

	// Drop all permissions on the guard pages. A failure here leaves the
	// region without its fault boundary, so it is an allocation failure.
	if err := unix.Mprotect(mapping[:pageSize], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mapping)
		return nil, fmt.Errorf("guard: mprotect of leading guard page failed: %w", err)
	}
	if err := unix.Mprotect(mapping[pageSize+innerLen:], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mapping)
		return nil, fmt.Errorf("guard: mprotect of trailing guard page failed: %w", err)
	}

	return r, nil
}

// fillCanary tiles the process canary pattern across dst.
func fillCanary(dst []byte) {
	pattern := canary()
	for i := range dst {
		dst[i] = pattern[i%canarySize]
	}
}

// protect changes the protection of the inner pages. Guard pages stay
// PROT_NONE for the life of the region.
func (r *region) protect(prot int) error {
	return unix.Mprotect(r.inner, prot)
}

// verifyCanary compares the canary prefix against the process pattern and
// terminates the process on any mismatch. The inner pages must be readable
// when this is called. A mismatch means something wrote through memory it
// had no business touching; continuing would risk handing out corrupted or
// attacker-controlled secret data.
func (r *region) verifyCanary() {
	prefix := r.inner[:len(r.inner)-len(r.data)]
	pattern := canary()
	for len(prefix) >= canarySize {
		if !bytes.Equal(prefix[:canarySize], pattern) {
			fatal("canary mismatch: memory corruption detected")
		}
		prefix = prefix[canarySize:]
	}
	if len(prefix) > 0 && !bytes.Equal(prefix, pattern[:len(prefix)]) {
		fatal("canary mismatch: memory corruption detected")
	}
}

// free verifies the canary, zeroes the inner pages, and releases the
// mapping. The protection transition and canary check are unconditional:
// a region is never released without proving it was not corrupted, and its
// contents never outlive it.
func (r *region) free() {
	if err := r.protect(unix.PROT_READ | unix.PROT_WRITE); err != nil {
		fatal("mprotect before release failed: %v", err)
	}
	r.verifyCanary()

	Wipe(r.inner)

	// Release errors are ignored: the contents are already zeroed and the
	// kernel reclaims the pages at process exit regardless.
	_ = unix.Munlock(r.inner)
	_ = unix.Munmap(r.mapping)

	r.mapping = nil
	r.inner = nil
	r.data = nil
}
