// Package guard provides a self-protecting byte container for sensitive
// material (keys, passwords, plaintext) that must not leak through swap,
// core dumps, over-reads, or residual heap copies.
//
// A Buffer's payload lives in a page-aligned mmap region outside the Go
// heap, bracketed by no-access guard pages and preceded by a random canary.
// Any access outside the payload lands on a guard page and kills the
// process with a hardware fault; canary corruption detected before a read
// or at destruction terminates the process as well. The region is locked
// against swap and excluded from core dumps where the kernel supports it.
//
// Every read of the payload passes through an explicit lock gate: a locked
// buffer's pages carry no access permissions and read operations return
// ErrAccessDenied without touching memory. Unlocking makes the pages
// read-only. Payloads are immutable for their whole lifetime; deriving new
// data (Concat, Repeat) always allocates a fresh guarded region.
package guard
