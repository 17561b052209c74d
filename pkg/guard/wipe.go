package guard

import "runtime"

// Wipe overwrites a byte slice with zero bytes. It works on any slice, not
// just guarded payloads, and is the tool for scrubbing plaintext that never
// entered a Buffer. The go:noinline directive keeps the compiler from
// inlining the loop and then eliminating it as a dead store; the KeepAlive
// pins the slice until the zeroing has happened.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
