package guard

import (
	"fmt"
	"os"
)

// fatal reports an unrecoverable integrity or protection failure and
// terminates the process. Canary corruption and failed protection syscalls
// mean the memory holding secrets can no longer be trusted; there is
// deliberately no error path back to the caller, because a recoverable
// error here would let a partially disclosed or attacker-modified secret
// keep flowing through the program. os.Exit rather than panic: panics can
// be recovered, and this boundary must not be.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "guard: fatal: "+format+"\n", args...)
	os.Exit(2)
}
