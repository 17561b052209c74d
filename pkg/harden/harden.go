// Package harden applies process-wide protections that complement the
// per-buffer guarantees of pkg/guard: preventing any core dump from being
// written at all, and pinning the whole address space out of swap.
package harden

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DisableCoreDumps prevents the process from producing core dumps through
// three layers: PR_SET_DUMPABLE (which also restricts /proc/pid/mem access
// from other processes), RLIMIT_CORE of zero, and clearing
// /proc/self/coredump_filter. The filter write is best-effort — the file
// is not writable in every container configuration, and the first two
// layers already suppress dump generation.
func DisableCoreDumps() error {
	if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		return fmt.Errorf("harden: PR_SET_DUMPABLE failed: %w", err)
	}

	rlimit := unix.Rlimit{Cur: 0, Max: 0}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &rlimit); err != nil {
		return fmt.Errorf("harden: RLIMIT_CORE failed: %w", err)
	}

	_ = os.WriteFile("/proc/self/coredump_filter", []byte("0"), 0)

	return nil
}

// LockAllMemory pins the entire address space, current and future, into
// physical RAM so nothing the process touches is ever swapped to disk.
// This is a heavier hammer than the per-region mlock the guard allocator
// applies and usually needs a raised RLIMIT_MEMLOCK or CAP_IPC_LOCK;
// callers should treat failure as advisory on unprivileged deployments.
func LockAllMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("harden: mlockall failed: %w", err)
	}
	return nil
}
