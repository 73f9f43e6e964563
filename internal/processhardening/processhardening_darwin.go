//go:build darwin
// +build darwin

package processhardening

import (
	"syscall"

	"github.com/rtmigo/codn/internal/tlog"
)

// HardenProcess zeroes the process's core dump size limit. macOS has no
// PR_SET_DUMPABLE equivalent reachable from the syscall package, so this
// is narrower than the Linux build -- it still closes the main leak path
// (a crash dump written to disk) before any CNK exists.
func (ph *ProcessHardening) HardenProcess() {
	if !ph.enabled {
		return
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{Cur: 0, Max: 0}); err != nil {
		tlog.Debug.Printf("processhardening: RLIMIT_CORE failed: %v", err)
	}

	tlog.Debug.Printf("processhardening: process hardening applied (darwin)")
}
