//go:build linux
// +build linux

package processhardening

import (
	"syscall"

	"github.com/rtmigo/codn/internal/tlog"
)

// HardenProcess marks the process non-dumpable and zeroes its core dump
// size limit, so that no CNK internal/kdf later derives for this process
// can leak out through a crash dump (spec §7).
func (ph *ProcessHardening) HardenProcess() {
	if !ph.enabled {
		return
	}

	if err := prctl(syscall.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
		tlog.Debug.Printf("processhardening: PR_SET_DUMPABLE failed: %v", err)
	}
	if err := syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{Cur: 0, Max: 0}); err != nil {
		tlog.Debug.Printf("processhardening: RLIMIT_CORE failed: %v", err)
	}

	tlog.Debug.Printf("processhardening: process hardening applied (linux)")
}

func prctl(option int, arg2, arg3, arg4, arg5 uintptr) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_PRCTL, uintptr(option), arg2, arg3, arg4, arg5, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
