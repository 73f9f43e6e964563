//go:build !linux && !darwin

package processhardening

import "github.com/rtmigo/codn/internal/tlog"

// HardenProcess is a no-op on platforms with no wired core-dump syscalls.
// internal/memprotect's per-CNK zeroing still applies regardless.
func (ph *ProcessHardening) HardenProcess() {
	if !ph.enabled {
		return
	}
	tlog.Debug.Printf("processhardening: process hardening not supported on this platform")
}
