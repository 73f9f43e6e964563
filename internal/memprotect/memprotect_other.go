//go:build !linux

package memprotect

import (
	"unsafe"

	"github.com/rtmigo/codn/internal/tlog"
)

// lockRegion is a no-op fallback for platforms without a wired mlock/madvise
// syscall pair (including darwin, which codn doesn't special-case the way
// processhardening does for core-dump disabling). The CNK is still zeroed
// by SecureZero on schedule; it just isn't pinned against swap first.
func lockRegion(ptr unsafe.Pointer, size uintptr) bool {
	tlog.Debug.Printf("memprotect: memory locking not supported on this platform, tracking %d bytes at %p", size, ptr)
	return false
}

func unlockRegion(ptr unsafe.Pointer, size uintptr) {
	tlog.Debug.Printf("memprotect: memory unlocking not supported on this platform, untracked %d bytes at %p", size, ptr)
}
