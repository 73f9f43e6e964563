//go:build linux
// +build linux

package memprotect

import (
	"syscall"
	"unsafe"

	"github.com/rtmigo/codn/internal/tlog"
)

// madvDontDump is Linux's MADV_DONTDUMP advice value, which the frozen
// syscall package does not export.
const madvDontDump = 0x10

// lockRegion locks size bytes at ptr against swap and excludes them from
// core dumps. Either syscall failing is logged, not fatal -- a CNK that
// can't be pinned is still a usable CNK, just one without this extra layer.
func lockRegion(ptr unsafe.Pointer, size uintptr) bool {
	ok := true
	if err := mlock(ptr, size); err != nil {
		tlog.Debug.Printf("memprotect: mlock failed: %v", err)
		ok = false
	}
	if err := madvise(ptr, size, madvDontDump); err != nil {
		tlog.Debug.Printf("memprotect: madvise MADV_DONTDUMP failed: %v", err)
		ok = false
	}
	return ok
}

// unlockRegion reverses lockRegion. madvise has no "undo MADV_DONTDUMP"
// flag worth restoring -- the region is about to be zeroed and dropped.
func unlockRegion(ptr unsafe.Pointer, size uintptr) {
	if err := munlock(ptr, size); err != nil {
		tlog.Debug.Printf("memprotect: munlock failed: %v", err)
	}
}

func mlock(ptr unsafe.Pointer, size uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_MLOCK, uintptr(ptr), size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func munlock(ptr unsafe.Pointer, size uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_MUNLOCK, uintptr(ptr), size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func madvise(ptr unsafe.Pointer, size uintptr, advice int) error {
	_, _, errno := syscall.Syscall(syscall.SYS_MADVISE, uintptr(ptr), size, uintptr(advice))
	if errno != 0 {
		return errno
	}
	return nil
}
