// Package memprotect keeps a derived codename key (CNK) out of swap and
// core dumps for as long as a Store holds it, and zeroes it the moment
// the Store is done (spec §4.1, §7). It implements memory locking
// (mlock) and MADV_DONTDUMP where the platform supports them, tracking
// each locked region by its own address and size so Cleanup can release
// exactly what was locked.
package memprotect

import (
	"runtime"
	"unsafe"
)

// lockedRegion remembers enough about one LockMemory call to undo it: the
// address alone isn't enough, since munlock needs the original length too.
type lockedRegion struct {
	ptr  unsafe.Pointer
	size uintptr
}

// MemoryProtection tracks the CNK-shaped buffers a Store has asked to be
// pinned against swap, so Close can release every one of them even if a
// caller forgot to pair a LockMemory with a SecureZero.
type MemoryProtection struct {
	enabled bool
	locked  []lockedRegion
}

// New creates a MemoryProtection with locking enabled.
func New() *MemoryProtection {
	return &MemoryProtection{enabled: true}
}

// Disable turns off locking; LockMemory becomes a no-op. Store's
// WithoutProcessHardening option never constructs a MemoryProtection at
// all, so this exists for tests that want one instance to behave both ways.
func (mp *MemoryProtection) Disable() {
	mp.enabled = false
}

// IsEnabled reports whether LockMemory currently does anything.
func (mp *MemoryProtection) IsEnabled() bool {
	return mp.enabled
}

// LockMemory pins cnk's backing pages against swap and marks them
// MADV_DONTDUMP, so the key kdf.Derive returned doesn't survive a crash
// dump or get paged to disk while a Store call still holds it. Returns
// false if locking isn't supported or didn't succeed; the caller still
// holds a usable (just unprotected) key either way.
func (mp *MemoryProtection) LockMemory(cnk []byte) bool {
	if !mp.enabled || len(cnk) == 0 {
		return false
	}
	ptr := unsafe.Pointer(&cnk[0])
	size := uintptr(len(cnk))
	ok := lockRegion(ptr, size)
	mp.locked = append(mp.locked, lockedRegion{ptr, size})
	return ok
}

// SecureZero overwrites cnk with zeros and releases any lock LockMemory
// placed on it, so the key a Store call derived does not outlive that
// call in either readable or pinned form (spec §7).
func (mp *MemoryProtection) SecureZero(cnk []byte) {
	if len(cnk) == 0 {
		return
	}
	defer runtime.KeepAlive(cnk)
	for i := range cnk {
		cnk[i] = 0
	}

	ptr := unsafe.Pointer(&cnk[0])
	for i, r := range mp.locked {
		if r.ptr == ptr {
			unlockRegion(r.ptr, r.size)
			mp.locked = append(mp.locked[:i], mp.locked[i+1:]...)
			break
		}
	}
}

// Cleanup releases every region LockMemory is still tracking. Store calls
// this from Close as a backstop; every call site also calls SecureZero
// itself via defer, so in the normal path this has nothing left to do.
func (mp *MemoryProtection) Cleanup() {
	for _, r := range mp.locked {
		unlockRegion(r.ptr, r.size)
	}
	mp.locked = mp.locked[:0]
}
