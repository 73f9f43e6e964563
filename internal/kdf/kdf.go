// Package kdf derives a codename key (CNK) from a codename and a
// per-container salt.
//
// Unlike a config-file KDF (gocryptfs's scrypt/Argon2id, tunable per
// container), this KDF's parameters are part of the wire format itself:
// spec §4.1 requires that "the algorithm and parameters must be fixed in
// the format" so any conforming implementation derives byte-identical
// keys. The constants below are therefore not configuration -- changing
// any of them is a format version change.
package kdf

import (
	"golang.org/x/crypto/argon2"

	"github.com/rtmigo/codn/internal/common"
)

const (
	// TimeCost is the Argon2id number-of-passes parameter.
	TimeCost = 3
	// MemoryCostKiB is the Argon2id memory parameter, in KiB (64 MiB).
	MemoryCostKiB = 64 * 1024
	// Parallelism is the Argon2id parallelism (lanes) parameter.
	Parallelism = 4
)

// Derive computes the 32-byte codename key for (codename, salt). It is a
// pure, deterministic, CPU/memory-hard function: two calls with the same
// arguments always produce the same key, and by design it takes a
// noticeable fraction of a second on commodity hardware.
//
// salt must be common.KeySaltSize bytes; Derive panics otherwise, since a
// wrong salt length is always a caller bug, never a runtime condition a
// store needs to recover from.
func Derive(codename string, salt []byte) []byte {
	if len(salt) != common.KeySaltSize {
		panic("kdf: wrong salt length")
	}
	return argon2.IDKey([]byte(codename), salt, TimeCost, MemoryCostKiB, Parallelism, common.CodenameKeySize)
}

// Wipe overwrites a derived key with zeros. Callers should defer this as
// soon as a CNK is no longer needed.
func Wipe(cnk []byte) {
	for i := range cnk {
		cnk[i] = 0
	}
}
