// Package imprint implements the (nonce, digest) tag that binds a blob to
// a codename key without revealing the codename to anyone who lacks the
// key (spec §4.2).
package imprint

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

const (
	// NonceLen is the length in bytes of the random nonce half of an imprint.
	NonceLen = 24
	// DigestLen is the length in bytes of the keyed-hash digest half.
	DigestLen = 32
	// FullLen is the total on-wire length of one imprint.
	FullLen = NonceLen + DigestLen
)

// Generate produces a fresh imprint for cnk: 24 random bytes followed by
// BLAKE2s-256(key=cnk, data=nonce). BLAKE2s in keyed mode is a PRF, so the
// digest cannot be produced by anyone without cnk, and two calls with the
// same cnk yield different bytes with overwhelming probability because the
// nonce is fresh every time.
func Generate(cnk []byte) ([]byte, error) {
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("imprint: generating nonce: %w", err)
	}
	digest, err := digest(cnk, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, FullLen)
	out = append(out, nonce...)
	out = append(out, digest...)
	return out, nil
}

// Verify reports whether b (FullLen bytes) is a valid imprint of cnk. It
// recomputes the digest from the embedded nonce and compares in constant
// time. A short or malformed b is simply "not a match", not an error --
// the caller (the name-group resolver) treats every blob this way until
// proven otherwise.
func Verify(cnk []byte, b []byte) bool {
	if len(b) != FullLen {
		return false
	}
	nonce := b[:NonceLen]
	got := b[NonceLen:]
	want, err := digest(cnk, nonce)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

func digest(cnk []byte, nonce []byte) ([]byte, error) {
	h, err := blake2s.New256(cnk)
	if err != nil {
		return nil, fmt.Errorf("imprint: keyed hash init: %w", err)
	}
	h.Write(nonce)
	return h.Sum(nil), nil
}
