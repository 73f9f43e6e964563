package container

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/rtmigo/codn/internal/imprint"
)

// NonceGuard is a probabilistic fast path for catching imprint-nonce
// collisions across one rewrite's whole batch of blobs, on top of the
// in-blob check blob.Encrypt already does between its own two imprints
// (spec §3, P5: "two imprints from the same CNK have different nonces").
// A 24-byte random nonce colliding with any other nonce generated in the
// same batch is astronomically unlikely; this exists to make that
// invariant cheap to double-check defensively even across a rewrite with
// many thousands of blobs, not because collisions are expected.
type NonceGuard struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

// NewNonceGuard sizes the underlying Bloom filter for a rewrite expected
// to generate roughly 2*expectedBlobs nonces (ImprintA + ImprintB per
// blob), at a false-positive rate low enough that the exact re-check
// against the map of every nonce seen so far is practically never needed.
func NewNonceGuard(expectedBlobs int) *NonceGuard {
	n := uint(expectedBlobs)*2 + 16
	return &NonceGuard{
		filter: bloom.NewWithEstimates(n, 1e-6),
		seen:   make(map[string]struct{}),
	}
}

// Observe records one imprint's nonce and reports whether that exact
// nonce was already observed earlier in this batch. False positives from
// the Bloom filter are always re-checked against the exact set before
// being reported, so Observe never reports a spurious collision.
func (g *NonceGuard) Observe(imp []byte) bool {
	nonce := string(imp[:imprint.NonceLen])
	if !g.filter.Test([]byte(nonce)) {
		g.filter.Add([]byte(nonce))
		g.seen[nonce] = struct{}{}
		return false
	}
	_, collided := g.seen[nonce]
	if !collided {
		g.seen[nonce] = struct{}{}
	}
	return collided
}
