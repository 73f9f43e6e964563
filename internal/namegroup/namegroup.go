// Package namegroup implements the name-group resolver (spec §4.5): given
// a codename key and every blob in a container, classify each blob as
// foreign, fake or real, group the real blobs by data version, and select
// the newest complete version as the fresh name group.
package namegroup

import (
	"sort"

	"github.com/rtmigo/codn/internal/blob"
	"github.com/rtmigo/codn/internal/parallelcrypto"
)

// Status classifies one blob relative to a codename key.
type Status int

const (
	// StatusForeign means ImprintA did not match (or the header failed to
	// parse, which is treated the same way -- spec §4.5 step 3).
	StatusForeign Status = iota
	// StatusFake means ImprintA matched but ImprintB did not.
	StatusFake
	// StatusReal means both imprints matched and the header parsed cleanly.
	StatusReal
)

// BlobResult is the classification of one container slot.
type BlobResult struct {
	Index  int
	Status Status
	Header blob.Header
	// Decoder is retained only for StatusReal results, so a caller that
	// ends up needing this blob's body (because it's part of the fresh
	// group) doesn't have to re-run the imprint/header tiers.
	Decoder *blob.Decoder
}

// Resolution is the outcome of resolving one codename against a container.
type Resolution struct {
	// Blobs has one entry per input blob, in input order.
	Blobs []BlobResult
	// FreshIndices lists the indices of the fresh group's blobs, ordered by
	// PartIdx, ready to decode and concatenate. Empty if HasFresh is false.
	FreshIndices []int
	FreshDataVer int64
	HasFresh     bool
}

// Resolve classifies every blob in blobData against cnk and picks the
// freshest complete data-version group. The first-tier scan (ImprintA
// only) runs across goroutines, since it's the one pass that touches
// every blob regardless of size (spec §4.5's O(N×56) bound).
func Resolve(cnk []byte, blobData [][]byte) Resolution {
	results := make([]BlobResult, len(blobData))
	parallelcrypto.New().ProcessBatch(len(blobData), func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = classify(cnk, i, blobData[i])
		}
	})

	groups := make(map[int64][]BlobResult)
	for _, r := range results {
		if r.Status == StatusReal {
			groups[r.Header.DataVersion] = append(groups[r.Header.DataVersion], r)
		}
	}

	versions := make([]int64, 0, len(groups))
	for v := range groups {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	res := Resolution{Blobs: results}
	for _, v := range versions {
		group := groups[v]
		if !isComplete(group) {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Header.PartIdx < group[j].Header.PartIdx
		})
		res.FreshDataVer = v
		res.HasFresh = true
		res.FreshIndices = make([]int, len(group))
		for i, g := range group {
			res.FreshIndices[i] = g.Index
		}
		break
	}
	return res
}

func classify(cnk []byte, idx int, data []byte) BlobResult {
	d := blob.NewDecoder(cnk, data)
	if !d.BelongsToNamegroup() {
		return BlobResult{Index: idx, Status: StatusForeign}
	}
	if !d.ContainsData() {
		return BlobResult{Index: idx, Status: StatusFake}
	}
	h, err := d.Header()
	if err != nil {
		// Bad CRC/magic on a blob that passed both imprint checks: spec
		// §4.5 step 3 says treat this as foreign rather than surfacing it,
		// since it could be an imprint collision rather than real corruption.
		return BlobResult{Index: idx, Status: StatusForeign}
	}
	return BlobResult{Index: idx, Status: StatusReal, Header: h, Decoder: d}
}

// isComplete reports whether group contains exactly one blob per part
// index in [0, PartsLen).
func isComplete(group []BlobResult) bool {
	if len(group) == 0 {
		return false
	}
	partsLen := group[0].Header.PartsLen
	if len(group) != partsLen {
		return false
	}
	seen := make([]bool, partsLen)
	for _, g := range group {
		idx := g.Header.PartIdx
		if g.Header.PartsLen != partsLen || idx < 0 || idx >= partsLen || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}
