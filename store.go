// Package codn implements a single-file encrypted key-value store with
// plausible deniability: entries are addressed by secret codenames, and an
// observer with the container file but without a codename cannot
// enumerate entries, distinguish real data from decoys, or learn how many
// real entries exist.
package codn

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/rtmigo/codn/internal/blob"
	"github.com/rtmigo/codn/internal/bodycodec"
	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/container"
	"github.com/rtmigo/codn/internal/cryptocore"
	"github.com/rtmigo/codn/internal/imprint"
	"github.com/rtmigo/codn/internal/kdf"
	"github.com/rtmigo/codn/internal/memprotect"
	"github.com/rtmigo/codn/internal/namegroup"
	"github.com/rtmigo/codn/internal/options"
	"github.com/rtmigo/codn/internal/processhardening"
	"github.com/rtmigo/codn/internal/tlog"
)

const (
	// DefaultMinBlobCount is the floor every rewrite pads the container's
	// blob count to with fake blobs, so that count stops tracking the
	// number of real entries.
	DefaultMinBlobCount = 16
	// DefaultFakePoolSize is the number of fresh fake blobs minted on top
	// of the real and preserved blobs on every rewrite, regardless of
	// DefaultMinBlobCount.
	DefaultFakePoolSize = 4

	// maxNonceRetries bounds the (astronomically unlikely) retry loop for
	// a NonceGuard-reported collision within one rewrite's batch.
	maxNonceRetries = 8
)

// Store is a handle to one container file. It derives a fresh codename key
// for every call and never retains it past that call's return.
type Store struct {
	path          string
	minBlobCount  int
	fakePoolSize  int
	codec         blob.CodecID
	hardenProcess bool

	ph *processhardening.ProcessHardening
	mp *memprotect.MemoryProtection
}

// Open returns a Store over path. The container file need not exist yet;
// it is created on the first Set call. Process hardening (C8) is applied
// once here, before any codename key is ever derived.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:          path,
		minBlobCount:  DefaultMinBlobCount,
		fakePoolSize:  DefaultFakePoolSize,
		codec:         blob.CodecNone,
		hardenProcess: true,
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, fmt.Errorf("codn: %w", err)
	}
	if s.hardenProcess {
		s.ph = processhardening.New()
		s.ph.HardenProcess()
		s.mp = memprotect.New()
	}
	return s, nil
}

// Close releases the Store. It is safe to call more than once.
func (s *Store) Close() error {
	if s.mp != nil {
		s.mp.Cleanup()
	}
	return nil
}

// SetText stores text under name, replacing any value previously stored
// under it.
func (s *Store) SetText(name, text string) error {
	return s.set(name, []byte(text))
}

// GetText returns the text stored under name, or common.ErrNotFound if
// name has never been set (or was never successfully written).
func (s *Store) GetText(name string) (string, error) {
	data, err := s.get(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetFile stores the contents of the file at path under name.
func (s *Store) SetFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("codn: reading %s: %w", path, err)
	}
	return s.set(name, data)
}

// GetFile writes the bytes stored under name to the file at path,
// creating or truncating it.
func (s *Store) GetFile(name, path string) error {
	data, err := s.get(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("codn: writing %s: %w", path, err)
	}
	return nil
}

// set implements spec.md §4.7's set protocol: derive CNK, resolve the
// current fresh data version, split+encode the new payload one version
// higher, drop every blob real under this CNK, pad with fakes, rewrite.
func (s *Store) set(name string, payload []byte) error {
	parts := splitPayload(payload)
	if len(parts) > common.MaxParts {
		return fmt.Errorf("%w: payload needs %d parts, max is %d", common.ErrInvalidArgument, len(parts), common.MaxParts)
	}

	c, err := container.Open(s.path)
	if err != nil {
		return err
	}

	cnk := kdf.Derive(name, c.Salt)
	defer kdf.Wipe(cnk)
	if s.mp != nil {
		s.mp.LockMemory(cnk)
		defer s.mp.SecureZero(cnk)
	}

	res := namegroup.Resolve(cnk, c.Blobs)
	newDataVer := res.FreshDataVer + 1

	keep := make([][]byte, 0, len(c.Blobs))
	for _, br := range res.Blobs {
		if br.Status != namegroup.StatusReal {
			keep = append(keep, c.Blobs[br.Index])
		}
	}

	rng := cryptocore.NewRandPool()
	guard := container.NewNonceGuard(len(keep) + len(parts) + s.fakePoolSize + s.minBlobCount)

	newBlobs := make([][]byte, 0, len(parts))
	for idx, chunk := range parts {
		encoded, err := s.encodePart(cnk, newDataVer, uint32(len(payload)), idx, len(parts), chunk, rng, guard)
		if err != nil {
			return fmt.Errorf("codn: encoding part %d: %w", idx, err)
		}
		newBlobs = append(newBlobs, encoded)
	}

	all := append(keep, newBlobs...)
	target := s.minBlobCount
	if need := len(all) + s.fakePoolSize; need > target {
		target = need
	}
	for len(all) < target {
		fakeBlob, err := mintFake(rng, guard)
		if err != nil {
			return fmt.Errorf("codn: minting fake blob: %w", err)
		}
		all = append(all, fakeBlob)
	}

	tlog.Debug.Printf("codn: rewriting %s: %d kept, %d real, %d total", s.path, len(keep), len(newBlobs), len(all))
	return container.Rewrite(s.path, c.Salt, all)
}

// get implements spec.md §4.7's get protocol: resolve the fresh set,
// decode and concatenate its parts in order, verify the reassembled
// length against FULL_SIZE.
func (s *Store) get(name string) ([]byte, error) {
	c, err := container.Open(s.path)
	if err != nil {
		return nil, err
	}

	cnk := kdf.Derive(name, c.Salt)
	defer kdf.Wipe(cnk)
	if s.mp != nil {
		s.mp.LockMemory(cnk)
		defer s.mp.SecureZero(cnk)
	}

	res := namegroup.Resolve(cnk, c.Blobs)
	if !res.HasFresh {
		return nil, common.ErrNotFound
	}

	var fullSize uint32
	out := make([]byte, 0)
	for i, idx := range res.FreshIndices {
		br := res.Blobs[idx]
		raw, err := br.Decoder.ReadData()
		if err != nil {
			return nil, fmt.Errorf("codn: reading part %d: %w", i, err)
		}
		fullSize = br.Header.FullSize
		body := raw
		if br.Header.FormatVersion >= blob.Version2 && br.Header.CodecID != blob.CodecNone {
			body, err = bodycodec.Decompress(br.Header.CodecID, raw, common.MaxPartContentSize)
			if err != nil {
				return nil, fmt.Errorf("codn: decompressing part %d: %w", i, err)
			}
		}
		out = append(out, body...)
	}

	if uint32(len(out)) != fullSize {
		return nil, fmt.Errorf("%w: reassembled %d bytes, header declares %d", common.ErrChecksumMismatch, len(out), fullSize)
	}
	return out, nil
}

// encodePart compresses chunk under the Store's configured codec (falling
// back to an uncompressed Version1 blob whenever compression does not
// actually shrink it), then encodes it as one blob, retrying with a fresh
// nonce if the NonceGuard reports a collision against this rewrite's batch.
func (s *Store) encodePart(cnk []byte, dataVer int64, fullSize uint32, partIdx, partsLen int, chunk []byte, rng *cryptocore.RandPool, guard *container.NonceGuard) ([]byte, error) {
	body := chunk
	formatVersion := uint8(blob.Version1)
	codecID := blob.CodecID(blob.CodecNone)

	if s.codec != blob.CodecNone {
		if compressed, err := bodycodec.Compress(s.codec, chunk); err == nil && len(compressed) < len(chunk) {
			body = compressed
			codecID = s.codec
			formatVersion = blob.Version2
		}
	}

	params := blob.EncodeParams{
		CNK:           cnk,
		FormatVersion: formatVersion,
		DataVersion:   dataVer,
		FullSize:      fullSize,
		PartsLen:      partsLen,
		PartIdx:       partIdx,
		CodecID:       codecID,
	}

	for attempt := 0; attempt < maxNonceRetries; attempt++ {
		var buf bytes.Buffer
		if err := blob.Encrypt(&buf, params, body, common.ClusterSize, rng); err != nil {
			return nil, err
		}
		raw := buf.Bytes()
		collidedA := guard.Observe(raw[:imprint.FullLen])
		collidedB := guard.Observe(raw[imprint.FullLen : 2*imprint.FullLen])
		if collidedA || collidedB {
			continue
		}
		return raw, nil
	}
	return nil, fmt.Errorf("codn: no collision-free nonce after %d attempts", maxNonceRetries)
}

// mintFake builds one fake blob (spec §4.4.4) under a throwaway random
// key. Fake blobs don't need a codename behind them -- their key only has
// to make the blob's imprint classify as foreign to every real codename a
// caller might try, which a random 32-byte key does exactly as well as an
// Argon2id-derived one, at none of the cost.
func mintFake(rng *cryptocore.RandPool, guard *container.NonceGuard) ([]byte, error) {
	for attempt := 0; attempt < maxNonceRetries; attempt++ {
		key, err := rng.Read(common.CodenameKeySize)
		if err != nil {
			return nil, fmt.Errorf("codn: sampling fake key: %w", err)
		}
		fakeBlob, err := blob.CreateFake(key, common.ClusterSize, rng)
		if err != nil {
			return nil, err
		}
		if guard.Observe(fakeBlob[:imprint.FullLen]) {
			continue
		}
		return fakeBlob, nil
	}
	return nil, fmt.Errorf("codn: no collision-free fake blob after %d attempts", maxNonceRetries)
}

// IsNotFound reports whether err is (or wraps) the error Get returns for a
// codename that resolves to an empty fresh set.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// splitPayload divides payload into chunks of at most
// common.MaxPartContentSize bytes. An empty payload still yields exactly
// one (empty) chunk, so every entry has at least one real blob.
func splitPayload(payload []byte) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	parts := make([][]byte, 0, (len(payload)/common.MaxPartContentSize)+1)
	for off := 0; off < len(payload); off += common.MaxPartContentSize {
		end := off + common.MaxPartContentSize
		if end > len(payload) {
			end = len(payload)
		}
		parts = append(parts, payload[off:end])
	}
	return parts
}
