package codn

import (
	"fmt"

	"github.com/rtmigo/codn/internal/blob"
	"github.com/rtmigo/codn/internal/options"
)

// Option configures a Store at Open time. Options are applied in order;
// the first one that returns an error stops the chain (internal/options.Apply).
type Option = options.Option[*Store]

// WithMinBlobCount sets the minimum number of blob slots a rewrite pads
// the container to, using fake blobs under random keys, so the blob
// count stops correlating with the number of real entries (spec §4.6's
// fake-blob padding policy). The default is DefaultMinBlobCount.
func WithMinBlobCount(n int) Option {
	return options.New(func(s *Store) error {
		if n < 0 {
			return fmt.Errorf("codn: min blob count must be >= 0, got %d", n)
		}
		s.minBlobCount = n
		return nil
	})
}

// WithFakePoolSize sets the number of fresh fake blobs every rewrite mints
// on top of the kept and newly written blobs (each under its own random
// key), before WithMinBlobCount's floor is applied. Zero mints none beyond
// that floor. The default is DefaultFakePoolSize.
func WithFakePoolSize(n int) Option {
	return options.New(func(s *Store) error {
		if n < 0 {
			return fmt.Errorf("codn: fake pool size must be >= 0, got %d", n)
		}
		s.fakePoolSize = n
		return nil
	})
}

// WithCodec selects the format-version-2 body codec (SPEC_FULL.md §3) new
// writes use. The default, CodecNone, writes plain format-version-1 blobs.
// Existing blobs under any codec are always readable regardless of this
// setting.
func WithCodec(id blob.CodecID) Option {
	return options.New(func(s *Store) error {
		if id != blob.CodecNone && id != blob.CodecZstd && id != blob.CodecLZ4 {
			return fmt.Errorf("codn: unknown codec id %d", id)
		}
		s.codec = id
		return nil
	})
}

// WithoutProcessHardening disables the best-effort core-dump/mlock
// hardening Open otherwise performs. Tests that run many Stores in one
// process, or environments where PR_SET_DUMPABLE/mlock are unavailable or
// undesirable, can use this to skip it explicitly rather than relying on
// the hardening calls' silent best-effort failure.
func WithoutProcessHardening() Option {
	return options.NoError(func(s *Store) {
		s.hardenProcess = false
	})
}
