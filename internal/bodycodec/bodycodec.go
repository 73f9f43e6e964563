// Package bodycodec compresses and decompresses format-version-2 blob
// bodies (SPEC_FULL.md §3). CODEC_ID selects the algorithm; only Store
// calls into this package, when assembling or reassembling a version-2
// blob -- the blob codec itself treats a compressed body as an opaque
// byte string.
package bodycodec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/rtmigo/codn/internal/blob"
)

// Compress returns data encoded under id. CodecNone returns data unchanged.
func Compress(id blob.CodecID, data []byte) ([]byte, error) {
	switch id {
	case blob.CodecNone:
		return data, nil
	case blob.CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("bodycodec: creating zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case blob.CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		var c lz4.Compressor
		n, err := c.CompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("bodycodec: lz4 compress: %w", err)
		}
		if n == 0 && len(data) > 0 {
			// Incompressible input: lz4.CompressBlock reports n == 0 rather
			// than expanding it. This is returned as an error; the caller
			// (Store.encodePart) then stores the chunk raw under CodecNone.
			return nil, fmt.Errorf("bodycodec: lz4 block incompressible")
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("bodycodec: unknown codec id %d", id)
	}
}

// Decompress returns the original bytes of data, which was encoded under
// id. maxSize bounds how large the decompressed output is allowed to grow
// (the entry's total FULL_SIZE is always a safe bound, since no single
// part can decompress to more bytes than the whole entry).
func Decompress(id blob.CodecID, data []byte, maxSize int) ([]byte, error) {
	switch id {
	case blob.CodecNone:
		return data, nil
	case blob.CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("bodycodec: creating zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("bodycodec: zstd decompress: %w", err)
		}
		if len(out) > maxSize {
			return nil, fmt.Errorf("bodycodec: zstd output %d bytes exceeds bound %d", len(out), maxSize)
		}
		return out, nil
	case blob.CodecLZ4:
		return decompressLZ4Adaptive(data, maxSize)
	default:
		return nil, fmt.Errorf("bodycodec: unknown codec id %d", id)
	}
}

// decompressLZ4Adaptive grows its destination buffer on
// ErrInvalidSourceShortBuffer instead of requiring the caller to know the
// exact decompressed size up front, the same doubling strategy the pack's
// mebo compress package uses for LZ4.
func decompressLZ4Adaptive(data []byte, maxSize int) ([]byte, error) {
	bufSize := len(data) * 4
	if bufSize == 0 {
		bufSize = 64
	}
	if bufSize > maxSize {
		bufSize = maxSize
	}
	for bufSize <= maxSize {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				if bufSize > maxSize {
					bufSize = maxSize
				}
				continue
			}
			return nil, fmt.Errorf("bodycodec: lz4 decompress: %w", err)
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("bodycodec: lz4 output would exceed bound %d", maxSize)
}
