// Package container implements the on-disk container file (spec §4.6): a
// salt region followed by N fixed-size blob slots, read entirely into
// memory on open, and replaced only by writing a temp sibling file,
// fsyncing it, and renaming it over the target -- so a process killed
// mid-rewrite never leaves a half-written container behind (spec P9).
package container

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/tlog"
)

// SaltRegionSize is the width in bytes of the container's salt prefix.
const SaltRegionSize = common.KeySaltSize

// Container is an in-memory view of one container file.
type Container struct {
	// Salt is the per-container salt every codename key is derived from.
	Salt []byte
	// Blobs are the container's blob slots, each exactly
	// common.ClusterSize bytes, sliced directly out of the file's bytes.
	Blobs [][]byte
}

// Open reads path into memory. A missing file is not an error: it returns
// a fresh Container with a newly generated salt and no blobs, matching
// spec §4.7's "old data_ver is 0 if none" for a codename's first write.
// Nothing is written to disk until Rewrite is called.
func Open(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		salt := make([]byte, SaltRegionSize)
		if _, genErr := rand.Read(salt); genErr != nil {
			return nil, fmt.Errorf("container: generating salt: %w", genErr)
		}
		return &Container{Salt: salt}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("container: reading %s: %w", path, err)
	}
	if len(data) < SaltRegionSize {
		return nil, fmt.Errorf("container: %s is shorter than the salt region", path)
	}

	salt := append([]byte(nil), data[:SaltRegionSize]...)
	rest := data[SaltRegionSize:]
	if len(rest)%common.ClusterSize != 0 {
		return nil, fmt.Errorf("container: %s size is not salt + a whole number of blobs", path)
	}
	n := len(rest) / common.ClusterSize
	blobs := make([][]byte, n)
	for i := 0; i < n; i++ {
		blobs[i] = rest[i*common.ClusterSize : (i+1)*common.ClusterSize]
	}
	return &Container{Salt: salt, Blobs: blobs}, nil
}

// Rewrite replaces path's content with salt followed by blobs: write to a
// temp sibling file, fsync, close, then atomically rename over path. Every
// blob must be exactly common.ClusterSize bytes and salt exactly
// SaltRegionSize bytes -- this is the *only* write path into a container
// file; there is no in-place update.
func Rewrite(path string, salt []byte, blobs [][]byte) error {
	if len(salt) != SaltRegionSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", common.ErrInvalidArgument, SaltRegionSize, len(salt))
	}
	for i, b := range blobs {
		if len(b) != common.ClusterSize {
			return fmt.Errorf("%w: blob %d has size %d, want %d", common.ErrInvalidArgument, i, len(b), common.ClusterSize)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("container: creating %s: %w", tmp, err)
	}
	defer os.Remove(tmp) // no-op once the rename below succeeds

	if err := writeAll(f, salt, blobs); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("container: fsync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("container: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("container: renaming %s to %s: %w", tmp, path, err)
	}
	tlog.Debug.Printf("container: rewrote %s with %d blobs", path, len(blobs))
	return nil
}

func writeAll(f *os.File, salt []byte, blobs [][]byte) error {
	if _, err := f.Write(salt); err != nil {
		return fmt.Errorf("container: writing salt: %w", err)
	}
	for i, b := range blobs {
		if _, err := f.Write(b); err != nil {
			return fmt.Errorf("container: writing blob %d: %w", i, err)
		}
	}
	return nil
}
