package codn

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtmigo/codn/internal/blob"
	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/imprint"
)

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.codn")
	// Process hardening touches real OS syscalls (PR_SET_DUMPABLE,
	// RLIMIT_CORE, mlock); tests disable it so they don't depend on the
	// privileges of whatever environment runs them.
	allOpts := append([]Option{WithoutProcessHardening()}, opts...)
	s, err := Open(path, allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

// Scenario 1 (spec.md §8): set then get round-trips a short value.
func TestSetGetRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetText("hello", "world"))
	got, err := s.GetText("hello")
	require.NoError(t, err)
	assert.Equal(t, "world", got)
}

// Scenario 2: two distinct codenames in the same container resolve
// independently.
func TestTwoCodenamesAreIndependent(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetText("a", "1"))
	require.NoError(t, s.SetText("b", "2"))

	got, err := s.GetText("a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = s.GetText("b")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

// Scenario 3: a payload spanning multiple parts reassembles exactly, with
// the right part count.
func TestLargePayloadSplitsAndReassembles(t *testing.T) {
	s, _ := openTestStore(t)
	payload := bytes.Repeat([]byte{0x41}, 3*common.MaxPartContentSize+7)
	require.NoError(t, s.SetText("big", string(payload)))

	got, err := s.GetText("big")
	require.NoError(t, err)
	assert.Equal(t, payload, []byte(got))
}

// Scenario 4: overwriting a codename advances its version and returns the
// newest value.
func TestOverwriteReturnsNewestValue(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetText("x", "old"))
	require.NoError(t, s.SetText("x", "new"))

	got, err := s.GetText("x")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

// Scenario 6: a codename that was never written resolves to NotFound.
func TestNeverWrittenReturnsNotFound(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.GetText("never-written")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// Scenario 5: tampering with a real blob is caught rather than silently
// returning garbage. The Store is opened with no padding so the first
// (and only) blob slot right after the salt region is known to be the
// real one; flipping the first byte of its cipher nonce reliably
// scrambles the whole decrypted header/body (the chosen offset doesn't
// depend on the random intro-padding length the way a deeper offset would).
func TestTamperedBodyIsDetected(t *testing.T) {
	s, path := openTestStore(t, WithMinBlobCount(0), WithFakePoolSize(0))
	require.NoError(t, s.SetText("hello", "world"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	nonceOffset := common.KeySaltSize + 2*imprint.FullLen
	raw[nonceOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = s.GetText("hello")
	assert.Error(t, err)
}

func TestEmptyPayloadRoundTrips(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetText("empty", ""))
	got, err := s.GetText("empty")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSetFileGetFileRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "in.bin")
	dst := filepath.Join(dir, "out.bin")
	content := []byte{0, 1, 2, 3, 250, 251, 252}
	require.NoError(t, os.WriteFile(src, content, 0o600))

	require.NoError(t, s.SetFile("file-entry", src))
	require.NoError(t, s.GetFile("file-entry", dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMinBlobCountIsEnforced(t *testing.T) {
	s, path := openTestStore(t, WithMinBlobCount(32), WithFakePoolSize(1))
	require.NoError(t, s.SetText("a", "1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	blobRegion := info.Size() - int64(common.KeySaltSize)
	count := blobRegion / int64(common.ClusterSize)
	assert.GreaterOrEqual(t, count, int64(32))
}

func TestContainerGrowsAcrossSuccessiveWrites(t *testing.T) {
	s, path := openTestStore(t, WithMinBlobCount(0), WithFakePoolSize(0))
	require.NoError(t, s.SetText("a", "1"))
	info1, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.SetText("b", "2"))
	info2, err := os.Stat(path)
	require.NoError(t, err)

	assert.Greater(t, info2.Size(), info1.Size())
}

func TestWithCodecZstdRoundTrip(t *testing.T) {
	s, _ := openTestStore(t, WithCodec(blob.CodecZstd))
	text := ""
	for i := 0; i < 2000; i++ {
		text += "compress me please "
	}
	require.NoError(t, s.SetText("doc", text))
	got, err := s.GetText("doc")
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestWithCodecLZ4RoundTrip(t *testing.T) {
	s, _ := openTestStore(t, WithCodec(blob.CodecLZ4))
	text := ""
	for i := 0; i < 2000; i++ {
		text += "compress me please "
	}
	require.NoError(t, s.SetText("doc", text))
	got, err := s.GetText("doc")
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestInvalidOptionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.codn")
	_, err := Open(path, WithMinBlobCount(-1))
	assert.Error(t, err)
}

func TestUnknownCodecOptionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.codn")
	_, err := Open(path, WithCodec(99))
	assert.Error(t, err)
}

func TestErrorsAreWrappedSentinels(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.GetText("nope")
	require.True(t, errors.Is(err, common.ErrNotFound))
}
