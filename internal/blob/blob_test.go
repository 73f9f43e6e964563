package blob

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/cryptocore"
)

func testCNK(fill byte) []byte {
	cnk := make([]byte, common.CodenameKeySize)
	for i := range cnk {
		cnk[i] = fill
	}
	return cnk
}

func TestEncryptDecodeRoundTrip(t *testing.T) {
	cnk := testCNK(0x42)
	rng := cryptocore.NewRandPool()
	body := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	err := Encrypt(&buf, EncodeParams{
		CNK:         cnk,
		DataVersion: 7,
		FullSize:    uint32(len(body)),
		PartsLen:    1,
		PartIdx:     0,
	}, body, common.ClusterSize, rng)
	require.NoError(t, err)
	assert.Equal(t, common.ClusterSize, buf.Len())

	d := NewDecoder(cnk, buf.Bytes())
	assert.True(t, d.BelongsToNamegroup())
	assert.True(t, d.ContainsData())

	h, err := d.Header()
	require.NoError(t, err)
	assert.Equal(t, uint8(Version1), h.FormatVersion)
	assert.Equal(t, int64(7), h.DataVersion)
	assert.Equal(t, uint32(len(body)), h.FullSize)
	assert.Equal(t, 1, h.PartsLen)
	assert.Equal(t, 0, h.PartIdx)
	assert.Equal(t, len(body), h.PartSize)

	got, err := d.ReadData()
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadDataTwiceFails(t *testing.T) {
	cnk := testCNK(0x1)
	rng := cryptocore.NewRandPool()
	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: 3, PartsLen: 1, PartIdx: 0,
	}, []byte("abc"), common.ClusterSize, rng))

	d := NewDecoder(cnk, buf.Bytes())
	_, err := d.ReadData()
	require.NoError(t, err)
	_, err = d.ReadData()
	assert.Error(t, err)
}

func TestHeaderPanicsBeforeTiersVerified(t *testing.T) {
	foreign := testCNK(0xAA)
	cnk := testCNK(0xBB)
	rng := cryptocore.NewRandPool()
	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: 1, PartsLen: 1, PartIdx: 0,
	}, []byte("x"), common.ClusterSize, rng))

	d := NewDecoder(foreign, buf.Bytes())
	assert.False(t, d.BelongsToNamegroup())
	assert.Panics(t, func() {
		_, _ = d.Header()
	})
}

func TestHeaderPanicsOnFakeBlob(t *testing.T) {
	cnk := testCNK(0xCC)
	rng := cryptocore.NewRandPool()
	fake, err := CreateFake(cnk, common.ClusterSize, rng)
	require.NoError(t, err)

	d := NewDecoder(cnk, fake)
	assert.True(t, d.BelongsToNamegroup())
	assert.False(t, d.ContainsData())
	assert.Panics(t, func() {
		_, _ = d.Header()
	})
}

func TestFakeBlobIsForeignToOtherCodenames(t *testing.T) {
	cnk := testCNK(0xDD)
	other := testCNK(0xEE)
	rng := cryptocore.NewRandPool()
	fake, err := CreateFake(cnk, common.ClusterSize, rng)
	require.NoError(t, err)

	d := NewDecoder(other, fake)
	assert.False(t, d.BelongsToNamegroup())
	assert.False(t, d.ContainsData())
}

func TestRandomBlobIsForeignToAnyCodename(t *testing.T) {
	cnk := testCNK(0x11)
	rng := cryptocore.NewRandPool()
	junk, err := rng.Read(common.ClusterSize)
	require.NoError(t, err)

	d := NewDecoder(cnk, junk)
	assert.False(t, d.BelongsToNamegroup())
}

func TestEncryptRejectsOversizeBody(t *testing.T) {
	cnk := testCNK(0x22)
	rng := cryptocore.NewRandPool()
	body := make([]byte, common.MaxPartContentSize+1)
	var buf bytes.Buffer
	err := Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: uint32(len(body)), PartsLen: 1, PartIdx: 0,
	}, body, common.ClusterSize, rng)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestEncryptRejectsBadPartIndex(t *testing.T) {
	cnk := testCNK(0x33)
	rng := cryptocore.NewRandPool()
	var buf bytes.Buffer
	err := Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: 1, PartsLen: 2, PartIdx: 2,
	}, []byte("x"), common.ClusterSize, rng)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestDecodeDetectsBodyTampering(t *testing.T) {
	cnk := testCNK(0x44)
	rng := cryptocore.NewRandPool()
	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: 5, PartsLen: 1, PartIdx: 0,
	}, []byte("hello"), common.ClusterSize, rng))

	raw := buf.Bytes()

	// Decode once to learn exactly where the body starts -- intro padding
	// is a random 1..64 bytes, so a fixed offset guessed from outside the
	// package would sometimes land in padding a stream cipher never lets
	// leak into neighboring bytes. Flip the body's first byte specifically.
	probe := NewDecoder(cnk, raw)
	_, err := probe.Header()
	require.NoError(t, err)
	raw[probe.bodyOff] ^= 0x01

	d := NewDecoder(cnk, raw)
	require.True(t, d.BelongsToNamegroup())
	require.True(t, d.ContainsData())
	_, err = d.ReadData()
	assert.Error(t, err)
}

func TestMultiPartHeaderFields(t *testing.T) {
	cnk := testCNK(0x55)
	rng := cryptocore.NewRandPool()
	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, EncodeParams{
		CNK: cnk, DataVersion: 3, FullSize: 900, PartsLen: 3, PartIdx: 1,
	}, []byte("middle part"), common.ClusterSize, rng))

	d := NewDecoder(cnk, buf.Bytes())
	h, err := d.Header()
	require.NoError(t, err)
	assert.Equal(t, 3, h.PartsLen)
	assert.Equal(t, 1, h.PartIdx)
	assert.Equal(t, uint32(900), h.FullSize)
}
