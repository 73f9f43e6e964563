// Package blob implements the on-disk layout of a single blob (spec §4.4):
// two imprints, a ChaCha20 nonce, an encrypted region holding intro
// padding, a 19/20-byte header, two CRC32 checksums and a body, followed by
// random tail padding out to the container's fixed blob size.
//
// Decoding is lazy and tiered, mirroring the teacher's DecryptBlock/
// DecryptedIO split in contentenc.go: each tier only touches the bytes it
// needs and memoizes its result, so scanning a container for blobs that
// don't belong to a codename costs O(len(ImprintA)) per blob, not
// O(ClusterSize).
package blob

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20"

	"github.com/rtmigo/codn/internal/codec"
	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/cryptocore"
	"github.com/rtmigo/codn/internal/imprint"
)

const (
	// FormatID is the two-byte magic at the start of every header.
	FormatID = "LS"
	// Version1 is the byte-exact format specified by spec §4.4.1.
	Version1 = 1
	// Version2 adds a CODEC_ID byte for optional body compression (§3 of
	// SPEC_FULL.md); it is additive and opt-in.
	Version2 = 2

	cipherNonceLen = 8
	// ietfNonceLen is the nonce length golang.org/x/crypto/chacha20 requires.
	// codn's on-wire nonce is only 8 bytes (matching the original
	// Bernstein-style ChaCha20 framing the format was designed around); it
	// is zero-extended on the left to the IETF 12-byte nonce x/crypto
	// expects, counter starting at 0. This framing is fixed by the format,
	// not configurable.
	ietfNonceLen = chacha20.NonceSize

	headerCRCLen = 4
	bodyCRCLen   = 4
)

// CodecID identifies how a format-version-2 body is compressed
// (SPEC_FULL.md §3). It is meaningless for Version1 blobs, which are
// always CodecNone.
type CodecID = uint8

const (
	// CodecNone means the body is the raw, uncompressed payload.
	CodecNone CodecID = 0
	// CodecZstd means the body was compressed with klauspost/compress/zstd.
	CodecZstd CodecID = 1
	// CodecLZ4 means the body was compressed with pierrec/lz4/v4.
	CodecLZ4 CodecID = 2
)

var introPadding = codec.NewIntroPadding64()

// Sentinel errors for the two "should never happen" conditions spec §7
// calls programming errors: accessing header/body data before the
// matching imprint tier has been verified. Resolver code (internal/namegroup)
// always checks tiers in order, so these only fire on a bug in this
// package or its caller.
var (
	ErrGroupImprintMismatch = fmt.Errorf("blob: header accessed before belongs-to-namegroup was verified")
	ErrItemImprintMismatch  = fmt.Errorf("blob: header accessed on a fake blob")
)

// Header is the parsed, decrypted header of a real-data blob.
type Header struct {
	FormatVersion uint8
	DataVersion   int64
	FullSize      uint32
	PartsLen      int
	PartIdx       int
	PartSize      int
	// CodecID is only meaningful when FormatVersion >= Version2; it is 0
	// (raw body) for Version1 blobs.
	CodecID uint8
}

func headerBytes(h Header) []byte {
	var buf bytes.Buffer
	buf.WriteString(FormatID)
	buf.Write(codec.Uint8ToBytes(h.FormatVersion))
	buf.Write(codec.Int64ToBytes(h.DataVersion))
	buf.Write(codec.Uint32ToBytes(h.FullSize))
	buf.Write(codec.Uint8ToBytes(uint8(h.PartsLen - 1)))
	buf.Write(codec.Uint8ToBytes(uint8(h.PartIdx)))
	buf.Write(codec.Uint24ToBytes(uint32(h.PartSize)))
	if h.FormatVersion >= Version2 {
		buf.Write(codec.Uint8ToBytes(h.CodecID))
	}
	return buf.Bytes()
}

// EncodeParams are the caller-supplied fields of Encrypt; PartSize is
// implied by len(body) and is not part of this struct.
type EncodeParams struct {
	CNK           []byte
	FormatVersion uint8 // 0 defaults to Version1
	DataVersion   int64
	FullSize      uint32
	PartsLen      int
	PartIdx       int
	CodecID       uint8
}

// Encrypt validates params and body, then writes one complete blob --
// imprints, nonce, encrypted header/body/CRCs and random tail padding --
// to w. The written blob is always exactly clusterSize bytes.
func Encrypt(w *bytes.Buffer, params EncodeParams, body []byte, clusterSize int, rng *cryptocore.RandPool) error {
	formatVersion := params.FormatVersion
	if formatVersion == 0 {
		formatVersion = Version1
	}
	if params.PartIdx < 0 || params.PartIdx > 0xFF {
		return fmt.Errorf("%w: part_idx=%d", common.ErrInvalidArgument, params.PartIdx)
	}
	if params.PartsLen < 1 || params.PartsLen > common.MaxParts {
		return fmt.Errorf("%w: parts_len=%d", common.ErrInvalidArgument, params.PartsLen)
	}
	if params.PartIdx >= params.PartsLen {
		return fmt.Errorf("%w: part_idx=%d >= parts_len=%d", common.ErrInvalidArgument, params.PartIdx, params.PartsLen)
	}
	if len(body) > common.MaxPartContentSize {
		return fmt.Errorf("%w: part_size=%d exceeds max %d", common.ErrInvalidArgument, len(body), common.MaxPartContentSize)
	}

	impA, err := imprint.Generate(params.CNK)
	if err != nil {
		return fmt.Errorf("blob: generating imprint A: %w", err)
	}
	impB, err := imprint.Generate(params.CNK)
	if err != nil {
		return fmt.Errorf("blob: generating imprint B: %w", err)
	}
	if subtle.ConstantTimeCompare(impA, impB) == 1 {
		// Astronomically unlikely (two independent 24-byte nonces
		// colliding); regenerate once rather than silently writing a blob
		// that fails its own freshness invariant (spec P5).
		impB, err = imprint.Generate(params.CNK)
		if err != nil {
			return fmt.Errorf("blob: regenerating imprint B: %w", err)
		}
	}

	nonce, err := rng.Read(cipherNonceLen)
	if err != nil {
		return fmt.Errorf("blob: sampling cipher nonce: %w", err)
	}
	stream, err := newCipher(params.CNK, nonce)
	if err != nil {
		return err
	}

	h := Header{
		FormatVersion: formatVersion,
		DataVersion:   params.DataVersion,
		FullSize:      params.FullSize,
		PartsLen:      params.PartsLen,
		PartIdx:       params.PartIdx,
		PartSize:      len(body),
		CodecID:       params.CodecID,
	}
	hb := headerBytes(h)
	hCRC := codec.CRC32Bytes(hb)
	bCRC := codec.CRC32Bytes(body)

	w.Write(impA)
	w.Write(impB)
	w.Write(nonce)

	intro, err := introPadding.GenBytes()
	if err != nil {
		return fmt.Errorf("blob: generating intro padding: %w", err)
	}

	// Every blob Encrypt produces is exactly clusterSize bytes, so the
	// plaintext and ciphertext scratch buffers are drawn from a pool keyed
	// by clusterSize rather than allocated fresh per call (the same shape
	// as the teacher's per-block-size pools in contentenc.ContentEnc).
	pool := clusterPool(clusterSize)
	plainBuf := pool.Get()
	defer pool.Put(plainBuf)
	plain := plainBuf[:0]
	plain = append(plain, intro...)
	plain = append(plain, hb...)
	plain = append(plain, hCRC...)
	plain = append(plain, body...)
	plain = append(plain, bCRC...)

	cipherBuf := pool.Get()
	defer pool.Put(cipherBuf)
	cipherText := cipherBuf[:len(plain)]
	stream.XORKeyStream(cipherText, plain)
	w.Write(cipherText)

	currentSize := w.Len()
	if currentSize > clusterSize {
		return fmt.Errorf("blob: encoded size %d exceeds cluster size %d", currentSize, clusterSize)
	}
	// Design notes (spec §9) call out that the source's "sample the tail
	// padding length uniformly in [current_size, CLUSTER_SIZE]" degenerates,
	// for a fixed-slot container like this one, to always padding out to
	// exactly CLUSTER_SIZE -- that's the one choice consistent with P4
	// (every blob is bitwise the same length, independent of body size).
	padLen := clusterSize - currentSize
	if padLen > 0 {
		pad, err := rng.Read(padLen)
		if err != nil {
			return fmt.Errorf("blob: generating tail padding: %w", err)
		}
		w.Write(pad)
	}
	return nil
}

func newCipher(key []byte, nonce8 []byte) (*chacha20.Cipher, error) {
	ietfNonce := make([]byte, ietfNonceLen)
	copy(ietfNonce[ietfNonceLen-cipherNonceLen:], nonce8)
	c, err := chacha20.NewUnauthenticatedCipher(key, ietfNonce)
	if err != nil {
		return nil, fmt.Errorf("blob: initializing stream cipher: %w", err)
	}
	return c, nil
}

// decodeState is the lazy decoder's forward-only state machine:
// Init -> ImpA -> ImpB -> Header -> Body.
type decodeState int

const (
	stateInit decodeState = iota
	stateImpA
	stateImpB
	stateHeader
	stateBody
)

// Decoder is a lazy, tiered blob decoder over an in-memory blob. Each tier
// is idempotent and memoized; calling ReadData twice is an error, matching
// spec §4.4.3's "the stream is consumed" rule.
type Decoder struct {
	cnk  []byte
	data []byte

	state decodeState

	belongsToNamegroup bool
	containsData       bool
	header             Header
	headerErr          error

	stream   *chacha20.Cipher
	bodyOff  int // offset into data where the (still-encrypted) body begins
	consumed bool
}

// NewDecoder wraps one blob's raw bytes for lazy, tiered inspection under cnk.
func NewDecoder(cnk []byte, data []byte) *Decoder {
	return &Decoder{cnk: cnk, data: data}
}

// BelongsToNamegroup reports whether ImprintA matches cnk (tier 1, spec
// §4.4.3). A blob that fails this check is foreign.
func (d *Decoder) BelongsToNamegroup() bool {
	if d.state >= stateImpA {
		return d.belongsToNamegroup
	}
	d.state = stateImpA
	if len(d.data) < imprint.FullLen {
		d.belongsToNamegroup = false
		return false
	}
	d.belongsToNamegroup = imprint.Verify(d.cnk, d.data[:imprint.FullLen])
	return d.belongsToNamegroup
}

// ContainsData reports whether ImprintB also matches cnk (tier 2). It
// requires BelongsToNamegroup; a blob where tier 1 holds but tier 2 fails
// is a fake.
func (d *Decoder) ContainsData() bool {
	if !d.BelongsToNamegroup() {
		return false
	}
	if d.state >= stateImpB {
		return d.containsData
	}
	d.state = stateImpB
	start := imprint.FullLen
	end := start + imprint.FullLen
	if len(d.data) < end {
		d.containsData = false
		return false
	}
	d.containsData = imprint.Verify(d.cnk, d.data[start:end])
	return d.containsData
}

// Header decrypts and validates the header (tier 3). It panics with
// ErrGroupImprintMismatch / ErrItemImprintMismatch if called before the
// matching imprint tier has passed -- per spec §7 these are programming
// errors, not conditions a caller recovers from.
func (d *Decoder) Header() (Header, error) {
	if !d.BelongsToNamegroup() {
		panic(ErrGroupImprintMismatch)
	}
	if !d.ContainsData() {
		panic(ErrItemImprintMismatch)
	}
	if d.state >= stateHeader {
		return d.header, d.headerErr
	}
	d.state = stateHeader
	d.header, d.headerErr = d.decodeHeader()
	return d.header, d.headerErr
}

func (d *Decoder) decodeHeader() (Header, error) {
	off := 2 * imprint.FullLen
	if len(d.data) < off+cipherNonceLen {
		return Header{}, common.ErrInsufficientData
	}
	nonce := d.data[off : off+cipherNonceLen]
	off += cipherNonceLen

	stream, err := newCipher(d.cnk, nonce)
	if err != nil {
		return Header{}, err
	}
	d.stream = stream

	cursor := off
	decrypt := func(n int) ([]byte, error) {
		if len(d.data) < cursor+n {
			return nil, common.ErrInsufficientData
		}
		out := make([]byte, n)
		stream.XORKeyStream(out, d.data[cursor:cursor+n])
		cursor += n
		return out, nil
	}

	introFirst, err := decrypt(1)
	if err != nil {
		return Header{}, err
	}
	introLen := introPadding.FirstByteToLen(introFirst[0])
	if introLen > 0 {
		if _, err := decrypt(introLen); err != nil {
			return Header{}, err
		}
	}

	formatID, err := decrypt(2)
	if err != nil {
		return Header{}, err
	}
	formatVersionB, err := decrypt(1)
	if err != nil {
		return Header{}, err
	}
	dataVersionB, err := decrypt(8)
	if err != nil {
		return Header{}, err
	}
	fullSizeB, err := decrypt(4)
	if err != nil {
		return Header{}, err
	}
	partsLenB, err := decrypt(1)
	if err != nil {
		return Header{}, err
	}
	partIdxB, err := decrypt(1)
	if err != nil {
		return Header{}, err
	}
	partSizeB, err := decrypt(3)
	if err != nil {
		return Header{}, err
	}

	formatVersion := formatVersionB[0]
	var codecID uint8
	codecB := []byte{}
	if formatVersion >= Version2 {
		codecB, err = decrypt(1)
		if err != nil {
			return Header{}, err
		}
		codecID = codecB[0]
	}

	crcB, err := decrypt(headerCRCLen)
	if err != nil {
		return Header{}, err
	}

	if string(formatID) != FormatID {
		return Header{}, fmt.Errorf("%w: bad format id", common.ErrChecksumMismatch)
	}
	if formatVersion != Version1 && formatVersion != Version2 {
		return Header{}, fmt.Errorf("%w: unsupported format version %d", common.ErrChecksumMismatch, formatVersion)
	}

	hb := make([]byte, 0, 19+len(codecB))
	hb = append(hb, formatID...)
	hb = append(hb, formatVersionB...)
	hb = append(hb, dataVersionB...)
	hb = append(hb, fullSizeB...)
	hb = append(hb, partsLenB...)
	hb = append(hb, partIdxB...)
	hb = append(hb, partSizeB...)
	hb = append(hb, codecB...)

	if codec.BytesToUint32(crcB) != codec.CRC32(hb) {
		return Header{}, fmt.Errorf("%w: header", common.ErrChecksumMismatch)
	}

	d.bodyOff = cursor

	return Header{
		FormatVersion: formatVersion,
		DataVersion:   codec.BytesToInt64(dataVersionB),
		FullSize:      codec.BytesToUint32(fullSizeB),
		PartsLen:      int(codec.BytesToUint8(partsLenB)) + 1,
		PartIdx:       int(codec.BytesToUint8(partIdxB)),
		PartSize:      int(codec.BytesToUint24(partSizeB)),
		CodecID:       codecID,
	}, nil
}

// ReadData decrypts and verifies the body (tier 4). It may be called only
// once per Decoder; a second call returns an error rather than silently
// re-decrypting already-consumed stream state.
func (d *Decoder) ReadData() ([]byte, error) {
	if _, err := d.Header(); err != nil {
		return nil, err
	}
	if d.consumed {
		return nil, fmt.Errorf("blob: read_data called more than once")
	}
	d.consumed = true
	d.state = stateBody

	n := d.header.PartSize
	if len(d.data) < d.bodyOff+n+bodyCRCLen {
		return nil, common.ErrInsufficientData
	}
	body := make([]byte, n)
	d.stream.XORKeyStream(body, d.data[d.bodyOff:d.bodyOff+n])

	crcCipher := d.data[d.bodyOff+n : d.bodyOff+n+bodyCRCLen]
	crcPlain := make([]byte, bodyCRCLen)
	d.stream.XORKeyStream(crcPlain, crcCipher)

	if codec.BytesToUint32(crcPlain) != codec.CRC32(body) {
		return nil, fmt.Errorf("%w: body", common.ErrChecksumMismatch)
	}
	return body, nil
}

// CreateFake builds a fake blob under cnk: one valid imprint followed by
// clusterSize-imprint.FullLen random bytes (spec §4.4.4). It passes
// BelongsToNamegroup and fails ContainsData.
func CreateFake(cnk []byte, clusterSize int, rng *cryptocore.RandPool) ([]byte, error) {
	imp, err := imprint.Generate(cnk)
	if err != nil {
		return nil, fmt.Errorf("blob: generating fake imprint: %w", err)
	}
	rest, err := rng.Read(clusterSize - len(imp))
	if err != nil {
		return nil, fmt.Errorf("blob: generating fake body: %w", err)
	}
	out := make([]byte, 0, clusterSize)
	out = append(out, imp...)
	out = append(out, rest...)
	return out, nil
}
