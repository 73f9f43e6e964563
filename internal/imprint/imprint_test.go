package imprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	cnk := []byte("0123456789abcdef0123456789abcdef")[:32]
	imp, err := Generate(cnk)
	require.NoError(t, err)
	assert.Len(t, imp, FullLen)
	assert.True(t, Verify(cnk, imp))
}

func TestVerifyFailsWithWrongKey(t *testing.T) {
	cnk := make([]byte, 32)
	other := make([]byte, 32)
	other[0] = 1
	imp, err := Generate(cnk)
	require.NoError(t, err)
	assert.False(t, Verify(other, imp))
}

func TestVerifyFailsOnTamperedDigest(t *testing.T) {
	cnk := make([]byte, 32)
	imp, err := Generate(cnk)
	require.NoError(t, err)
	imp[len(imp)-1] ^= 0xFF
	assert.False(t, Verify(cnk, imp))
}

func TestVerifyRejectsWrongLength(t *testing.T) {
	cnk := make([]byte, 32)
	assert.False(t, Verify(cnk, make([]byte, FullLen-1)))
	assert.False(t, Verify(cnk, make([]byte, FullLen+1)))
}

func TestGenerateProducesFreshNonces(t *testing.T) {
	cnk := make([]byte, 32)
	a, err := Generate(cnk)
	require.NoError(t, err)
	b, err := Generate(cnk)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
