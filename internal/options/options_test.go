package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	MinBlobCount int
	FakePoolSize int
	Codec        uint8
}

func (c *testConfig) setMinBlobCount(n int) error {
	if n < 0 {
		return errors.New("min blob count cannot be negative")
	}
	c.MinBlobCount = n
	return nil
}

func TestNewAppliesAndPropagatesErrors(t *testing.T) {
	cfg := &testConfig{}

	require.NoError(t, New(func(c *testConfig) error { return c.setMinBlobCount(8) }).apply(cfg))
	require.Equal(t, 8, cfg.MinBlobCount)

	err := New(func(c *testConfig) error { return c.setMinBlobCount(-1) }).apply(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "negative")
}

func TestNoErrorOption(t *testing.T) {
	cfg := &testConfig{}
	opt := NoError(func(c *testConfig) { c.FakePoolSize = 16 })
	require.NoError(t, opt.apply(cfg))
	require.Equal(t, 16, cfg.FakePoolSize)
}

func TestApplyStopsAtFirstError(t *testing.T) {
	cfg := &testConfig{}
	opts := []Option[*testConfig]{
		New(func(c *testConfig) error { return c.setMinBlobCount(4) }),
		New(func(c *testConfig) error { return c.setMinBlobCount(-5) }),
		NoError(func(c *testConfig) { c.FakePoolSize = 99 }),
	}

	err := Apply(cfg, opts...)
	require.Error(t, err)
	require.Equal(t, 4, cfg.MinBlobCount)
	require.Equal(t, 0, cfg.FakePoolSize)
}

func TestApplyEmptyOptionsIsNoop(t *testing.T) {
	cfg := &testConfig{}
	require.NoError(t, Apply(cfg))
	require.Equal(t, testConfig{}, *cfg)
}

func TestApplyWithHelperConstructors(t *testing.T) {
	withMinBlobCount := func(n int) Option[*testConfig] {
		return New(func(c *testConfig) error { return c.setMinBlobCount(n) })
	}
	withCodec := func(id uint8) Option[*testConfig] {
		return NoError(func(c *testConfig) { c.Codec = id })
	}

	cfg := &testConfig{}
	require.NoError(t, Apply(cfg, withMinBlobCount(12), withCodec(1)))
	require.Equal(t, 12, cfg.MinBlobCount)
	require.Equal(t, uint8(1), cfg.Codec)
}
