package providers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryCreateUnknownProviderFails(t *testing.T) {
	f := NewFactory(NewRegistry(), zerolog.Nop())
	_, ok := f.Create("does-not-exist", Credentials{})
	assert.False(t, ok)
}

func TestFactoryCreateRegistryOnlyProviderFails(t *testing.T) {
	// kalshi is a registry-only row with no shipped adapter.
	f := NewFactory(NewRegistry(), zerolog.Nop())
	_, ok := f.Create("kalshi", Credentials{})
	assert.False(t, ok)
}

func TestFactoryCreateRequiresAPIKeyWhenMandatory(t *testing.T) {
	f := NewFactory(NewRegistry(), zerolog.Nop())
	_, ok := f.Create("coinmarketcap", Credentials{})
	assert.False(t, ok)

	_, ok = f.Create("coinmarketcap", Credentials{APIKey: "test-key"})
	assert.True(t, ok)
}

func TestFactoryCreateMemoizesInstance(t *testing.T) {
	f := NewFactory(NewRegistry(), zerolog.Nop())

	first, ok := f.Create("binance", Credentials{})
	require.True(t, ok)

	second, ok := f.Create("binance", Credentials{})
	require.True(t, ok)

	assert.Same(t, first, second)
}

func TestFactoryEvictForcesRebuild(t *testing.T) {
	f := NewFactory(NewRegistry(), zerolog.Nop())

	first, ok := f.Create("binance", Credentials{})
	require.True(t, ok)

	f.Evict("binance")

	second, ok := f.Create("binance", Credentials{})
	require.True(t, ok)

	assert.NotSame(t, first, second)
}

func TestFactoryInfoAndAllInfo(t *testing.T) {
	f := NewFactory(NewRegistry(), zerolog.Nop())

	info, ok := f.Info("kraken")
	require.True(t, ok)
	assert.Equal(t, "Kraken", info.Name)

	assert.NotEmpty(t, f.AllInfo())
}
