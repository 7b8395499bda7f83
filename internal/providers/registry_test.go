package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetKnownProvider(t *testing.T) {
	r := NewRegistry()
	info, ok := r.Get("binance")
	require.True(t, ok)
	assert.Equal(t, "Binance", info.Name)
	assert.True(t, info.SupportsWebsocket)
}

func TestRegistryGetUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistryAllIncludesImplementedAndRegistryOnlyRows(t *testing.T) {
	r := NewRegistry()
	all := r.All()

	byID := make(map[string]bool, len(all))
	for _, info := range all {
		byID[info.ID] = true
	}
	assert.True(t, byID["binance"], "binance has a shipped adapter")
	assert.True(t, byID["kalshi"], "kalshi is registry-only but still listed")
}

func TestProviderInfoDefaultIntervalMS(t *testing.T) {
	info, ok := NewRegistry().Get("coingecko")
	require.True(t, ok)

	assert.Equal(t, int64(60000), info.DefaultIntervalMS(false))
	assert.Equal(t, int64(20000), info.DefaultIntervalMS(true))
}
