package snapshot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
)

func TestKeyRoundTrip(t *testing.T) {
	key := Key("binance", "BTCUSDT")
	assert.Equal(t, "binance:BTCUSDT", key)

	providerID, symbol, ok := SplitKey(key)
	require.True(t, ok)
	assert.Equal(t, "binance", providerID)
	assert.Equal(t, "BTCUSDT", symbol)
}

func TestSplitKeyDEXSymbolWithColons(t *testing.T) {
	// a DEX effective symbol is "pool:from:to" — SplitKey must only split on
	// the first colon, the one separating the provider id.
	providerID, symbol, ok := SplitKey("raydium:poolAddr:fromAddr:toAddr")
	require.True(t, ok)
	assert.Equal(t, "raydium", providerID)
	assert.Equal(t, "poolAddr:fromAddr:toAddr", symbol)
}

func TestSplitKeyNoColon(t *testing.T) {
	_, _, ok := SplitKey("nocolonhere")
	assert.False(t, ok)
}

func TestCachePutBatchAndGet(t *testing.T) {
	c := New()
	asset := domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(50000))
	c.PutBatch("binance", []domain.AssetData{asset})

	got, ok := c.Get("binance", "BTCUSDT")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(50000)))

	_, ok = c.Get("binance", "ETHUSDT")
	assert.False(t, ok)
}

func TestCachePutBatchEmptyIsNoop(t *testing.T) {
	c := New()
	c.PutBatch("binance", nil)
	assert.Equal(t, 0, c.Size())
}

func TestCacheRecordTickAndTicks(t *testing.T) {
	c := New()
	c.RecordTick(domain.PollTick{ProviderID: "binance", FetchedAt: 1000, IntervalMS: 5000})
	c.RecordTick(domain.PollTick{ProviderID: "kraken", FetchedAt: 2000, IntervalMS: 5000})

	ticks := c.Ticks()
	require.Len(t, ticks, 2)
	assert.Equal(t, int64(1000), ticks["binance"].FetchedAt)

	active := c.ActiveProviders()
	assert.ElementsMatch(t, []string{"binance", "kraken"}, active)
}

func TestCacheAll(t *testing.T) {
	c := New()
	c.PutBatch("binance", []domain.AssetData{
		domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(1)),
		domain.NewAssetData("binance", "ETHUSDT", decimal.NewFromInt(2)),
	})

	entries := c.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "binance", e.ProviderID)
	}
}

func TestCachePruneToGroupsDropsOutOfScopeKeys(t *testing.T) {
	c := New()
	c.PutBatch("binance", []domain.AssetData{
		domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(1)),
		domain.NewAssetData("binance", "ETHUSDT", decimal.NewFromInt(2)),
	})
	c.PutBatch("kraken", []domain.AssetData{
		domain.NewAssetData("kraken", "XBTUSD", decimal.NewFromInt(3)),
	})
	c.RecordTick(domain.PollTick{ProviderID: "binance", FetchedAt: 1, IntervalMS: 1})
	c.RecordTick(domain.PollTick{ProviderID: "kraken", FetchedAt: 1, IntervalMS: 1})

	c.PruneToGroups(map[string]map[string]struct{}{
		"binance": {"BTCUSDT": struct{}{}},
	})

	_, ok := c.Get("binance", "BTCUSDT")
	assert.True(t, ok)
	_, ok = c.Get("binance", "ETHUSDT")
	assert.False(t, ok)
	_, ok = c.Get("kraken", "XBTUSD")
	assert.False(t, ok)

	ticks := c.Ticks()
	assert.Len(t, ticks, 1)
	_, stillTicking := ticks["kraken"]
	assert.False(t, stillTicking)
}

func TestCacheClear(t *testing.T) {
	c := New()
	c.PutBatch("binance", []domain.AssetData{domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(1))})
	c.RecordTick(domain.PollTick{ProviderID: "binance", FetchedAt: 1, IntervalMS: 1})

	c.Clear()

	assert.Equal(t, 0, c.Size())
	assert.Empty(t, c.Ticks())
}
