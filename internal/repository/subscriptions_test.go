package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
)

func TestSubscriptionsRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubscriptionsRepository(db.Conn(), testLogger())

	id, err := repo.Create(domain.Subscription{
		SubType:            domain.SubTypeAsset,
		Symbol:             "BTCUSDT",
		DisplayName:        "Bitcoin",
		SelectedProviderID: "binance",
		AssetType:          "crypto",
		RecordEnabled:      true,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := repo.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.True(t, got.RecordEnabled)
}

func TestSubscriptionsRepositoryGetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubscriptionsRepository(db.Conn(), testLogger())

	got, err := repo.Get(999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubscriptionsRepositoryListEnabledForRecording(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubscriptionsRepository(db.Conn(), testLogger())

	_, err := repo.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance", RecordEnabled: true})
	require.NoError(t, err)
	_, err = repo.Create(domain.Subscription{Symbol: "ETHUSDT", SelectedProviderID: "binance", RecordEnabled: false})
	require.NoError(t, err)

	recording, err := repo.ListEnabledForRecording()
	require.NoError(t, err)
	require.Len(t, recording, 1)
	assert.Equal(t, "BTCUSDT", recording[0].Symbol)
}

func TestSubscriptionsRepositoryUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubscriptionsRepository(db.Conn(), testLogger())

	id, err := repo.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)

	sub, err := repo.Get(id)
	require.NoError(t, err)
	sub.DisplayName = "Bitcoin"
	sub.RecordEnabled = true
	require.NoError(t, repo.Update(*sub))

	updated, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", updated.DisplayName)
	assert.True(t, updated.RecordEnabled)

	require.NoError(t, repo.Delete(id))
	gone, err := repo.Get(id)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSubscriptionEffectiveSymbol(t *testing.T) {
	asset := domain.Subscription{SubType: domain.SubTypeAsset, Symbol: "BTCUSDT"}
	assert.Equal(t, "BTCUSDT", asset.EffectiveSymbol())

	dex := domain.Subscription{
		SubType:          domain.SubTypeDEX,
		PoolAddress:      "pool1",
		TokenFromAddress: "tokA",
		TokenToAddress:   "tokB",
	}
	assert.Equal(t, "pool1:tokA:tokB", dex.EffectiveSymbol())
}
