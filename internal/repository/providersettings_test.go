package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
)

func TestProviderSettingsRepositoryGetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewProviderSettingsRepository(db.Conn(), testLogger())

	got, err := repo.Get("binance")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProviderSettingsRepositoryUpsertInsertsThenUpdates(t *testing.T) {
	db := newTestDB(t)
	repo := NewProviderSettingsRepository(db.Conn(), testLogger())

	require.NoError(t, repo.Upsert(domain.ProviderSettings{ProviderID: "binance", APIKey: "k1"}))

	got, err := repo.Get("binance")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "k1", got.APIKey)
	assert.True(t, got.HasCredentials())

	require.NoError(t, repo.Upsert(domain.ProviderSettings{ProviderID: "binance", APIKey: "k2"}))
	got, err = repo.Get("binance")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.APIKey)
}

func TestProviderSettingsRepositoryList(t *testing.T) {
	db := newTestDB(t)
	repo := NewProviderSettingsRepository(db.Conn(), testLogger())

	require.NoError(t, repo.Upsert(domain.ProviderSettings{ProviderID: "binance"}))
	require.NoError(t, repo.Upsert(domain.ProviderSettings{ProviderID: "kraken"}))

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProviderSettingsHasCredentialsFalseWithoutKey(t *testing.T) {
	s := domain.ProviderSettings{ProviderID: "coingecko"}
	assert.False(t, s.HasCredentials())
}
