package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
)

func seedSubscription(t *testing.T, subs *SubscriptionsRepository, symbol, providerID string) int64 {
	t.Helper()
	id, err := subs.Create(domain.Subscription{Symbol: symbol, SelectedProviderID: providerID})
	require.NoError(t, err)
	return id
}

func TestPriceHistoryRepositoryInsertAndLastRecordedAt(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subID := seedSubscription(t, subs, "BTCUSDT", "binance")

	last, err := history.LastRecordedAt(subID)
	require.NoError(t, err)
	assert.Zero(t, last)

	_, err = history.Insert(domain.PriceHistory{
		SubscriptionID: subID,
		ProviderID:     "binance",
		Price:          decimal.NewFromInt(50000),
		RecordedAt:     1700000000,
	})
	require.NoError(t, err)

	last, err = history.LastRecordedAt(subID)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), last)
}

func TestPriceHistoryRepositoryQueryFiltersBySubscription(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subA := seedSubscription(t, subs, "BTCUSDT", "binance")
	subB := seedSubscription(t, subs, "ETHUSDT", "binance")

	_, err := history.Insert(domain.PriceHistory{SubscriptionID: subA, ProviderID: "binance", Price: decimal.NewFromInt(1), RecordedAt: 100})
	require.NoError(t, err)
	_, err = history.Insert(domain.PriceHistory{SubscriptionID: subB, ProviderID: "binance", Price: decimal.NewFromInt(2), RecordedAt: 200})
	require.NoError(t, err)

	rows, err := history.Query(HistoryQuery{SubscriptionID: &subA})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, subA, rows[0].SubscriptionID)
}

func TestPriceHistoryRepositoryQueryFiltersBySymbolJoinsSubscriptions(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subA := seedSubscription(t, subs, "BTCUSDT", "binance")
	subB := seedSubscription(t, subs, "ETHUSDT", "binance")

	_, err := history.Insert(domain.PriceHistory{SubscriptionID: subA, ProviderID: "binance", Price: decimal.NewFromInt(1), RecordedAt: 100})
	require.NoError(t, err)
	_, err = history.Insert(domain.PriceHistory{SubscriptionID: subB, ProviderID: "binance", Price: decimal.NewFromInt(2), RecordedAt: 200})
	require.NoError(t, err)

	rows, err := history.Query(HistoryQuery{Symbol: "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, subB, rows[0].SubscriptionID)
}

func TestPriceHistoryRepositoryQueryOrdersDescendingAndDefaultsLimit(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subID := seedSubscription(t, subs, "BTCUSDT", "binance")
	for i := int64(0); i < 3; i++ {
		_, err := history.Insert(domain.PriceHistory{
			SubscriptionID: subID,
			ProviderID:     "binance",
			Price:          decimal.NewFromInt(i),
			RecordedAt:     100 + i,
		})
		require.NoError(t, err)
	}

	rows, err := history.Query(HistoryQuery{SubscriptionID: &subID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(102), rows[0].RecordedAt)
	assert.Equal(t, int64(100), rows[2].RecordedAt)
}

func TestPriceHistoryRepositoryQueryRespectsLimit(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subID := seedSubscription(t, subs, "BTCUSDT", "binance")
	for i := int64(0); i < 5; i++ {
		_, err := history.Insert(domain.PriceHistory{
			SubscriptionID: subID,
			ProviderID:     "binance",
			Price:          decimal.NewFromInt(i),
			RecordedAt:     100 + i,
		})
		require.NoError(t, err)
	}

	rows, err := history.Query(HistoryQuery{SubscriptionID: &subID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPriceHistoryRepositoryPurgeOlderThan(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())
	history := NewPriceHistoryRepository(db.Conn(), testLogger())

	subID := seedSubscription(t, subs, "BTCUSDT", "binance")
	_, err := history.Insert(domain.PriceHistory{SubscriptionID: subID, ProviderID: "binance", Price: decimal.NewFromInt(1), RecordedAt: 100})
	require.NoError(t, err)
	_, err = history.Insert(domain.PriceHistory{SubscriptionID: subID, ProviderID: "binance", Price: decimal.NewFromInt(2), RecordedAt: 9999})
	require.NoError(t, err)

	purged, err := history.PurgeOlderThan(200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	remaining, err := history.Query(HistoryQuery{SubscriptionID: &subID})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(9999), remaining[0].RecordedAt)
}
