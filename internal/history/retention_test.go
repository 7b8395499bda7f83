package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/repository"
)

func TestRetentionJobNewDefaultsNonPositiveDays(t *testing.T) {
	job := NewRetentionJob(nil, 0, testLogger())
	assert.Equal(t, DefaultRetentionDays, job.retentionDays)

	job = NewRetentionJob(nil, -5, testLogger())
	assert.Equal(t, DefaultRetentionDays, job.retentionDays)
}

func TestRetentionJobName(t *testing.T) {
	job := NewRetentionJob(nil, 0, testLogger())
	assert.Equal(t, "history_retention", job.Name())
}

func TestRetentionJobRunPurgesOldRows(t *testing.T) {
	db := newTestDB(t)
	subs := repository.NewSubscriptionsRepository(db.Conn(), testLogger())
	priceHistory := repository.NewPriceHistoryRepository(db.Conn(), testLogger())

	subID, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -100).Unix()
	recent := time.Now().Unix()
	_, err = priceHistory.Insert(domain.PriceHistory{SubscriptionID: subID, ProviderID: "binance", Price: decimal.NewFromInt(1), RecordedAt: old})
	require.NoError(t, err)
	_, err = priceHistory.Insert(domain.PriceHistory{SubscriptionID: subID, ProviderID: "binance", Price: decimal.NewFromInt(2), RecordedAt: recent})
	require.NoError(t, err)

	job := NewRetentionJob(priceHistory, DefaultRetentionDays, testLogger())
	require.NoError(t, job.Run())

	remaining, err := priceHistory.Query(repository.HistoryQuery{SubscriptionID: &subID})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent, remaining[0].RecordedAt)
}
