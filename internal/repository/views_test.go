package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
)

func TestViewsRepositoryListIncludesSeedRows(t *testing.T) {
	db := newTestDB(t)
	views := NewViewsRepository(db.Conn(), testLogger())

	all, err := views.List()
	require.NoError(t, err)

	require.Len(t, all, 2)
	assert.Equal(t, domain.SubTypeAsset, all[0].ViewType)
	assert.True(t, all[0].IsDefault)
}

func TestViewsRepositoryAddAndRemoveSubscription(t *testing.T) {
	db := newTestDB(t)
	views := NewViewsRepository(db.Conn(), testLogger())
	subs := NewSubscriptionsRepository(db.Conn(), testLogger())

	subID := seedSubscription(t, subs, "BTCUSDT", "binance")

	require.NoError(t, views.AddSubscription(1, subID))
	require.NoError(t, views.AddSubscription(1, subID)) // idempotent

	ids, err := views.SubscriptionIDs(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{subID}, ids)

	require.NoError(t, views.RemoveSubscription(1, subID))
	ids, err = views.SubscriptionIDs(1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
