package polling

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/database"
	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/history"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
	"github.com/haloboard/marketfeed/internal/snapshot"
	"github.com/haloboard/marketfeed/internal/visibility"
)

func newTestManager(t *testing.T) (*Manager, *repository.SubscriptionsRepository, *repository.ProviderSettingsRepository) {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	subs := repository.NewSubscriptionsRepository(db.Conn(), zerolog.Nop())
	providerCfg := repository.NewProviderSettingsRepository(db.Conn(), zerolog.Nop())
	priceHistory := repository.NewPriceHistoryRepository(db.Conn(), zerolog.Nop())
	recorder := history.NewRecorder(subs, providerCfg, priceHistory, zerolog.Nop())

	factory := providers.NewFactory(providers.NewRegistry(), zerolog.Nop())
	cache := snapshot.New()
	vis := visibility.New()
	bus := events.NewBus()

	m := New(cache, vis, factory, subs, providerCfg, recorder, bus, zerolog.Nop())
	return m, subs, providerCfg
}

func TestBuildGenerationGroupsByProvider(t *testing.T) {
	m, subs, _ := newTestManager(t)

	_, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)
	_, err = subs.Create(domain.Subscription{Symbol: "ETHUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)
	_, err = subs.Create(domain.Subscription{Symbol: "XBTUSD", SelectedProviderID: "kraken"})
	require.NoError(t, err)

	groups, ok := m.buildGeneration(context.Background())
	require.True(t, ok)
	require.Len(t, groups, 2)

	byProvider := make(map[string]domain.PollingGroup, len(groups))
	for _, g := range groups {
		byProvider[g.ProviderID] = g
	}
	assert.Len(t, byProvider["binance"].Symbols, 2)
	assert.Len(t, byProvider["kraken"].Symbols, 1)
}

func TestBuildGenerationSkipsUnconstructableProvider(t *testing.T) {
	m, subs, _ := newTestManager(t)

	// coinmarketcap requires an api key; with none configured, Factory.Create
	// fails and the group must be dropped rather than surfacing an error.
	_, err := subs.Create(domain.Subscription{Symbol: "BTC", SelectedProviderID: "coinmarketcap"})
	require.NoError(t, err)

	groups, ok := m.buildGeneration(context.Background())
	require.True(t, ok)
	assert.Empty(t, groups)
}

func TestBuildGenerationFiltersByVisibility(t *testing.T) {
	m, subs, _ := newTestManager(t)

	visibleID, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)
	_, err = subs.Create(domain.Subscription{Symbol: "ETHUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)

	m.SetVisible("window-1", []int64{visibleID})

	groups, ok := m.buildGeneration(context.Background())
	require.True(t, ok)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"BTCUSDT"}, groups[0].Symbols)
}

func TestBuildGenerationVisibleSetMatchingNoSubscriptionYieldsNoGroups(t *testing.T) {
	m, subs, _ := newTestManager(t)
	_, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)

	m.SetVisible("window-1", []int64{999}) // a scope with no matching subscription

	groups, ok := m.buildGeneration(context.Background())
	require.True(t, ok)
	assert.Empty(t, groups)
}

// TestRunPrunesCacheEvenWithNoGroups guards against a regression where
// PruneToGroups was only called on the non-empty-groups branch of run's
// generation loop: a generation with zero groups (no subscriptions left)
// must still drop whatever the previous generation left in the cache
// within that same iteration. No subscriptions exist here, so buildGeneration
// always returns an empty group set and Start never spawns a runWorker
// goroutine (no real network calls happen).
func TestRunPrunesCacheEvenWithNoGroups(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.cache.PutBatch("binance", []domain.AssetData{
		domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(50000)),
	})
	require.Equal(t, 1, m.cache.Size())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return m.cache.Size() == 0
	}, 2*time.Second, 10*time.Millisecond, "cache should be pruned to empty even when the generation has no groups")
}

func TestBuildGenerationUnattendedIgnoresVisibility(t *testing.T) {
	m, subs, _ := newTestManager(t)
	_, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
	require.NoError(t, err)

	m.SetVisible("window-1", []int64{999}) // would otherwise filter out every subscription
	m.SetUnattended(true)

	groups, ok := m.buildGeneration(context.Background())
	require.True(t, ok)
	require.Len(t, groups, 1)
}

func TestResolveIntervalPrefersOverrideThenRegistryDefault(t *testing.T) {
	m, _, _ := newTestManager(t)

	override := int64(9999)
	interval := m.resolveInterval("binance", domain.ProviderSettings{RefreshInterval: &override})
	assert.Equal(t, override, interval)

	interval = m.resolveInterval("coingecko", domain.ProviderSettings{})
	assert.Equal(t, int64(60000), interval)

	interval = m.resolveInterval("coingecko", domain.ProviderSettings{APIKey: "k"})
	assert.Equal(t, int64(20000), interval)
}

func TestResolveIntervalUnknownProviderFallsBack(t *testing.T) {
	m, _, _ := newTestManager(t)
	interval := m.resolveInterval("does-not-exist", domain.ProviderSettings{})
	assert.Equal(t, int64(30000), interval)
}

func TestSetVisibleBumpsReloadOnlyOnChange(t *testing.T) {
	m, _, _ := newTestManager(t)

	m.SetVisible("window-1", []int64{1, 2})
	select {
	case <-m.reload:
	default:
		t.Fatal("expected reload to be signaled on first Set")
	}

	m.SetVisible("window-1", []int64{2, 1}) // same union, no change
	select {
	case <-m.reload:
		t.Fatal("reload should not be signaled when the effective union is unchanged")
	default:
	}
}

func TestSetUnattendedBumpsReloadOnlyOnChange(t *testing.T) {
	m, _, _ := newTestManager(t)

	m.SetUnattended(true)
	select {
	case <-m.reload:
	default:
		t.Fatal("expected reload to be signaled on first flip")
	}

	m.SetUnattended(true) // no change
	select {
	case <-m.reload:
		t.Fatal("reload should not be signaled when unattended is already true")
	default:
	}
}

func TestIsUnattendedReflectsSetUnattended(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.False(t, m.IsUnattended())
	m.SetUnattended(true)
	assert.True(t, m.IsUnattended())
}

func TestReloadIsNonBlockingWhenAlreadyPending(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.Reload()
	m.Reload() // must not block even though the buffered channel already holds one
	assert.Len(t, m.reload, 1)
}
