package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/database"
	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/history"
	"github.com/haloboard/marketfeed/internal/polling"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
	"github.com/haloboard/marketfeed/internal/snapshot"
	"github.com/haloboard/marketfeed/internal/streaming"
	"github.com/haloboard/marketfeed/internal/visibility"
)

// newTestServer builds exactly one Server for the whole test binary: the
// metrics collectors register themselves against the Prometheus default
// registerer on construction and panic on a second registration, so every
// case in this file shares the instance built here via subtests instead of
// calling New more than once.
func newTestServer(t *testing.T) (*Server, *repository.SubscriptionsRepository, *snapshot.Cache) {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	subs := repository.NewSubscriptionsRepository(db.Conn(), log)
	providerCfg := repository.NewProviderSettingsRepository(db.Conn(), log)
	views := repository.NewViewsRepository(db.Conn(), log)
	priceHistory := repository.NewPriceHistoryRepository(db.Conn(), log)
	appSettings := repository.NewAppSettingsRepository(db.Conn(), log)

	factory := providers.NewFactory(providers.NewRegistry(), log)
	cache := snapshot.New()
	vis := visibility.New()
	bus := events.NewBus()
	recorder := history.NewRecorder(subs, providerCfg, priceHistory, log)
	manager := polling.New(cache, vis, factory, subs, providerCfg, recorder, bus, log)
	supervisor := streaming.NewSupervisor(bus, log)

	srv := New(Config{
		Log:           log,
		Port:          0,
		DevMode:       true,
		Cache:         cache,
		Visibility:    vis,
		Factory:       factory,
		Manager:       manager,
		Supervisor:    supervisor,
		EventBus:      bus,
		Subscriptions: subs,
		ProviderCfg:   providerCfg,
		Views:         views,
		PriceHistory:  priceHistory,
		AppSettings:   appSettings,
	})
	return srv, subs, cache
}

func TestServerRoutes(t *testing.T) {
	srv, subs, cache := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("version", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, Version, body["version"])
	})

	t.Run("prices empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prices", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(0), body["count"])
	})

	t.Run("price lookup hit and miss", func(t *testing.T) {
		cache.PutBatch("binance", []domain.AssetData{domain.NewAssetData("binance", "BTCUSDT", decimal.NewFromInt(50000))})

		req := httptest.NewRequest(http.MethodGet, "/api/prices/binance/BTCUSDT", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/api/prices/binance/NOPE", nil)
		w = httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("history invalid query param", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?limit=not-a-number", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("history defaults limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		query := body["query"].(map[string]any)
		assert.Equal(t, float64(repository.DefaultHistoryLimit), query["limit"])
	})

	t.Run("subscriptions list", func(t *testing.T) {
		_, err := subs.Create(domain.Subscription{Symbol: "BTCUSDT", SelectedProviderID: "binance"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("views list includes seed rows", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/views", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(2), body["count"])
	})

	t.Run("providers catalog", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("provider test missing symbol", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/providers/binance/test", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider test unknown provider", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/providers/does-not-exist/test?symbol=X", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("set visibility", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"subscription_ids": []int64{1, 2}})
		req := httptest.NewRequest(http.MethodPost, "/api/visibility/window-1", bytes.NewReader(body))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("set visibility bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/visibility/window-1", bytes.NewReader([]byte("not json")))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("set unattended", func(t *testing.T) {
		body, _ := json.Marshal(map[string]bool{"unattended": true})
		req := httptest.NewRequest(http.MethodPost, "/api/unattended", bytes.NewReader(body))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("status reflects cache size and unattended toggle", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var status statusResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
		assert.Equal(t, cache.Size(), status.CacheSize)
		assert.True(t, status.UnattendedMode, "status should reflect the unattended flag set by the prior subtest, not an unwritten settings row")
	})
}
