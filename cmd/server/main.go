package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/config"
	"github.com/haloboard/marketfeed/internal/database"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/history"
	"github.com/haloboard/marketfeed/internal/polling"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
	"github.com/haloboard/marketfeed/internal/scheduler"
	"github.com/haloboard/marketfeed/internal/server"
	"github.com/haloboard/marketfeed/internal/snapshot"
	"github.com/haloboard/marketfeed/internal/streaming"
	"github.com/haloboard/marketfeed/internal/visibility"
	"github.com/haloboard/marketfeed/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting marketfeed")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	appSettings := repository.NewAppSettingsRepository(db.Conn(), log)
	providerCfg := repository.NewProviderSettingsRepository(db.Conn(), log)
	subscriptions := repository.NewSubscriptionsRepository(db.Conn(), log)
	views := repository.NewViewsRepository(db.Conn(), log)
	priceHistory := repository.NewPriceHistoryRepository(db.Conn(), log)

	if err := cfg.UpdateFromSettings(appSettings); err != nil {
		log.Fatal().Err(err).Msg("failed to overlay app settings onto configuration")
	}

	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	registry := providers.NewRegistry()
	factory := providers.NewFactory(registry, log)

	bus := events.NewBus()
	cache := snapshot.New()
	vis := visibility.New()
	recorder := history.NewRecorder(subscriptions, providerCfg, priceHistory, log)

	manager := polling.New(cache, vis, factory, subscriptions, providerCfg, recorder, bus, log)
	supervisor := streaming.NewSupervisor(bus, log)

	sched := scheduler.New(log)
	retentionDays := history.DefaultRetentionDays
	sched.Start()
	defer sched.Stop()
	if err := sched.AddJob("0 0 3 * * *", history.NewRetentionJob(priceHistory, retentionDays, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register history retention job")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.Start(ctx)
	defer manager.Stop()

	startEligibleStreams(ctx, factory, providerCfg, subscriptions, supervisor, log)

	srv := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		Cache:         cache,
		Visibility:    vis,
		Factory:       factory,
		Manager:       manager,
		Supervisor:    supervisor,
		EventBus:      bus,
		Subscriptions: subscriptions,
		ProviderCfg:   providerCfg,
		Views:         views,
		PriceHistory:  priceHistory,
		AppSettings:   appSettings,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("marketfeed started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	supervisor.StopAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}

	log.Info().Msg("marketfeed stopped")
}

// startEligibleStreams launches a streaming worker for every distinct
// provider that both has at least one subscription and exposes a
// providers.Streamer, per spec.md §4.4 ("the manager starts one streaming
// task pair per provider that is both subscribed-to and stream-capable").
func startEligibleStreams(
	ctx context.Context,
	factory *providers.Factory,
	providerCfg *repository.ProviderSettingsRepository,
	subscriptions *repository.SubscriptionsRepository,
	supervisor *streaming.Supervisor,
	log zerolog.Logger,
) {
	subs, err := subscriptions.List()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list subscriptions for stream startup")
		return
	}

	bySymbols := make(map[string][]string)
	for _, sub := range subs {
		symbol := sub.EffectiveSymbol()
		bySymbols[sub.SelectedProviderID] = append(bySymbols[sub.SelectedProviderID], symbol)
	}

	for providerID, symbols := range bySymbols {
		creds := providers.Credentials{}
		if settings, err := providerCfg.Get(providerID); err == nil && settings != nil {
			creds = providers.Credentials{APIKey: settings.APIKey, APISecret: settings.APISecret, APIURL: settings.APIURL}
		}

		fetcher, ok := factory.Create(providerID, creds)
		if !ok {
			continue
		}
		streamer, ok := fetcher.(providers.Streamer)
		if !ok {
			continue
		}
		supervisor.Start(ctx, providerID, streamer, symbols)
	}
}
