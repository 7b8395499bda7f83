// Package server exposes the read-only HTTP surface over the snapshot
// cache and recorded history (spec.md §4.5/§6), plus a Prometheus
// /metrics endpoint and a handful of admin endpoints SPEC_FULL.md adds on
// top of the distilled spec.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/polling"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
	"github.com/haloboard/marketfeed/internal/snapshot"
	"github.com/haloboard/marketfeed/internal/streaming"
	"github.com/haloboard/marketfeed/internal/visibility"
)

// Version is the product version string reported by /api/status and
// /api/version; stamped at build time in a real release, left as a plain
// constant here.
const Version = "0.1.0"

// Config holds everything the server needs to wire its routes.
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Cache      *snapshot.Cache
	Visibility *visibility.Registry
	Factory    *providers.Factory
	Manager    *polling.Manager
	Supervisor *streaming.Supervisor
	EventBus   *events.Bus

	Subscriptions *repository.SubscriptionsRepository
	ProviderCfg   *repository.ProviderSettingsRepository
	Views         *repository.ViewsRepository
	PriceHistory  *repository.PriceHistoryRepository
	AppSettings   *repository.AppSettingsRepository
}

// Server is the HTTP server over the running core.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	cache      *snapshot.Cache
	visibility *visibility.Registry
	factory    *providers.Factory
	manager    *polling.Manager
	supervisor *streaming.Supervisor
	eventBus   *events.Bus

	subscriptions *repository.SubscriptionsRepository
	providerCfg   *repository.ProviderSettingsRepository
	views         *repository.ViewsRepository
	priceHistory  *repository.PriceHistoryRepository
	appSettings   *repository.AppSettingsRepository

	metrics *metrics
}

// New builds a Server and registers its routes; it does not start
// listening until Start is called.
func New(cfg Config) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		cache:         cfg.Cache,
		visibility:    cfg.Visibility,
		factory:       cfg.Factory,
		manager:       cfg.Manager,
		supervisor:    cfg.Supervisor,
		eventBus:      cfg.EventBus,
		subscriptions: cfg.Subscriptions,
		providerCfg:   cfg.ProviderCfg,
		views:         cfg.Views,
		priceHistory:  cfg.PriceHistory,
		appSettings:   cfg.AppSettings,
	}

	s.metrics = newMetrics(prometheus.DefaultRegisterer, s.cache.Size)
	s.subscribeMetrics()

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// subscribeMetrics wires the Prometheus counters to the event bus so they
// update as a byproduct of the normal publish path, with no extra calls
// required from the polling manager or streaming workers.
func (s *Server) subscribeMetrics() {
	s.eventBus.Subscribe(events.PollTick, func(ev *events.Event) {
		data, ok := ev.Data.(events.PollTickData)
		if !ok {
			return
		}
		s.metrics.pollTicks.WithLabelValues(data.Tick.ProviderID).Inc()
	})
	s.eventBus.Subscribe(events.PriceError, func(ev *events.Event) {
		data, ok := ev.Data.(events.PriceErrorData)
		if !ok {
			return
		}
		seen := make(map[string]struct{}, len(data.Errors))
		for key := range data.Errors {
			providerID, _, ok := snapshot.SplitKey(key)
			if !ok {
				continue
			}
			if _, already := seen[providerID]; already {
				continue
			}
			seen[providerID] = struct{}{}
			s.metrics.pollErrors.WithLabelValues(providerID).Inc()
		}
	})
	s.eventBus.Subscribe(events.WsTickerUpdate, func(ev *events.Event) {
		data, ok := ev.Data.(events.WsTickerUpdateData)
		if !ok {
			return
		}
		s.metrics.wsUpdates.WithLabelValues(data.Update.ProviderID).Inc()
	})
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/status", s.handleStatus)

		r.Get("/prices", s.handlePrices)
		r.Get("/prices/{provider}/{symbol}", s.handlePrice)

		r.Get("/history", s.handleHistory)

		r.Get("/subscriptions", s.handleSubscriptions)
		r.Get("/views", s.handleViews)

		r.Get("/providers", s.handleProviders)
		r.Post("/providers/{id}/test", s.handleProviderTest)

		r.Post("/visibility/{scope}", s.handleSetVisibility)
		r.Post("/unattended", s.handleSetUnattended)

		r.Get("/events/stream", s.handleEventsStream)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// Start begins listening. It blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.server.Shutdown(ctx)
}
