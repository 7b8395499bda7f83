// Package polling owns the subscription-driven scheduling loop: the
// manager reconciles subscriptions and provider settings into polling
// groups, spawns one worker per provider, writes fetched batches into the
// snapshot cache, and republishes everything through the event sink.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/history"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
	"github.com/haloboard/marketfeed/internal/snapshot"
	"github.com/haloboard/marketfeed/internal/visibility"
)

const configErrorRetryDelay = 5 * time.Second

// Manager owns the cache, visibility registry, and the reload/stop signal
// channels, and drives the scheduling loop described in spec.md §4.2.
type Manager struct {
	cache      *snapshot.Cache
	visibility *visibility.Registry
	factory    *providers.Factory

	subscriptions *repository.SubscriptionsRepository
	providerCfg   *repository.ProviderSettingsRepository
	recorder      *history.Recorder

	sink events.Sink
	log  zerolog.Logger

	unattendedMu sync.Mutex
	unattended   bool

	reload  chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
}

// New builds a Manager. Call Start once to begin the scheduling loop.
func New(
	cache *snapshot.Cache,
	vis *visibility.Registry,
	factory *providers.Factory,
	subscriptions *repository.SubscriptionsRepository,
	providerCfg *repository.ProviderSettingsRepository,
	recorder *history.Recorder,
	sink events.Sink,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		cache:         cache,
		visibility:    vis,
		factory:       factory,
		subscriptions: subscriptions,
		providerCfg:   providerCfg,
		recorder:      recorder,
		sink:          sink,
		log:           log.With().Str("component", "polling_manager").Logger(),
		reload:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Reload bumps the reload signal. The call is non-blocking: if a reload is
// already pending, this is a no-op (the pending one will pick up whatever
// is current by the time it runs).
func (m *Manager) Reload() {
	select {
	case m.reload <- struct{}{}:
	default:
	}
}

// SetUnattended toggles the unattended flag, bumping reload only if the
// value actually changed.
func (m *Manager) SetUnattended(flag bool) {
	m.unattendedMu.Lock()
	changed := m.unattended != flag
	m.unattended = flag
	m.unattendedMu.Unlock()
	if changed {
		m.Reload()
	}
}

func (m *Manager) isUnattended() bool {
	m.unattendedMu.Lock()
	defer m.unattendedMu.Unlock()
	return m.unattended
}

// IsUnattended reports the current unattended flag, for callers outside the
// scheduling loop (the HTTP status handler) that need the live value
// rather than whatever was last persisted.
func (m *Manager) IsUnattended() bool {
	return m.isUnattended()
}

// SetVisible replaces the subscription-id set for a window scope, bumping
// reload only if the effective union actually changes.
func (m *Manager) SetVisible(scope string, ids []int64) {
	if m.visibility.Set(scope, ids) {
		m.Reload()
	}
}

// Start begins the scheduling loop in a background goroutine. Idempotent:
// calling it more than once on the same Manager has no additional effect.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

// Stop terminates the scheduling loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.stopped
}

// run is the outer scheduling loop: one generation at a time, reconciled
// on every reload, torn down on stop.
func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)

	for {
		genStop := make(chan struct{})
		genID := uuid.NewString()
		log := m.log.With().Str("generation_id", genID).Logger()
		groups, ok := m.buildGeneration(ctx)
		if !ok {
			// configuration error: the retry delay has already been slept,
			// so rebuild the generation unless stop was requested meanwhile.
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		var wg sync.WaitGroup
		if ok {
			scoped := make(map[string]map[string]struct{}, len(groups))
			for _, g := range groups {
				set := make(map[string]struct{}, len(g.Symbols))
				for _, s := range g.Symbols {
					set[s] = struct{}{}
				}
				scoped[g.ProviderID] = set
			}
			m.cache.PruneToGroups(scoped)

			if len(groups) == 0 {
				log.Debug().Msg("no polling groups in this generation; idling until reload")
			} else {
				log.Info().Int("groups", len(groups)).Msg("starting generation")

				for _, g := range groups {
					wg.Add(1)
					go func(group domain.PollingGroup) {
						defer wg.Done()
						m.runWorker(ctx, group, genStop)
					}(g)
				}
			}
		}

		select {
		case <-m.reload:
			close(genStop)
			wg.Wait()
			continue
		case <-m.stop:
			close(genStop)
			wg.Wait()
			return
		case <-ctx.Done():
			close(genStop)
			wg.Wait()
			return
		}
	}
}

// buildGeneration computes the effective visible set, loads configuration,
// and constructs one polling group per provider id present in the
// filtered subscriptions. ok is false on a configuration error, in which
// case the retry delay has already been slept and the caller builds the
// generation again.
func (m *Manager) buildGeneration(ctx context.Context) ([]domain.PollingGroup, bool) {
	unattended := m.isUnattended()

	var visibleIDs map[int64]struct{}
	if !unattended {
		if m.visibility.HasScopes() {
			visibleIDs = m.visibility.Union()
			if len(visibleIDs) == 0 {
				m.cache.Clear()
				return nil, true
			}
		}
		// No scopes registered at all: treat as "no filter" per spec.md §9's
		// Open Question resolution (visible-set of None == no filter).
	}

	subs, err := m.subscriptions.List()
	if err != nil {
		m.log.Error().Err(err).Msg("failed to load subscriptions; retrying")
		m.sleepRetry(ctx)
		return nil, false
	}

	providerSettings, err := m.providerCfg.List()
	if err != nil {
		m.log.Error().Err(err).Msg("failed to load provider settings; retrying")
		m.sleepRetry(ctx)
		return nil, false
	}
	settingsByID := make(map[string]domain.ProviderSettings, len(providerSettings))
	for _, s := range providerSettings {
		settingsByID[s.ProviderID] = s
	}

	filtered := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if visibleIDs != nil {
			if _, visible := visibleIDs[sub.ID]; !visible {
				continue
			}
		}
		filtered = append(filtered, sub)
	}

	registry := m.factory
	groupsByProvider := make(map[string]*domain.PollingGroup)
	for _, sub := range filtered {
		providerID := sub.SelectedProviderID
		if providerID == "" {
			continue
		}

		g, exists := groupsByProvider[providerID]
		if !exists {
			settings := settingsByID[providerID]
			g = &domain.PollingGroup{
				ProviderID:           providerID,
				RecordSymbols:        make(map[string]bool),
				SymbolToSubscription: make(map[string]int64),
				IntervalMS:           m.resolveInterval(providerID, settings),
			}
			groupsByProvider[providerID] = g
		}

		symbol := sub.EffectiveSymbol()
		if _, already := g.SymbolToSubscription[symbol]; !already {
			g.Symbols = append(g.Symbols, symbol)
		}
		g.SymbolToSubscription[symbol] = sub.ID
		if sub.RecordEnabled {
			g.RecordSymbols[symbol] = true
		}
	}

	out := make([]domain.PollingGroup, 0, len(groupsByProvider))
	for _, g := range groupsByProvider {
		if _, ok := registry.Create(g.ProviderID, credentialsFor(settingsByID[g.ProviderID])); !ok {
			m.log.Warn().Str("provider", g.ProviderID).Msg("provider construction failed; skipping group")
			continue
		}
		out = append(out, *g)
	}
	return out, true
}

func credentialsFor(s domain.ProviderSettings) providers.Credentials {
	return providers.Credentials{APIKey: s.APIKey, APISecret: s.APISecret, APIURL: s.APIURL}
}

func (m *Manager) resolveInterval(providerID string, settings domain.ProviderSettings) int64 {
	if settings.RefreshInterval != nil && *settings.RefreshInterval > 0 {
		return *settings.RefreshInterval
	}
	info, ok := m.factory.Info(providerID)
	if !ok {
		return 30000
	}
	return info.DefaultIntervalMS(settings.HasCredentials())
}

func (m *Manager) sleepRetry(ctx context.Context) {
	select {
	case <-time.After(configErrorRetryDelay):
	case <-ctx.Done():
	case <-m.stop:
	}
}

// runWorker is the per-provider worker loop: fetch, write cache, publish,
// record history, sleep. One worker is serial within itself (at most one
// outstanding upstream call), and runs independently of every other
// worker.
func (m *Manager) runWorker(ctx context.Context, group domain.PollingGroup, genStop <-chan struct{}) {
	log := m.log.With().Str("provider", group.ProviderID).Logger()

	fetcher, ok := m.factory.Create(group.ProviderID, providers.Credentials{})
	if !ok {
		log.Warn().Msg("provider unavailable at worker start; exiting worker")
		return
	}

	for {
		select {
		case <-genStop:
			return
		default:
		}

		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		assets, err := fetcher.FetchPrices(reqCtx, group.Symbols)
		cancel()

		now := time.Now().UnixMilli()
		if err != nil {
			log.Warn().Err(err).Int("symbols", len(group.Symbols)).Msg("batch fetch failed")
			errs := make(map[string]string, len(group.Symbols))
			for _, sym := range group.Symbols {
				errs[snapshot.Key(group.ProviderID, sym)] = err.Error()
			}
			m.sink.Publish(events.PriceError, "polling_manager", events.PriceErrorData{Errors: errs})
		} else if len(assets) > 0 {
			m.cache.PutBatch(group.ProviderID, assets)
			m.sink.Publish(events.PriceUpdate, "polling_manager", events.PriceUpdateData{Prices: assets})

			for _, asset := range assets {
				if !group.RecordSymbols[asset.Symbol] {
					continue
				}
				subID, ok := group.SymbolToSubscription[asset.Symbol]
				if !ok {
					continue
				}
				m.recorder.Record(ctx, subID, asset)
			}
		}

		tick := domain.PollTick{ProviderID: group.ProviderID, FetchedAt: now, IntervalMS: group.IntervalMS}
		m.cache.RecordTick(tick)
		m.sink.Publish(events.PollTick, "polling_manager", events.PollTickData{Tick: tick})

		select {
		case <-genStop:
			return
		case <-time.After(time.Duration(group.IntervalMS) * time.Millisecond):
		}
	}
}
