package providers

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
)

// Credentials is the subset of domain.ProviderSettings a Factory needs to
// construct an adapter instance.
type Credentials struct {
	APIKey    string
	APISecret string
	APIURL    string
}

// Factory builds adapter instances from a provider id, memoizing them for
// the lifetime of the process (or until Evict is called). Grounded on the
// Design Notes' "live-provider-instance cache": on-demand validation calls
// create adapters lazily. A memoized instance keeps the credentials it was
// built with until Evict is called; a change to a provider's settings row
// does not evict it by itself.
type Factory struct {
	registry *Registry
	log      zerolog.Logger

	mu        sync.Mutex
	instances map[string]Fetcher
}

// NewFactory creates a Factory bound to a Registry.
func NewFactory(registry *Registry, log zerolog.Logger) *Factory {
	return &Factory{
		registry:  registry,
		log:       log.With().Str("component", "provider_factory").Logger(),
		instances: make(map[string]Fetcher),
	}
}

// Create returns the memoized adapter instance for id, building it on
// first use. Returns (nil, false) if id has no shipped adapter (a
// registry-only row) or the registry doesn't know the id at all.
func (f *Factory) Create(id string, creds Credentials) (Fetcher, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if inst, ok := f.instances[id]; ok {
		return inst, true
	}

	info, ok := f.registry.Get(id)
	if !ok {
		return nil, false
	}

	inst, err := f.build(info, creds)
	if err != nil {
		f.log.Warn().Err(err).Str("provider", id).Msg("failed to construct provider adapter")
		return nil, false
	}
	if inst == nil {
		return nil, false
	}

	f.instances[id] = inst
	return inst, true
}

// Evict drops the cached instance for id, forcing the next Create to
// rebuild it. It is not called automatically when a provider's settings
// row changes.
func (f *Factory) Evict(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
}

// Info returns the static registry descriptor for id, independent of
// whether it has a shipped adapter.
func (f *Factory) Info(id string) (domain.ProviderInfo, bool) {
	return f.registry.Get(id)
}

// AllInfo returns the static descriptor for every registered provider,
// shipped adapter or registry-only, for the HTTP catalog endpoint.
func (f *Factory) AllInfo() []domain.ProviderInfo {
	return f.registry.All()
}

func (f *Factory) build(info domain.ProviderInfo, creds Credentials) (Fetcher, error) {
	client := SharedHTTPClient()

	switch info.ID {
	case "binance":
		return NewBinanceAdapter(client), nil
	case "coinbase":
		return NewCoinbaseAdapter(client), nil
	case "coingecko":
		return NewCoinGeckoAdapter(client, creds.APIKey), nil
	case "coinmarketcap":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("coinmarketcap requires an api key")
		}
		return NewCoinMarketCapAdapter(client, creds.APIKey), nil
	case "kraken":
		return NewKrakenAdapter(client), nil
	case "yahoo":
		return NewYahooAdapter(client), nil
	case "finnhub":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("finnhub requires an api key")
		}
		return NewFinnhubAdapter(client, creds.APIKey), nil
	case "polygon":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("polygon requires an api key")
		}
		return NewPolygonAdapter(client, creds.APIKey), nil
	case "alpaca":
		if creds.APIKey == "" || creds.APISecret == "" {
			return nil, fmt.Errorf("alpaca requires both an api key and a secret")
		}
		return NewAlpacaAdapter(client, creds.APIKey, creds.APISecret), nil
	case "polymarket":
		return NewPolymarketAdapter(client), nil
	case "bitquery":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("bitquery requires an api key")
		}
		return NewBitqueryAdapter(client, creds.APIKey), nil
	case "jupiter":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("jupiter requires an api key")
		}
		return NewJupiterAdapter(client, creds.APIKey), nil
	case "okx_dex":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("okx_dex requires an api key")
		}
		return NewOKXDEXAdapter(client, creds.APIKey), nil
	case "raydium":
		return NewRaydiumAdapter(client, creds.APIKey), nil
	case "subgraph":
		if creds.APIKey == "" {
			return nil, fmt.Errorf("subgraph requires an api key")
		}
		return NewSubgraphAdapter(client, creds.APIKey, creds.APIURL), nil
	default:
		// registry-only row: known to the UI, no shipped adapter.
		return nil, nil
	}
}
