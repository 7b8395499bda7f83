// Package providers normalizes dozens of upstream market-data APIs into one
// capability set, and holds the static registry describing every supported
// upstream.
package providers

import (
	"context"

	"github.com/haloboard/marketfeed/internal/domain"
)

// Fetcher is the capability every adapter must implement: a single-symbol
// quote and a best-effort batch quote.
type Fetcher interface {
	Info() domain.ProviderInfo

	// FetchPrice returns one quote or an error.
	FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error)

	// FetchPrices returns as many quotes as the upstream could resolve.
	// The result may be shorter than symbols; unknown symbols are dropped
	// silently here and only logged. An error aborts the whole batch.
	FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error)
}

// StreamSink receives parsed ticker updates from a Streamer.
type StreamSink interface {
	PublishTicker(update domain.WsTickerUpdate)
}

// Streamer is the optional streaming capability. Not every adapter
// implements it; callers narrow a Fetcher to a Streamer with a type
// assertion.
//
// Stream holds one connection attempt for its entire lifetime: dial,
// subscribe, read loop. It returns when the connection ends (error,
// upstream close, or ctx cancellation) — it does not itself reconnect.
// Reconnection with the generic exponential-backoff policy from spec
// §4.4 is internal/streaming's job: Worker calls Stream in a loop,
// backing off between attempts, so every adapter gets the same reconnect
// behavior without reimplementing it per upstream protocol.
type Streamer interface {
	Fetcher
	Stream(ctx context.Context, symbols []string, sink StreamSink) error
}

// PoolLookuper is the optional DEX pool-metadata capability.
type PoolLookuper interface {
	Fetcher
	LookupPool(ctx context.Context, poolAddress string) (domain.PoolMetadata, error)
}

// FetchPricesSequential is the default batch strategy: sequential
// FetchPrice calls; the first per-symbol error aborts the whole batch and
// is returned with no partial results. Adapters that have no better
// upstream batch endpoint call this from their FetchPrices.
func FetchPricesSequential(ctx context.Context, f Fetcher, symbols []string) ([]domain.AssetData, error) {
	out := make([]domain.AssetData, 0, len(symbols))
	for _, sym := range symbols {
		asset, err := f.FetchPrice(ctx, sym)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}
