package providers

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/haloboard/marketfeed/internal/domain"
)

// BoundedFanout implements batch-strategy family 3 from the registry: when
// an upstream offers no native multi-symbol endpoint, issue one FetchPrice
// call per symbol through a concurrency-bounded stream (typical bound 2–3)
// rather than sequentially, to cut batch latency without tripping the
// upstream's rate limit. A hard error on any one symbol aborts the whole
// batch, consistent with the sequential fallback's contract.
func BoundedFanout(ctx context.Context, f Fetcher, symbols []string, bound int64) ([]domain.AssetData, error) {
	sem := semaphore.NewWeighted(bound)
	results := make([]domain.AssetData, len(symbols))
	errs := make([]error, len(symbols))

	for i, sym := range symbols {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(i int, sym string) {
			defer sem.Release(1)
			asset, err := f.FetchPrice(ctx, sym)
			results[i] = asset
			errs[i] = err
		}(i, sym)
	}

	// Acquiring the full weight waits for every in-flight goroutine to
	// release, the same "drain before returning" idiom as a WaitGroup.
	if err := sem.Acquire(ctx, bound); err != nil {
		return nil, err
	}

	out := make([]domain.AssetData, 0, len(symbols))
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		out = append(out, results[i])
	}
	return out, nil
}
