package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus collectors the HTTP surface exposes on
// /metrics. Counters are incremented by the event-bus subscriptions wired
// in New; the gauge is sampled directly from the cache on each scrape
// instead of being pushed, since the cache is always the freshest source.
type metrics struct {
	pollTicks    *prometheus.CounterVec
	pollErrors   *prometheus.CounterVec
	wsUpdates    *prometheus.CounterVec
	cachedPrices prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, cacheSize func() int) *metrics {
	factory := promauto.With(reg)
	m := &metrics{
		pollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_poll_ticks_total",
			Help: "Number of completed polling batches, by provider.",
		}, []string{"provider"}),
		pollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_poll_errors_total",
			Help: "Number of polling batches that returned an error, by provider.",
		}, []string{"provider"}),
		wsUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketfeed_ws_ticker_updates_total",
			Help: "Number of ticker updates received over streaming connections, by provider.",
		}, []string{"provider"}),
	}
	m.cachedPrices = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "marketfeed_cached_prices",
		Help: "Number of provider:symbol entries currently held in the snapshot cache.",
	}, func() float64 { return float64(cacheSize()) })
	return m
}
