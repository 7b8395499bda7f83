package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsCachedPricesGaugeTracksCacheSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	size := 0
	m := newMetrics(reg, func() int { return size })

	assert.Equal(t, float64(0), testutil.ToFloat64(m.cachedPrices))

	size = 7
	assert.Equal(t, float64(7), testutil.ToFloat64(m.cachedPrices))
}

func TestNewMetricsCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg, func() int { return 0 })

	m.pollTicks.WithLabelValues("binance").Inc()
	m.pollErrors.WithLabelValues("binance").Inc()
	m.wsUpdates.WithLabelValues("binance").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.pollTicks.WithLabelValues("binance")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pollErrors.WithLabelValues("binance")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.wsUpdates.WithLabelValues("binance")))
}
