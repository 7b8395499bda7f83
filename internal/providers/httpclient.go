package providers

import (
	"context"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	httpClientTimeout = 15 * time.Second
	userAgent         = "marketfeed/1.0 (+https://github.com/haloboard/marketfeed)"
	maxIdleConnsHost  = 4
)

var (
	sharedClientOnce sync.Once
	sharedClient     *http.Client
)

// SharedHTTPClient returns the process-wide HTTP client every adapter
// shares: 15-second timeout, a product user agent, a cookie jar (required
// by the Yahoo adapter's cookie+crumb auth), and a per-host idle-connection
// ceiling. Constructed once; cheap to pass around by reference afterward.
//
// Grounded on the teacher's createHTTP1Client
// (internal/clients/tradernet/websocket_client.go), generalized from a
// WebSocket-only HTTP/1.1-forced client to the general-purpose REST client
// this package's adapters need.
func SharedHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		jar, _ := cookiejar.New(nil)
		sharedClient = &http.Client{
			Timeout: httpClientTimeout,
			Jar:     jar,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: maxIdleConnsHost,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})
	return sharedClient
}

// UserAgent returns the product user agent adapters must set on every
// outbound request.
func UserAgent() string { return userAgent }

// RateLimiter wraps golang.org/x/time/rate for the handful of adapters with
// a documented request ceiling (CoinGecko free tier, CoinMarketCap). Wait
// blocks until a token is available or ctx is cancelled.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing ratePerSecond requests per
// second with a burst of burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
