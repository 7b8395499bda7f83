package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoAdapter implements batch-strategy family 1: /simple/price
// accepts a comma-separated `ids` parameter and returns one object per
// coin id in a single response. Free-tier requests are rate limited.
type CoinGeckoAdapter struct {
	client  *http.Client
	apiKey  string
	limiter *RateLimiter
}

// NewCoinGeckoAdapter builds a CoinGecko adapter. apiKey is optional; when
// absent the adapter stays within the free-tier ceiling via limiter.
func NewCoinGeckoAdapter(client *http.Client, apiKey string) *CoinGeckoAdapter {
	return &CoinGeckoAdapter{client: client, apiKey: apiKey, limiter: NewRateLimiter(1.0, 2)}
}

func (a *CoinGeckoAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "coingecko", Name: "CoinGecko", Kind: domain.KindCrypto, KeyOptional: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 20000}
}

type coingeckoCoin struct {
	USD          float64 `json:"usd"`
	USD24hVol    float64 `json:"usd_24h_vol"`
	USD24hChange float64 `json:"usd_24h_change"`
	USDMarketCap float64 `json:"usd_market_cap"`
}

func (a *CoinGeckoAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("coingecko: coin id %s not found", symbol)
	}
	return prices[0], nil
}

func (a *CoinGeckoAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if a.apiKey == "" {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("coingecko: rate limit wait cancelled: %w", err)
		}
	}

	ids := strings.Join(symbols, ",")
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true&include_market_cap=true", coingeckoBaseURL, ids)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())
	if a.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko: upstream returned status %d", resp.StatusCode)
	}

	var raw map[string]coingeckoCoin
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("coingecko: decoding response: %w", err)
	}

	// Preserve requested order; silently drop ids CoinGecko didn't return.
	out := make([]domain.AssetData, 0, len(symbols))
	for _, id := range symbols {
		coin, ok := raw[id]
		if !ok {
			continue
		}
		asset := domain.NewAssetData("coingecko", id, decimal.NewFromFloat(coin.USD))
		vol := decimal.NewFromFloat(coin.USD24hVol)
		changePct := decimal.NewFromFloat(coin.USD24hChange)
		cap := decimal.NewFromFloat(coin.USDMarketCap)
		asset.Volume = &vol
		asset.ChangePercent24h = &changePct
		asset.MarketCap = &cap
		out = append(out, asset)
	}
	return out, nil
}
