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

const coinmarketcapBaseURL = "https://pro-api.coinmarketcap.com"

// CoinMarketCapAdapter implements batch-strategy family 1: v2 quotes
// latest accepts a comma-separated `symbol` parameter and returns an
// array per symbol (CMC allows duplicate tickers across chains).
type CoinMarketCapAdapter struct {
	client  *http.Client
	apiKey  string
	limiter *RateLimiter
}

// NewCoinMarketCapAdapter builds a CMC adapter. A key is mandatory; the
// factory enforces this before constructing one.
func NewCoinMarketCapAdapter(client *http.Client, apiKey string) *CoinMarketCapAdapter {
	return &CoinMarketCapAdapter{client: client, apiKey: apiKey, limiter: NewRateLimiter(0.5, 1)}
}

func (a *CoinMarketCapAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "coinmarketcap", Name: "CoinMarketCap", Kind: domain.KindCrypto, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 30000}
}

type cmcQuoteUSD struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCap        float64 `json:"market_cap"`
}

type cmcCoin struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		USD cmcQuoteUSD `json:"USD"`
	} `json:"quote"`
}

type cmcResponse struct {
	Data map[string][]cmcCoin `json:"data"`
}

func (a *CoinMarketCapAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("coinmarketcap: symbol %s not found", symbol)
	}
	return prices[0], nil
}

func (a *CoinMarketCapAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("coinmarketcap: rate limit wait cancelled: %w", err)
	}

	url := fmt.Sprintf("%s/v2/cryptocurrency/quotes/latest?symbol=%s", coinmarketcapBaseURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("X-CMC_PRO_API_KEY", a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinmarketcap: upstream returned status %d", resp.StatusCode)
	}

	var parsed cmcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("coinmarketcap: decoding response: %w", err)
	}

	out := make([]domain.AssetData, 0, len(symbols))
	for _, sym := range symbols {
		coins, ok := parsed.Data[sym]
		if !ok || len(coins) == 0 {
			continue
		}
		coin := coins[0]
		asset := domain.NewAssetData("coinmarketcap", sym, decimal.NewFromFloat(coin.Quote.USD.Price))
		vol := decimal.NewFromFloat(coin.Quote.USD.Volume24h)
		changePct := decimal.NewFromFloat(coin.Quote.USD.PercentChange24h)
		marketCap := decimal.NewFromFloat(coin.Quote.USD.MarketCap)
		asset.Volume = &vol
		asset.ChangePercent24h = &changePct
		asset.MarketCap = &marketCap
		out = append(out, asset)
	}
	return out, nil
}
