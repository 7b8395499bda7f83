package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const krakenBaseURL = "https://api.kraken.com"

// KrakenAdapter implements batch-strategy family 2 ("all tickers"
// endpoint): /0/public/Ticker with no pair filter returns every traded
// pair on the exchange in one response; the adapter filters locally by
// requested symbol rather than round-tripping per symbol.
type KrakenAdapter struct {
	client *http.Client
}

func NewKrakenAdapter(client *http.Client) *KrakenAdapter {
	return &KrakenAdapter{client: client}
}

func (a *KrakenAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "kraken", Name: "Kraken", Kind: domain.KindCrypto, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000}
}

type krakenTicker struct {
	Last [2]string `json:"c"` // [price, lot volume]
	High [2]string `json:"h"`
	Low  [2]string `json:"l"`
	Vol  [2]string `json:"v"`
}

type krakenTickerResponse struct {
	Error  []string                `json:"error"`
	Result map[string]krakenTicker `json:"result"`
}

func (a *KrakenAdapter) fetchAllTickers(ctx context.Context) (map[string]krakenTicker, error) {
	url := krakenBaseURL + "/0/public/Ticker"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("kraken: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kraken: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kraken: upstream returned status %d", resp.StatusCode)
	}

	var parsed krakenTickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("kraken: decoding response: %w", err)
	}
	if len(parsed.Error) > 0 {
		return nil, fmt.Errorf("kraken: upstream error: %v", parsed.Error)
	}
	return parsed.Result, nil
}

func (a *KrakenAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("kraken: pair %s not found", symbol)
	}
	return prices[0], nil
}

func (a *KrakenAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	all, err := a.fetchAllTickers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AssetData, 0, len(symbols))
	for _, sym := range symbols {
		t, ok := all[sym]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(t.Last[0])
		if err != nil {
			continue
		}
		asset := domain.NewAssetData("kraken", sym, price)
		if v, err := decimal.NewFromString(t.High[1]); err == nil {
			asset.High24h = &v
		}
		if v, err := decimal.NewFromString(t.Low[1]); err == nil {
			asset.Low24h = &v
		}
		if v, err := decimal.NewFromString(t.Vol[1]); err == nil {
			asset.Volume = &v
		}
		out = append(out, asset)
	}
	return out, nil
}
