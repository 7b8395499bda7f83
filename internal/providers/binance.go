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

const binanceBaseURL = "https://api.binance.com"

// BinanceAdapter implements batch-strategy family 1 (native multi-symbol):
// /api/v3/ticker/24hr accepts a `symbols` query parameter with a JSON array
// and returns one object per requested symbol in a single response.
type BinanceAdapter struct {
	client *http.Client
}

// NewBinanceAdapter builds a Binance adapter. No credentials required.
func NewBinanceAdapter(client *http.Client) *BinanceAdapter {
	return &BinanceAdapter{client: client}
}

func (a *BinanceAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "binance", Name: "Binance", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000}
}

type binanceTicker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
}

func (t binanceTicker24h) toAssetData() domain.AssetData {
	price, _ := decimal.NewFromString(t.LastPrice)
	asset := domain.NewAssetData("binance", t.Symbol, price)
	if v, err := decimal.NewFromString(t.PriceChange); err == nil {
		asset.Change24h = &v
	}
	if v, err := decimal.NewFromString(t.PriceChangePercent); err == nil {
		asset.ChangePercent24h = &v
	}
	if v, err := decimal.NewFromString(t.HighPrice); err == nil {
		asset.High24h = &v
	}
	if v, err := decimal.NewFromString(t.LowPrice); err == nil {
		asset.Low24h = &v
	}
	if v, err := decimal.NewFromString(t.Volume); err == nil {
		asset.Volume = &v
	}
	return asset
}

func (a *BinanceAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("binance: symbol %s not found", symbol)
	}
	return prices[0], nil
}

func (a *BinanceAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(symbols))
	for i, s := range symbols {
		quoted[i] = fmt.Sprintf("%q", strings.ToUpper(s))
	}
	symbolsParam := "[" + strings.Join(quoted, ",") + "]"

	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbols=%s", binanceBaseURL, symbolsParam)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: upstream returned status %d", resp.StatusCode)
	}

	var tickers []binanceTicker24h
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("binance: decoding response: %w", err)
	}

	out := make([]domain.AssetData, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, t.toAssetData())
	}
	return out, nil
}
