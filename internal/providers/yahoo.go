package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const (
	yahooCrumbURL = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	yahooQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"
)

// YahooAdapter implements batch-strategy family 1 via v7/finance/quote's
// comma-separated `symbols` parameter, authenticated with the
// cookie+crumb handshake Yahoo requires since deprecating its open API.
// The adapter's shared HTTP client (with its cookie jar) carries the
// session cookie across the crumb fetch and the quote calls; the crumb
// itself is memoized until a request reports it stale.
type YahooAdapter struct {
	client *http.Client

	mu    sync.Mutex
	crumb string
}

func NewYahooAdapter(client *http.Client) *YahooAdapter {
	return &YahooAdapter{client: client}
}

func (a *YahooAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "yahoo", Name: "Yahoo Finance", Kind: domain.KindStock, NoKeyIntervalMS: 15000, KeyedIntervalMS: 15000}
}

func (a *YahooAdapter) getCrumb(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.crumb != "" {
		c := a.crumb
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	// A warm-up GET against the finance homepage populates the cookie jar
	// before the crumb endpoint will issue a valid token.
	warmupReq, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://fc.yahoo.com", nil)
	if err == nil {
		warmupReq.Header.Set("User-Agent", UserAgent())
		if resp, err := a.client.Do(warmupReq); err == nil {
			resp.Body.Close()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yahooCrumbURL, nil)
	if err != nil {
		return "", fmt.Errorf("yahoo: building crumb request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("yahoo: crumb request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("yahoo: reading crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", fmt.Errorf("yahoo: empty crumb returned")
	}

	a.mu.Lock()
	a.crumb = crumb
	a.mu.Unlock()
	return crumb, nil
}

type yahooQuoteResult struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        float64 `json:"regularMarketVolume"`
	PreMarketPrice             float64 `json:"preMarketPrice"`
	PostMarketPrice            float64 `json:"postMarketPrice"`
	MarketState                string  `json:"marketState"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

func (a *YahooAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("yahoo: symbol %s not found", symbol)
	}
	return prices[0], nil
}

func (a *YahooAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	crumb, err := a.getCrumb(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?symbols=%s&crumb=%s", yahooQuoteURL, strings.Join(symbols, ","), crumb)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: building quote request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Crumb went stale; clear it so the next call re-negotiates.
		a.mu.Lock()
		a.crumb = ""
		a.mu.Unlock()
		return nil, fmt.Errorf("yahoo: crumb rejected, will renegotiate on next call")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: upstream returned status %d", resp.StatusCode)
	}

	var parsed yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("yahoo: decoding response: %w", err)
	}
	if parsed.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo: %s", parsed.QuoteResponse.Error.Description)
	}

	out := make([]domain.AssetData, 0, len(parsed.QuoteResponse.Result))
	for _, q := range parsed.QuoteResponse.Result {
		asset := domain.NewAssetData("yahoo", q.Symbol, decimal.NewFromFloat(q.RegularMarketPrice))
		change := decimal.NewFromFloat(q.RegularMarketChange)
		changePct := decimal.NewFromFloat(q.RegularMarketChangePercent)
		high := decimal.NewFromFloat(q.RegularMarketDayHigh)
		low := decimal.NewFromFloat(q.RegularMarketDayLow)
		vol := decimal.NewFromFloat(q.RegularMarketVolume)
		asset.Change24h = &change
		asset.ChangePercent24h = &changePct
		asset.High24h = &high
		asset.Low24h = &low
		asset.Volume = &vol
		asset.Extra = map[string]any{"market_session": q.MarketState}
		if q.PreMarketPrice != 0 {
			asset.Extra["pre_market_price"] = q.PreMarketPrice
		}
		if q.PostMarketPrice != 0 {
			asset.Extra["post_market_price"] = q.PostMarketPrice
		}
		out = append(out, asset)
	}
	return out, nil
}
