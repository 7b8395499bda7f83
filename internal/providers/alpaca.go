package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/haloboard/marketfeed/internal/domain"
)

const (
	alpacaStockDataURL  = "https://data.alpaca.markets/v2"
	alpacaCryptoDataURL = "https://data.alpaca.markets/v1beta3/crypto/us"
)

// AlpacaAdapter implements batch-strategy family 4 (mixed): both the
// stock and crypto endpoints accept a native comma-separated `symbols`
// parameter (family 1 within each sub-kind), so the split only happens
// at the sub-kind boundary.
type AlpacaAdapter struct {
	client    *http.Client
	apiKey    string
	apiSecret string
}

func NewAlpacaAdapter(client *http.Client, apiKey, apiSecret string) *AlpacaAdapter {
	return &AlpacaAdapter{client: client, apiKey: apiKey, apiSecret: apiSecret}
}

func (a *AlpacaAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "alpaca", Name: "Alpaca", Kind: domain.KindBoth, KeyRequired: true, SecretRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 5000}
}

func (a *AlpacaAdapter) authHeaders(req *http.Request) {
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)
	req.Header.Set("User-Agent", UserAgent())
}

func isCryptoPair(symbol string) bool { return strings.Contains(symbol, "/") }

type alpacaStockQuoteResp struct {
	Quotes map[string]struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
	} `json:"quotes"`
}

type alpacaCryptoQuoteResp struct {
	Quotes map[string]struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
	} `json:"quotes"`
}

func (a *AlpacaAdapter) fetchStocks(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	url := fmt.Sprintf("%s/stocks/quotes/latest?symbols=%s", alpacaStockDataURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("alpaca: building stock request: %w", err)
	}
	a.authHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: stock request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca: upstream returned status %d", resp.StatusCode)
	}

	var parsed alpacaStockQuoteResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("alpaca: decoding stock response: %w", err)
	}

	out := make([]domain.AssetData, 0, len(parsed.Quotes))
	for sym, q := range parsed.Quotes {
		mid := (q.AskPrice + q.BidPrice) / 2
		out = append(out, domain.NewAssetData("alpaca", sym, decimal.NewFromFloat(mid)))
	}
	return out, nil
}

func (a *AlpacaAdapter) fetchCrypto(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	url := fmt.Sprintf("%s/latest/quotes?symbols=%s", alpacaCryptoDataURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("alpaca: building crypto request: %w", err)
	}
	a.authHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: crypto request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca: upstream returned status %d", resp.StatusCode)
	}

	var parsed alpacaCryptoQuoteResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("alpaca: decoding crypto response: %w", err)
	}

	out := make([]domain.AssetData, 0, len(parsed.Quotes))
	for sym, q := range parsed.Quotes {
		mid := (q.AskPrice + q.BidPrice) / 2
		out = append(out, domain.NewAssetData("alpaca", sym, decimal.NewFromFloat(mid)))
	}
	return out, nil
}

func (a *AlpacaAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("alpaca: symbol %s not found", symbol)
	}
	return prices[0], nil
}

func (a *AlpacaAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var stocks, crypto []string
	for _, s := range symbols {
		if isCryptoPair(s) {
			crypto = append(crypto, s)
		} else {
			stocks = append(stocks, s)
		}
	}

	out := make([]domain.AssetData, 0, len(symbols))
	if len(stocks) > 0 {
		results, err := a.fetchStocks(ctx, stocks)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	if len(crypto) > 0 {
		results, err := a.fetchCrypto(ctx, crypto)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

const alpacaStockStreamURL = "wss://stream.data.alpaca.markets/v2/iex"

type alpacaAuthMsg struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type alpacaSubscribeMsg struct {
	Action  string   `json:"action"`
	Trades  []string `json:"trades"`
}

type alpacaTradeFrame struct {
	T      string  `json:"T"`
	Symbol string  `json:"S"`
	Price  float64 `json:"p"`
}

// Stream authenticates then subscribes to the IEX stock trades channel.
func (a *AlpacaAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	conn, _, err := websocket.Dial(ctx, alpacaStockStreamURL, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("alpaca: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	authMsg, _ := json.Marshal(alpacaAuthMsg{Action: "auth", Key: a.apiKey, Secret: a.apiSecret})
	if err := conn.Write(ctx, websocket.MessageText, authMsg); err != nil {
		return fmt.Errorf("alpaca: auth failed: %w", err)
	}

	var stocks []string
	for _, s := range symbols {
		if !isCryptoPair(s) {
			stocks = append(stocks, s)
		}
	}
	subMsg, _ := json.Marshal(alpacaSubscribeMsg{Action: "subscribe", Trades: stocks})
	if err := conn.Write(ctx, websocket.MessageText, subMsg); err != nil {
		return fmt.Errorf("alpaca: subscribe failed: %w", err)
	}

	for {
		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("alpaca: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frames []alpacaTradeFrame
		if err := json.Unmarshal(raw, &frames); err != nil {
			continue
		}
		for _, f := range frames {
			if f.T != "t" {
				continue
			}
			sink.PublishTicker(domain.WsTickerUpdate{
				Symbol:     f.Symbol,
				ProviderID: "alpaca",
				Asset:      domain.NewAssetData("alpaca", f.Symbol, decimal.NewFromFloat(f.Price)),
			})
		}
	}
}
