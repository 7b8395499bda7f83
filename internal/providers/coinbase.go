package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/haloboard/marketfeed/internal/domain"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// CoinbaseAdapter has no native multi-symbol REST endpoint, so
// FetchPrices falls back to FetchPricesSequential (one /products/{id}/ticker
// call per symbol). Streaming makes up for the lack of a cheap batch
// endpoint in practice.
type CoinbaseAdapter struct {
	client *http.Client
}

func NewCoinbaseAdapter(client *http.Client) *CoinbaseAdapter {
	return &CoinbaseAdapter{client: client}
}

func (a *CoinbaseAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "coinbase", Name: "Coinbase", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000}
}

type coinbaseTicker struct {
	Price  string `json:"price"`
	Volume string `json:"volume"`
	High   string `json:"high_24h"`
	Low    string `json:"low_24h"`
}

func (a *CoinbaseAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	url := fmt.Sprintf("%s/products/%s/ticker", coinbaseBaseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("coinbase: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("coinbase: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AssetData{}, fmt.Errorf("coinbase: upstream returned status %d for %s", resp.StatusCode, symbol)
	}

	var t coinbaseTicker
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return domain.AssetData{}, fmt.Errorf("coinbase: decoding response for %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("coinbase: invalid price for %s: %w", symbol, err)
	}

	asset := domain.NewAssetData("coinbase", symbol, price)
	if v, err := decimal.NewFromString(t.Volume); err == nil {
		asset.Volume = &v
	}
	if v, err := decimal.NewFromString(t.High); err == nil {
		asset.High24h = &v
	}
	if v, err := decimal.NewFromString(t.Low); err == nil {
		asset.Low24h = &v
	}
	return asset, nil
}

func (a *CoinbaseAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	return FetchPricesSequential(ctx, a, symbols)
}

const coinbaseStreamURL = "wss://ws-feed.exchange.coinbase.com"

type coinbaseSubscribeMsg struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type coinbaseTickerFrame struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

// Stream subscribes to Coinbase's "ticker" channel for every requested
// product, grounded on the subscribe-then-read shape of the teacher's
// MarketStatusWebSocket.subscribe/readMessages.
func (a *CoinbaseAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	conn, _, err := websocket.Dial(ctx, coinbaseStreamURL, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("coinbase: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := coinbaseSubscribeMsg{Type: "subscribe", ProductIDs: symbols, Channels: []string{"ticker"}}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("coinbase: marshal subscribe: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("coinbase: subscribe failed: %w", err)
	}

	for {
		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("coinbase: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame coinbaseTickerFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "ticker" {
			continue
		}
		price, err := decimal.NewFromString(frame.Price)
		if err != nil {
			continue
		}
		sink.PublishTicker(domain.WsTickerUpdate{
			Symbol:     frame.ProductID,
			ProviderID: "coinbase",
			Asset:      domain.NewAssetData("coinbase", frame.ProductID, price),
		})
	}
}
