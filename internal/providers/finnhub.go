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

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubAdapter implements batch-strategy family 4 (mixed): Finnhub
// covers both stocks and crypto with the same /quote endpoint but
// different symbol conventions (plain ticker for stocks, "EXCHANGE:PAIR"
// for crypto); there is no batch endpoint for either, so each sub-batch
// goes through BoundedFanout at a conservative concurrency of 3.
type FinnhubAdapter struct {
	client *http.Client
	apiKey string
}

func NewFinnhubAdapter(client *http.Client, apiKey string) *FinnhubAdapter {
	return &FinnhubAdapter{client: client, apiKey: apiKey}
}

func (a *FinnhubAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "finnhub", Name: "Finnhub", Kind: domain.KindBoth, KeyRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 10000}
}

type finnhubQuote struct {
	CurrentPrice  float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
}

func (a *FinnhubAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	url := fmt.Sprintf("%s/quote?symbol=%s&token=%s", finnhubBaseURL, symbol, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("finnhub: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("finnhub: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.AssetData{}, fmt.Errorf("finnhub: upstream returned status %d for %s", resp.StatusCode, symbol)
	}

	var q finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return domain.AssetData{}, fmt.Errorf("finnhub: decoding response for %s: %w", symbol, err)
	}
	if q.CurrentPrice == 0 {
		return domain.AssetData{}, fmt.Errorf("finnhub: symbol %s not found", symbol)
	}

	asset := domain.NewAssetData("finnhub", symbol, decimal.NewFromFloat(q.CurrentPrice))
	change := decimal.NewFromFloat(q.Change)
	changePct := decimal.NewFromFloat(q.PercentChange)
	high := decimal.NewFromFloat(q.High)
	low := decimal.NewFromFloat(q.Low)
	asset.Change24h = &change
	asset.ChangePercent24h = &changePct
	asset.High24h = &high
	asset.Low24h = &low
	return asset, nil
}

// isCryptoSymbol reports whether a Finnhub symbol is in the
// "EXCHANGE:PAIR" crypto convention rather than a plain stock ticker.
func isCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, ":")
}

func (a *FinnhubAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var stocks, crypto []string
	for _, s := range symbols {
		if isCryptoSymbol(s) {
			crypto = append(crypto, s)
		} else {
			stocks = append(stocks, s)
		}
	}

	out := make([]domain.AssetData, 0, len(symbols))
	if len(stocks) > 0 {
		results, err := BoundedFanout(ctx, a, stocks, 3)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	if len(crypto) > 0 {
		results, err := BoundedFanout(ctx, a, crypto, 3)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

const finnhubStreamURL = "wss://ws.finnhub.io"

type finnhubSubscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type finnhubTradeFrame struct {
	Type string `json:"type"`
	Data []struct {
		Symbol string  `json:"s"`
		Price  float64 `json:"p"`
	} `json:"data"`
}

// Stream subscribes to Finnhub's trade channel, one subscribe message per
// symbol over a single socket.
func (a *FinnhubAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	url := fmt.Sprintf("%s?token=%s", finnhubStreamURL, a.apiKey)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("finnhub: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for _, sym := range symbols {
		msg, err := json.Marshal(finnhubSubscribeMsg{Type: "subscribe", Symbol: sym})
		if err != nil {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			return fmt.Errorf("finnhub: subscribe to %s failed: %w", sym, err)
		}
	}

	for {
		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("finnhub: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame finnhubTradeFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "trade" {
			continue
		}
		for _, trade := range frame.Data {
			sink.PublishTicker(domain.WsTickerUpdate{
				Symbol:     trade.Symbol,
				ProviderID: "finnhub",
				Asset:      domain.NewAssetData("finnhub", trade.Symbol, decimal.NewFromFloat(trade.Price)),
			})
		}
	}
}
