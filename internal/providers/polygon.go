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

const polygonBaseURL = "https://api.polygon.io"

// PolygonAdapter implements batch-strategy family 4 (mixed): stock
// tickers use /v2/last/trade/{ticker}, crypto tickers
// (prefixed "X:") use /v1/last/crypto/{from}/{to}. Neither endpoint
// batches, so each sub-kind fans out through BoundedFanout.
type PolygonAdapter struct {
	client *http.Client
	apiKey string
}

func NewPolygonAdapter(client *http.Client, apiKey string) *PolygonAdapter {
	return &PolygonAdapter{client: client, apiKey: apiKey}
}

func (a *PolygonAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "polygon", Name: "Polygon.io", Kind: domain.KindBoth, KeyRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000}
}

type polygonStockTrade struct {
	Results struct {
		Price float64 `json:"p"`
	} `json:"results"`
}

type polygonCryptoTrade struct {
	Last struct {
		Price float64 `json:"price"`
	} `json:"last"`
}

func (a *PolygonAdapter) fetchStock(ctx context.Context, ticker string) (domain.AssetData, error) {
	url := fmt.Sprintf("%s/v2/last/trade/%s?apiKey=%s", polygonBaseURL, ticker, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: building stock request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: stock request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.AssetData{}, fmt.Errorf("polygon: upstream returned status %d for %s", resp.StatusCode, ticker)
	}

	var t polygonStockTrade
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: decoding stock response for %s: %w", ticker, err)
	}
	return domain.NewAssetData("polygon", ticker, decimal.NewFromFloat(t.Results.Price)), nil
}

func (a *PolygonAdapter) fetchCrypto(ctx context.Context, ticker string) (domain.AssetData, error) {
	base, quote := ParseCryptoSymbol(strings.TrimPrefix(ticker, "X:"))
	url := fmt.Sprintf("%s/v1/last/crypto/%s/%s?apiKey=%s", polygonBaseURL, base, quote, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: building crypto request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: crypto request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.AssetData{}, fmt.Errorf("polygon: upstream returned status %d for %s", resp.StatusCode, ticker)
	}

	var t polygonCryptoTrade
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return domain.AssetData{}, fmt.Errorf("polygon: decoding crypto response for %s: %w", ticker, err)
	}
	return domain.NewAssetData("polygon", ticker, decimal.NewFromFloat(t.Last.Price)), nil
}

func (a *PolygonAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	if strings.HasPrefix(symbol, "X:") {
		return a.fetchCrypto(ctx, symbol)
	}
	return a.fetchStock(ctx, symbol)
}

func (a *PolygonAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var stocks, crypto []string
	for _, s := range symbols {
		if strings.HasPrefix(s, "X:") {
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

const polygonStreamURL = "wss://socket.polygon.io/stocks"

type polygonAuthMsg struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

type polygonSubscribeMsg struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

type polygonTradeFrame struct {
	Ev     string  `json:"ev"`
	Symbol string  `json:"sym"`
	Price  float64 `json:"p"`
}

// Stream authenticates then subscribes to the trades channel for each
// stock ticker. Polygon requires an explicit auth message before any
// subscribe, unlike Finnhub's query-string token.
func (a *PolygonAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	conn, _, err := websocket.Dial(ctx, polygonStreamURL, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("polygon: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	authMsg, _ := json.Marshal(polygonAuthMsg{Action: "auth", Params: a.apiKey})
	if err := conn.Write(ctx, websocket.MessageText, authMsg); err != nil {
		return fmt.Errorf("polygon: auth failed: %w", err)
	}

	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !strings.HasPrefix(s, "X:") {
			params = append(params, "T."+s)
		}
	}
	subMsg, _ := json.Marshal(polygonSubscribeMsg{Action: "subscribe", Params: strings.Join(params, ",")})
	if err := conn.Write(ctx, websocket.MessageText, subMsg); err != nil {
		return fmt.Errorf("polygon: subscribe failed: %w", err)
	}

	for {
		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("polygon: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frames []polygonTradeFrame
		if err := json.Unmarshal(raw, &frames); err != nil {
			continue
		}
		for _, f := range frames {
			if f.Ev != "T" {
				continue
			}
			sink.PublishTicker(domain.WsTickerUpdate{
				Symbol:     f.Symbol,
				ProviderID: "polygon",
				Asset:      domain.NewAssetData("polygon", f.Symbol, decimal.NewFromFloat(f.Price)),
			})
		}
	}
}
