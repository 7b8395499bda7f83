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

const polymarketBaseURL = "https://clob.polymarket.com"

// PolymarketAdapter has no batch quote endpoint; FetchPrices issues
// bounded fan-out calls against /price?token_id=... per condition id.
type PolymarketAdapter struct {
	client *http.Client
}

func NewPolymarketAdapter(client *http.Client) *PolymarketAdapter {
	return &PolymarketAdapter{client: client}
}

func (a *PolymarketAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "polymarket", Name: "Polymarket", Kind: domain.KindPrediction, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000}
}

type polymarketPriceResp struct {
	Price string `json:"price"`
}

func (a *PolymarketAdapter) FetchPrice(ctx context.Context, conditionID string) (domain.AssetData, error) {
	url := fmt.Sprintf("%s/price?token_id=%s&side=buy", polymarketBaseURL, conditionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polymarket: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polymarket: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.AssetData{}, fmt.Errorf("polymarket: upstream returned status %d for %s", resp.StatusCode, conditionID)
	}

	var p polymarketPriceResp
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return domain.AssetData{}, fmt.Errorf("polymarket: decoding response for %s: %w", conditionID, err)
	}

	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return domain.AssetData{}, fmt.Errorf("polymarket: invalid price for %s: %w", conditionID, err)
	}
	return domain.NewAssetData("polymarket", conditionID, price), nil
}

func (a *PolymarketAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	return BoundedFanout(ctx, a, symbols, 3)
}

const polymarketStreamURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

type polymarketSubscribeMsg struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

type polymarketPriceChange struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
}

// Stream subscribes to Polymarket's market channel for the given condition
// ids and forwards price_change events.
func (a *PolymarketAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	conn, _, err := websocket.Dial(ctx, polymarketStreamURL, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("polymarket: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub, _ := json.Marshal(polymarketSubscribeMsg{AssetsIDs: symbols, Type: "market"})
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		return fmt.Errorf("polymarket: subscribe failed: %w", err)
	}

	for {
		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("polymarket: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var events []polymarketPriceChange
		if err := json.Unmarshal(raw, &events); err != nil {
			continue
		}
		for _, e := range events {
			if e.EventType != "price_change" {
				continue
			}
			price, err := decimal.NewFromString(e.Price)
			if err != nil {
				continue
			}
			sink.PublishTicker(domain.WsTickerUpdate{
				Symbol:     e.AssetID,
				ProviderID: "polymarket",
				Asset:      domain.NewAssetData("polymarket", e.AssetID, price),
			})
		}
	}
}
