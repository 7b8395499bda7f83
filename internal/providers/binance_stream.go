package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/haloboard/marketfeed/internal/domain"
)

const binanceStreamURL = "wss://stream.binance.com:9443/stream"

type binanceCombinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceMiniTicker struct {
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}

// Stream implements Streamer using the combined miniTicker stream — one
// socket carrying every requested symbol. Dials once, reads until the
// connection ends or ctx is cancelled; internal/streaming.Worker supplies
// the reconnect loop around this call.
func (a *BinanceAdapter) Stream(ctx context.Context, symbols []string, sink StreamSink) error {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	url := fmt.Sprintf("%s?streams=%s", binanceStreamURL, strings.Join(streams, "/"))

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: SharedHTTPClient()})
	if err != nil {
		return fmt.Errorf("binance: dial failed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("binance: read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame binanceCombinedFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		var ticker binanceMiniTicker
		if err := json.Unmarshal(frame.Data, &ticker); err != nil {
			continue
		}

		price, err := decimal.NewFromString(ticker.LastPrice)
		if err != nil {
			continue
		}
		sink.PublishTicker(domain.WsTickerUpdate{
			Symbol:     ticker.Symbol,
			ProviderID: "binance",
			Asset:      domain.NewAssetData("binance", ticker.Symbol, price),
		})
	}
}
