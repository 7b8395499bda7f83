// Package events defines the four event kinds the polling engine publishes
// and the Bus that fans them out to subscribers. The shape mirrors the
// teacher's typed EventData pattern: a closed set of event kinds, each with
// its own payload struct, dispatched through one interface.
package events

import "github.com/haloboard/marketfeed/internal/domain"

// EventType identifies one of the four event kinds the core emits.
type EventType string

const (
	PriceUpdate   EventType = "price-update"
	PriceError    EventType = "price-error"
	PollTick      EventType = "poll-tick"
	WsTickerUpdate EventType = "ws-ticker-update"
)

// EventData is implemented by every event payload type.
type EventData interface {
	EventType() EventType
}

// PriceUpdateData carries a successful batch fetch.
type PriceUpdateData struct {
	Prices []domain.AssetData `json:"prices"`
}

func (d PriceUpdateData) EventType() EventType { return PriceUpdate }

// PriceErrorData carries one error string per requested "provider:symbol"
// key that failed in a batch.
type PriceErrorData struct {
	Errors map[string]string `json:"errors"`
}

func (d PriceErrorData) EventType() EventType { return PriceError }

// PollTickData carries a single beat record.
type PollTickData struct {
	Tick domain.PollTick `json:"tick"`
}

func (d PollTickData) EventType() EventType { return PollTick }

// WsTickerUpdateData carries one streamed ticker update.
type WsTickerUpdateData struct {
	Update domain.WsTickerUpdate `json:"update"`
}

func (d WsTickerUpdateData) EventType() EventType { return WsTickerUpdate }
