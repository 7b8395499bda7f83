// Package domain holds the plain data types shared across the polling
// engine, the provider adapters, the history recorder, and the HTTP surface.
// Nothing in this package touches I/O.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSession classifies which session a quote was observed in, for
// providers that distinguish regular trading hours from extended hours.
type MarketSession string

const (
	SessionRegular MarketSession = "REGULAR"
	SessionPre     MarketSession = "PRE"
	SessionPost    MarketSession = "POST"
)

// AssetData is a canonical quote, normalized from whatever shape the
// upstream provider returned.
//
// LastUpdated is set by the adapter at construction time and is monotonic
// per-producer within a single process; Price is never negative.
type AssetData struct {
	Symbol            string           `json:"symbol"`
	Price             decimal.Decimal  `json:"price"`
	Currency          string           `json:"currency"`
	Change24h         *decimal.Decimal `json:"change_24h,omitempty"`
	ChangePercent24h  *decimal.Decimal `json:"change_percent_24h,omitempty"`
	High24h           *decimal.Decimal `json:"high_24h,omitempty"`
	Low24h            *decimal.Decimal `json:"low_24h,omitempty"`
	Volume            *decimal.Decimal `json:"volume,omitempty"`
	MarketCap         *decimal.Decimal `json:"market_cap,omitempty"`
	LastUpdated       int64            `json:"last_updated"` // milliseconds
	ProviderID        string           `json:"provider_id"`
	Extra             map[string]any   `json:"extra,omitempty"`
}

// NewAssetData builds an AssetData with Currency defaulted to USD and
// LastUpdated stamped to now, the way every adapter's happy path should
// construct one.
func NewAssetData(providerID, symbol string, price decimal.Decimal) AssetData {
	return AssetData{
		Symbol:      symbol,
		Price:       price,
		Currency:    "USD",
		LastUpdated: time.Now().UnixMilli(),
		ProviderID:  providerID,
	}
}

// ExtraString reads a string value out of Extra, returning "" if absent or
// of the wrong type.
func (a AssetData) ExtraString(key string) string {
	if a.Extra == nil {
		return ""
	}
	if v, ok := a.Extra[key].(string); ok {
		return v
	}
	return ""
}

// ExtraDecimal reads a decimal value out of Extra (stored either as a
// decimal.Decimal or a float64, since adapters build Extra ad hoc).
func (a AssetData) ExtraDecimal(key string) (decimal.Decimal, bool) {
	if a.Extra == nil {
		return decimal.Zero, false
	}
	switch v := a.Extra[key].(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Zero, false
	}
}

// AssetKind classifies a provider's coverage for UI grouping and for
// picking the right registry default.
type AssetKind string

const (
	KindCrypto     AssetKind = "crypto"
	KindStock      AssetKind = "stock"
	KindBoth       AssetKind = "both"
	KindPrediction AssetKind = "prediction"
	KindDEX        AssetKind = "dex"
)

// ConnectionType is the transport a provider uses for live updates.
type ConnectionType string

const (
	ConnectionREST ConnectionType = "rest"
	ConnectionWS   ConnectionType = "ws"
)

// ProviderInfo is the static descriptor for one upstream, constructed once
// at process start from the registry table.
type ProviderInfo struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Kind               AssetKind `json:"kind"`
	KeyRequired        bool      `json:"key_required"` // true: key mandatory, false: KeyOptional decides
	KeyOptional        bool      `json:"key_optional"`
	SecretRequired     bool      `json:"secret_required"`
	SupportsWebsocket  bool      `json:"supports_websocket"`
	SupportsPoolLookup bool      `json:"supports_pool_lookup"`
	NoKeyIntervalMS    int64     `json:"no_key_interval_ms"`
	KeyedIntervalMS    int64     `json:"keyed_interval_ms"`
	SymbolFormatHint   string    `json:"symbol_format_hint"`
}

// DefaultIntervalMS returns the registry default interval for a provider
// given whether the caller supplied credentials.
func (p ProviderInfo) DefaultIntervalMS(hasKey bool) int64 {
	if hasKey && p.KeyedIntervalMS > 0 {
		return p.KeyedIntervalMS
	}
	if p.NoKeyIntervalMS > 0 {
		return p.NoKeyIntervalMS
	}
	return p.KeyedIntervalMS
}

// PollTick is the beat record published after every worker batch,
// successful or not.
type PollTick struct {
	ProviderID string `json:"provider_id"`
	FetchedAt  int64  `json:"fetched_at"` // milliseconds
	IntervalMS int64  `json:"interval_ms"`
}

// WsTickerUpdate is the canonical shape a streaming worker broadcasts for
// every parsed ticker frame.
type WsTickerUpdate struct {
	Symbol     string    `json:"symbol"`
	ProviderID string    `json:"provider_id"`
	Asset      AssetData `json:"asset"`
}

// PoolMetadata is the result of a DEX pool lookup, memoized for the
// lifetime of the pool (token pairing for a given pool address never
// changes).
type PoolMetadata struct {
	Token0Address string `json:"token0_address"`
	Token0Symbol  string `json:"token0_symbol"`
	Token1Address string `json:"token1_address"`
	Token1Symbol  string `json:"token1_symbol"`
}
