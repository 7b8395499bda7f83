package domain

import "github.com/shopspring/decimal"

// SubType distinguishes a plain asset subscription from a DEX pool
// subscription, which carries extra addressing fields.
type SubType string

const (
	SubTypeAsset SubType = "asset"
	SubTypeDEX   SubType = "dex"
)

// Subscription is a user's declaration that a (symbol, provider) pair
// should be tracked. It is persisted; the zero value is never written.
type Subscription struct {
	ID                 int64   `json:"id"`
	SubType            SubType `json:"sub_type"`
	Symbol             string  `json:"symbol"`
	DisplayName        string  `json:"display_name"`
	SelectedProviderID string  `json:"selected_provider_id"`
	AssetType          string  `json:"asset_type"`
	PoolAddress        string  `json:"pool_address,omitempty"`
	TokenFromAddress   string  `json:"token_from_address,omitempty"`
	TokenToAddress     string  `json:"token_to_address,omitempty"`
	SortOrder          int     `json:"sort_order"`
	RecordEnabled      bool    `json:"record_enabled"`
	RecordFromHour     *int    `json:"record_from_hour,omitempty"`
	RecordToHour       *int    `json:"record_to_hour,omitempty"`
}

// EffectiveSymbol returns the string an adapter should actually be asked
// to fetch: the composed "pool:from:to" form for DEX subscriptions, or the
// user-entered symbol verbatim for plain asset subscriptions.
func (s Subscription) EffectiveSymbol() string {
	if s.SubType == SubTypeDEX {
		return s.PoolAddress + ":" + s.TokenFromAddress + ":" + s.TokenToAddress
	}
	return s.Symbol
}

// ProviderSettings is the persisted per-provider configuration: optional
// credential overrides, an optional refresh-interval override, the
// transport to use, and a default recording window.
type ProviderSettings struct {
	ProviderID      string         `json:"provider_id"`
	APIKey          string         `json:"-"`
	APISecret       string         `json:"-"`
	APIURL          string         `json:"api_url,omitempty"`
	RefreshInterval *int64         `json:"refresh_interval,omitempty"` // milliseconds
	ConnectionType  ConnectionType `json:"connection_type,omitempty"`
	RecordFromHour  *int           `json:"record_from_hour,omitempty"`
	RecordToHour    *int           `json:"record_to_hour,omitempty"`
}

// HasCredentials reports whether enough of a key/secret pair is present to
// count as "keyed" for registry default-interval selection.
func (p ProviderSettings) HasCredentials() bool {
	return p.APIKey != ""
}

// PriceHistory is one persisted sample, written by the history recorder.
type PriceHistory struct {
	ID             int64            `json:"id"`
	SubscriptionID int64            `json:"subscription_id"`
	ProviderID     string           `json:"provider_id"`
	Price          decimal.Decimal  `json:"price"`
	ChangePct      *decimal.Decimal `json:"change_pct,omitempty"`
	Volume         *decimal.Decimal `json:"volume,omitempty"`
	PrePrice       *decimal.Decimal `json:"pre_price,omitempty"`
	PostPrice      *decimal.Decimal `json:"post_price,omitempty"`
	RecordedAt     int64            `json:"recorded_at"` // seconds
}

// PollingGroup is the in-memory unit of scheduling: every subscription
// pointed at one provider, collapsed into the symbol list a single worker
// fetches on one cadence.
type PollingGroup struct {
	ProviderID     string
	Symbols        []string
	RecordSymbols  map[string]bool // subset of Symbols with recording enabled
	IntervalMS     int64
	// SymbolToSubscription maps the effective symbol sent to the adapter
	// back to the subscription id that produced it, for history lookups
	// and for re-associating a fetched AssetData with its display symbol.
	SymbolToSubscription map[string]int64
}

// View groups subscriptions for display purposes; not consulted by the
// polling engine itself (visibility scopes are independent of views), but
// persisted and served read-only over the HTTP surface per spec.md §6.
type View struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ViewType  SubType `json:"view_type"`
	IsDefault bool    `json:"is_default"`
}
