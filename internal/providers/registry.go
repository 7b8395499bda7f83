package providers

import "github.com/haloboard/marketfeed/internal/domain"

// registryTable is the static provider-info table, constructed once at
// process start. It is the single source of truth for kind, auth
// requirements, streaming/pool-lookup support, and default intervals;
// Factory builds the concrete adapter for a row that has one implemented,
// and the scheduling manager consults DefaultIntervalMS for rows that have
// no explicit ProviderSettings.RefreshInterval override.
//
// 15 rows below have a concrete adapter (see the *.go files in this
// package); the remainder are registry-only — known upstreams the rest of
// the system can display, accept subscriptions for, and compute a default
// interval for, without yet shipping a fetch implementation. A
// registry-only id resolves through Factory to (nil, false).
var registryTable = []domain.ProviderInfo{
	// --- implemented ---
	{ID: "binance", Name: "Binance", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTCUSDT"},
	{ID: "coinbase", Name: "Coinbase", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTC-USD"},
	{ID: "coingecko", Name: "CoinGecko", Kind: domain.KindCrypto, KeyOptional: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 20000, SymbolFormatHint: "bitcoin"},
	{ID: "coinmarketcap", Name: "CoinMarketCap", Kind: domain.KindCrypto, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 30000, SymbolFormatHint: "BTC"},
	{ID: "kraken", Name: "Kraken", Kind: domain.KindCrypto, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "XBTUSD"},
	{ID: "yahoo", Name: "Yahoo Finance", Kind: domain.KindStock, NoKeyIntervalMS: 15000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL"},
	{ID: "finnhub", Name: "Finnhub", Kind: domain.KindBoth, KeyRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 10000, SymbolFormatHint: "AAPL / BINANCE:BTCUSDT"},
	{ID: "polygon", Name: "Polygon.io", Kind: domain.KindBoth, KeyRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL / X:BTCUSD"},
	{ID: "alpaca", Name: "Alpaca", Kind: domain.KindBoth, KeyRequired: true, SecretRequired: true, SupportsWebsocket: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 5000, SymbolFormatHint: "AAPL / BTC/USD"},
	{ID: "polymarket", Name: "Polymarket", Kind: domain.KindPrediction, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "condition_id"},
	{ID: "bitquery", Name: "Bitquery", Kind: domain.KindPrediction, KeyRequired: true, NoKeyIntervalMS: 30000, KeyedIntervalMS: 15000, SymbolFormatHint: "contract address"},
	{ID: "jupiter", Name: "Jupiter", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000, SymbolFormatHint: "SOL or auto:mintA:mintB"},
	{ID: "okx_dex", Name: "OKX DEX", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000, SymbolFormatHint: "ETH, sol:mint"},
	{ID: "raydium", Name: "Raydium", Kind: domain.KindDEX, KeyOptional: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000, SymbolFormatHint: "pool:mintFrom:mintTo"},
	{ID: "subgraph", Name: "The Graph Subgraph", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000, SymbolFormatHint: "protocol:pool:tokenFrom:tokenTo"},

	// --- registry-only (~20 rows, no shipped adapter yet) ---
	{ID: "cryptocompare", Name: "CryptoCompare", Kind: domain.KindCrypto, KeyOptional: true, NoKeyIntervalMS: 30000, KeyedIntervalMS: 15000, SymbolFormatHint: "BTC"},
	{ID: "bitfinex", Name: "Bitfinex", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "tBTCUSD"},
	{ID: "bybit", Name: "Bybit", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTCUSDT"},
	{ID: "okx", Name: "OKX", Kind: domain.KindCrypto, SupportsWebsocket: true, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTC-USDT"},
	{ID: "huobi", Name: "Huobi", Kind: domain.KindCrypto, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "btcusdt"},
	{ID: "gateio", Name: "Gate.io", Kind: domain.KindCrypto, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTC_USDT"},
	{ID: "kucoin", Name: "KuCoin", Kind: domain.KindCrypto, NoKeyIntervalMS: 5000, KeyedIntervalMS: 5000, SymbolFormatHint: "BTC-USDT"},
	{ID: "bitstamp", Name: "Bitstamp", Kind: domain.KindCrypto, NoKeyIntervalMS: 10000, KeyedIntervalMS: 10000, SymbolFormatHint: "btcusd"},
	{ID: "gemini", Name: "Gemini", Kind: domain.KindCrypto, NoKeyIntervalMS: 10000, KeyedIntervalMS: 10000, SymbolFormatHint: "btcusd"},
	{ID: "messari", Name: "Messari", Kind: domain.KindCrypto, KeyOptional: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 30000, SymbolFormatHint: "bitcoin"},
	{ID: "iexcloud", Name: "IEX Cloud", Kind: domain.KindStock, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL"},
	{ID: "twelvedata", Name: "Twelve Data", Kind: domain.KindBoth, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL"},
	{ID: "alphavantage", Name: "Alpha Vantage", Kind: domain.KindStock, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 60000, SymbolFormatHint: "AAPL"},
	{ID: "tradier", Name: "Tradier", Kind: domain.KindStock, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL"},
	{ID: "fmp", Name: "Financial Modeling Prep", Kind: domain.KindStock, KeyRequired: true, NoKeyIntervalMS: 60000, KeyedIntervalMS: 15000, SymbolFormatHint: "AAPL"},
	{ID: "manifold", Name: "Manifold Markets", Kind: domain.KindPrediction, NoKeyIntervalMS: 10000, KeyedIntervalMS: 10000, SymbolFormatHint: "market slug"},
	{ID: "kalshi", Name: "Kalshi", Kind: domain.KindPrediction, KeyRequired: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000, SymbolFormatHint: "ticker"},
	{ID: "dexscreener", Name: "DEX Screener", Kind: domain.KindDEX, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 15000, SymbolFormatHint: "pool address"},
	{ID: "uniswap_subgraph", Name: "Uniswap Subgraph", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000, SymbolFormatHint: "pool:tokenFrom:tokenTo"},
	{ID: "pancakeswap_subgraph", Name: "PancakeSwap Subgraph", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000, SymbolFormatHint: "pool:tokenFrom:tokenTo"},
	{ID: "orca", Name: "Orca", Kind: domain.KindDEX, KeyOptional: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000, SymbolFormatHint: "pool:mintFrom:mintTo"},
	{ID: "meteora", Name: "Meteora", Kind: domain.KindDEX, KeyOptional: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000, SymbolFormatHint: "pool:mintFrom:mintTo"},
}

// Registry is the static, process-lifetime lookup of ProviderInfo by
// provider id; building adapter instances is Factory's job.
type Registry struct {
	byID map[string]domain.ProviderInfo
}

// NewRegistry builds the registry from the static table.
func NewRegistry() *Registry {
	byID := make(map[string]domain.ProviderInfo, len(registryTable))
	for _, info := range registryTable {
		byID[info.ID] = info
	}
	return &Registry{byID: byID}
}

// Get returns a provider's static info and whether it exists.
func (r *Registry) Get(id string) (domain.ProviderInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// All returns every registered ProviderInfo, order not significant.
func (r *Registry) All() []domain.ProviderInfo {
	out := make([]domain.ProviderInfo, 0, len(r.byID))
	for _, info := range r.byID {
		out = append(out, info)
	}
	return out
}
