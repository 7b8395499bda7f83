package providers

import "strings"

// quoteSuffixes is the ordered suffix-match list used when a symbol carries
// no explicit separator. Order matters: BUSD is tried before USD so
// "BTCBUSD" doesn't get split as base="BTCB" quote="USD".
var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "GBP", "BTC", "ETH", "BNB"}

// ParseCryptoSymbol splits a canonical crypto symbol into (base, quote)
// using precedence: hyphen, then slash, then suffix match against
// quoteSuffixes, then fall back to (input, USD).
func ParseCryptoSymbol(symbol string) (base, quote string) {
	if idx := strings.Index(symbol, "-"); idx > 0 {
		return symbol[:idx], symbol[idx+1:]
	}
	if idx := strings.Index(symbol, "/"); idx > 0 {
		return symbol[:idx], symbol[idx+1:]
	}
	upper := strings.ToUpper(symbol)
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(upper, suffix) && len(upper) > len(suffix) {
			return symbol[:len(symbol)-len(suffix)], symbol[len(symbol)-len(suffix):]
		}
	}
	return symbol, "USD"
}

// FormatHyphenated renders (base, quote) the way Coinbase expects it:
// "BTC-USD".
func FormatHyphenated(base, quote string) string {
	return strings.ToUpper(base) + "-" + strings.ToUpper(quote)
}

// FormatSlashed renders (base, quote) the way Alpaca's crypto endpoints
// expect it: "BTC/USD".
func FormatSlashed(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// FormatConcatenated renders (base, quote) the way Binance and Kraken
// expect it: "BTCUSDT".
func FormatConcatenated(base, quote string) string {
	return strings.ToUpper(base) + strings.ToUpper(quote)
}

// FormatUnderscored renders (base, quote) underscore-joined, lowercased —
// the form some DEX aggregator quote APIs expect for a mint pair.
func FormatUnderscored(base, quote string) string {
	return strings.ToLower(base) + "_" + strings.ToLower(quote)
}

// FormatLowercase lowercases a symbol as-is — CoinGecko's coin-id form.
func FormatLowercase(symbol string) string {
	return strings.ToLower(symbol)
}

// FormatExchangePrefixed renders "EXCHANGE:SYMBOL", Finnhub's crypto
// convention (e.g. "BINANCE:BTCUSDT").
func FormatExchangePrefixed(exchange, symbol string) string {
	return strings.ToUpper(exchange) + ":" + symbol
}

// SplitDEXSymbol splits the "pool:from:to" composed form a DEX subscription
// sends as its effective symbol back into its three parts. Returns ok=false
// if the symbol isn't in that form.
func SplitDEXSymbol(symbol string) (pool, from, to string, ok bool) {
	parts := strings.Split(symbol, ":")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
