package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const okxDEXBaseURL = "https://www.okx.com/api/v5/dex/market"

// OKXDEXAdapter calls OKX's DEX market-price endpoint, which accepts a
// batch array body of chain/token pairs in one POST — batch-strategy
// family 1 expressed as a JSON body rather than a query string.
type OKXDEXAdapter struct {
	client *http.Client
	apiKey string
}

func NewOKXDEXAdapter(client *http.Client, apiKey string) *OKXDEXAdapter {
	return &OKXDEXAdapter{client: client, apiKey: apiKey}
}

func (a *OKXDEXAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "okx_dex", Name: "OKX DEX", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000}
}

type okxDEXPriceRequestItem struct {
	ChainIndex   string `json:"chainIndex"`
	TokenAddress string `json:"tokenContractAddress"`
}

type okxDEXPriceResult struct {
	ChainIndex   string `json:"chainIndex"`
	TokenAddress string `json:"tokenContractAddress"`
	Price        string `json:"price"`
}

type okxDEXPriceResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data []okxDEXPriceResult `json:"data"`
}

// parseChainToken splits a "chain:tokenAddress" symbol (e.g.
// "1:0xdac17f...") used to disambiguate the same token address across
// chains.
func parseChainToken(symbol string) (chain, token string) {
	parts := strings.SplitN(symbol, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "1", symbol
}

func (a *OKXDEXAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("okx_dex: no price for %s", symbol)
	}
	return prices[0], nil
}

func (a *OKXDEXAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	items := make([]okxDEXPriceRequestItem, 0, len(symbols))
	for _, s := range symbols {
		chain, token := parseChainToken(s)
		items = append(items, okxDEXPriceRequestItem{ChainIndex: chain, TokenAddress: token})
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("okx_dex: marshaling request: %w", err)
	}

	url := okxDEXBaseURL + "/price"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("okx_dex: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", a.apiKey)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx_dex: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("okx_dex: upstream returned status %d", resp.StatusCode)
	}

	var parsed okxDEXPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("okx_dex: decoding response: %w", err)
	}
	if parsed.Code != "0" {
		return nil, fmt.Errorf("okx_dex: %s", parsed.Msg)
	}

	out := make([]domain.AssetData, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			continue
		}
		symbol := r.ChainIndex + ":" + r.TokenAddress
		out = append(out, domain.NewAssetData("okx_dex", symbol, price))
	}
	return out, nil
}

type okxDEXPairInfoRequest struct {
	ChainIndex  string `json:"chainIndex"`
	PairAddress string `json:"pairAddress"`
}

type okxDEXPairInfoResult struct {
	BaseToken struct {
		TokenContractAddress string `json:"tokenContractAddress"`
		TokenSymbol          string `json:"tokenSymbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		TokenContractAddress string `json:"tokenContractAddress"`
		TokenSymbol          string `json:"tokenSymbol"`
	} `json:"quoteToken"`
}

type okxDEXPairInfoResponse struct {
	Code string                 `json:"code"`
	Msg  string                 `json:"msg"`
	Data []okxDEXPairInfoResult `json:"data"`
}

// LookupPool resolves a "chain:pairAddress" pool identifier to its two
// constituent tokens via OKX's pair-info endpoint.
func (a *OKXDEXAdapter) LookupPool(ctx context.Context, poolAddress string) (domain.PoolMetadata, error) {
	chain, pair := parseChainToken(poolAddress)

	payload, err := json.Marshal([]okxDEXPairInfoRequest{{ChainIndex: chain, PairAddress: pair}})
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: marshaling pair request: %w", err)
	}

	url := okxDEXBaseURL + "/pair-info"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: building pair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", a.apiKey)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: pair request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: upstream returned status %d", resp.StatusCode)
	}

	var parsed okxDEXPairInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: decoding pair response: %w", err)
	}
	if parsed.Code != "0" || len(parsed.Data) == 0 {
		return domain.PoolMetadata{}, fmt.Errorf("okx_dex: no pair info for %s", poolAddress)
	}

	p := parsed.Data[0]
	return domain.PoolMetadata{
		Token0Address: p.BaseToken.TokenContractAddress,
		Token0Symbol:  p.BaseToken.TokenSymbol,
		Token1Address: p.QuoteToken.TokenContractAddress,
		Token1Symbol:  p.QuoteToken.TokenSymbol,
	}, nil
}
