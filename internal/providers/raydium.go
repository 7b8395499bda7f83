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

const (
	raydiumPriceURL = "https://api-v3.raydium.io/mint/price"
	raydiumPoolURL  = "https://api-v3.raydium.io/pools/info/ids"
)

// RaydiumAdapter calls Raydium's public mint-price endpoint, which
// accepts a comma-separated batch of mint addresses in one request — an
// unauthenticated provider (key is optional for a higher rate limit),
// family 1.
type RaydiumAdapter struct {
	client *http.Client
	apiKey string
}

func NewRaydiumAdapter(client *http.Client, apiKey string) *RaydiumAdapter {
	return &RaydiumAdapter{client: client, apiKey: apiKey}
}

func (a *RaydiumAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "raydium", Name: "Raydium", Kind: domain.KindDEX, KeyOptional: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000}
}

func (a *RaydiumAdapter) addHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}

type raydiumPriceResponse struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data"`
}

func (a *RaydiumAdapter) FetchPrice(ctx context.Context, mint string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{mint})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("raydium: no price for mint %s", mint)
	}
	return prices[0], nil
}

func (a *RaydiumAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s?mints=%s", raydiumPriceURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("raydium: building request: %w", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raydium: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raydium: upstream returned status %d", resp.StatusCode)
	}

	var parsed raydiumPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("raydium: decoding response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("raydium: upstream reported failure")
	}

	out := make([]domain.AssetData, 0, len(symbols))
	for _, mint := range symbols {
		raw, ok := parsed.Data[mint]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		out = append(out, domain.NewAssetData("raydium", mint, price))
	}
	return out, nil
}

type raydiumPoolInfo struct {
	MintA struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"mintA"`
	MintB struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"mintB"`
}

type raydiumPoolResponse struct {
	Success bool              `json:"success"`
	Data    []raydiumPoolInfo `json:"data"`
}

// LookupPool accepts either a bare pool id or a "pool:mintFrom:mintTo"
// form; when only a pool id is given it resolves both mints from
// Raydium's pool-info endpoint.
func (a *RaydiumAdapter) LookupPool(ctx context.Context, poolAddress string) (domain.PoolMetadata, error) {
	poolID := poolAddress
	if pool, _, _, ok := SplitDEXSymbol(poolAddress); ok {
		poolID = pool
	}

	url := fmt.Sprintf("%s?ids=%s", raydiumPoolURL, poolID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("raydium: building pool request: %w", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("raydium: pool request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.PoolMetadata{}, fmt.Errorf("raydium: upstream returned status %d", resp.StatusCode)
	}

	var parsed raydiumPoolResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("raydium: decoding pool response: %w", err)
	}
	if !parsed.Success || len(parsed.Data) == 0 {
		return domain.PoolMetadata{}, fmt.Errorf("raydium: no pool info for %s", poolAddress)
	}

	p := parsed.Data[0]
	return domain.PoolMetadata{
		Token0Address: p.MintA.Address,
		Token0Symbol:  p.MintA.Symbol,
		Token1Address: p.MintB.Address,
		Token1Symbol:  p.MintB.Symbol,
	}, nil
}
