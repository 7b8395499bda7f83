package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const (
	jupiterPriceBaseURL = "https://api.jup.ag/price/v2"
	jupiterQuoteBaseURL = "https://api.jup.ag/swap/v1/quote"
)

// JupiterAdapter implements batch-strategy family 1 for its price
// endpoint (native multi-mint via a comma-separated `ids` parameter) and
// also exposes PoolLookuper by deriving token pairing from a swap quote
// against a known base mint.
type JupiterAdapter struct {
	client *http.Client
	apiKey string
}

func NewJupiterAdapter(client *http.Client, apiKey string) *JupiterAdapter {
	return &JupiterAdapter{client: client, apiKey: apiKey}
}

func (a *JupiterAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "jupiter", Name: "Jupiter", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 10000, KeyedIntervalMS: 5000}
}

type jupiterPriceEntry struct {
	Price string `json:"price"`
}

type jupiterPriceResponse struct {
	Data map[string]jupiterPriceEntry `json:"data"`
}

func (a *JupiterAdapter) FetchPrice(ctx context.Context, mint string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{mint})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("jupiter: no price for mint %s", mint)
	}
	return prices[0], nil
}

func (a *JupiterAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	ids := symbols[0]
	for _, s := range symbols[1:] {
		ids += "," + s
	}

	url := fmt.Sprintf("%s?ids=%s", jupiterPriceBaseURL, ids)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: upstream returned status %d", resp.StatusCode)
	}

	var parsed jupiterPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("jupiter: decoding response: %w", err)
	}

	out := make([]domain.AssetData, 0, len(symbols))
	for _, mint := range symbols {
		entry, ok := parsed.Data[mint]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			continue
		}
		out = append(out, domain.NewAssetData("jupiter", mint, price))
	}
	return out, nil
}

type jupiterQuoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
}

// LookupPool resolves the token pairing for a composed "auto:mintA:mintB"
// pool address by asking the swap-quote endpoint which two mints it
// route between, since Jupiter has no pool registry of its own — it
// aggregates across every AMM's pools.
func (a *JupiterAdapter) LookupPool(ctx context.Context, poolAddress string) (domain.PoolMetadata, error) {
	_, mintA, mintB, ok := SplitDEXSymbol(poolAddress)
	if !ok {
		return domain.PoolMetadata{}, fmt.Errorf("jupiter: pool address %q is not in pool:mintA:mintB form", poolAddress)
	}

	url := fmt.Sprintf("%s?inputMint=%s&outputMint=%s&amount=1000000", jupiterQuoteBaseURL, mintA, mintB)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("jupiter: building quote request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("jupiter: quote request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.PoolMetadata{}, fmt.Errorf("jupiter: upstream returned status %d", resp.StatusCode)
	}

	var q jupiterQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("jupiter: decoding quote response: %w", err)
	}

	return domain.PoolMetadata{
		Token0Address: q.InputMint,
		Token0Symbol:  mintA,
		Token1Address: q.OutputMint,
		Token1Symbol:  mintB,
	}, nil
}
