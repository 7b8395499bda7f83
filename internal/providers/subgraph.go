package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

// SubgraphAdapter queries an arbitrary Graph Protocol subgraph (Uniswap,
// PancakeSwap, or any AMM deploying the same `Pool`/`Pair` entity shape)
// at a caller-supplied URL. Symbols are "protocol:pool:tokenFrom:tokenTo"
// identifiers; FetchPrices batches every pool into a single GraphQL
// request using one aliased field per pool, the GraphQL analogue of
// batch-strategy family 1.
type SubgraphAdapter struct {
	client *http.Client
	apiKey string
	apiURL string
}

func NewSubgraphAdapter(client *http.Client, apiKey, apiURL string) *SubgraphAdapter {
	return &SubgraphAdapter{client: client, apiKey: apiKey, apiURL: apiURL}
}

func (a *SubgraphAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "subgraph", Name: "The Graph Subgraph", Kind: domain.KindDEX, KeyRequired: true, SupportsPoolLookup: true, NoKeyIntervalMS: 15000, KeyedIntervalMS: 10000}
}

type subgraphGraphQLRequest struct {
	Query string `json:"query"`
}

type subgraphPoolFields struct {
	Token0Price string `json:"token0Price"`
	Token1Price string `json:"token1Price"`
	Token0      struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	} `json:"token0"`
	Token1 struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	} `json:"token1"`
}

type subgraphGraphQLResponse struct {
	Data   map[string]subgraphPoolFields `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// aliasFor builds a stable GraphQL alias from a pool address so the batched
// response can be mapped back to the originating symbol.
func aliasFor(poolAddress string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, poolAddress)
	return "p_" + sanitized
}

// subgraphPoolID extracts the pool id from a "protocol:pool:tokenFrom:tokenTo"
// symbol, a "pool:tokenFrom:tokenTo" composed symbol, or a bare pool id.
func subgraphPoolID(symbol string) string {
	parts := strings.Split(symbol, ":")
	switch len(parts) {
	case 4:
		return parts[1]
	case 3:
		return parts[0]
	default:
		return symbol
	}
}

func (a *SubgraphAdapter) FetchPrice(ctx context.Context, symbol string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("subgraph: no price for %s", symbol)
	}
	return prices[0], nil
}

func (a *SubgraphAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	aliasToSymbol := make(map[string]string, len(symbols))
	var fields strings.Builder
	for _, symbol := range symbols {
		pool := subgraphPoolID(symbol)
		alias := aliasFor(symbol)
		aliasToSymbol[alias] = symbol
		fmt.Fprintf(&fields, `%s: pool(id: %q) { token0Price token1Price token0 { id symbol } token1 { id symbol } } `, alias, strings.ToLower(pool))
	}

	query := fmt.Sprintf("{ %s }", fields.String())
	body, err := json.Marshal(subgraphGraphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("subgraph: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("subgraph: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph: upstream returned status %d", resp.StatusCode)
	}

	var parsed subgraphGraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("subgraph: decoding response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("subgraph: %s", parsed.Errors[0].Message)
	}

	out := make([]domain.AssetData, 0, len(parsed.Data))
	for alias, pool := range parsed.Data {
		symbol, ok := aliasToSymbol[alias]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(pool.Token0Price)
		if err != nil {
			continue
		}
		out = append(out, domain.NewAssetData("subgraph", symbol, price))
	}
	return out, nil
}

// LookupPool resolves the two tokens of a "protocol:pool:tokenFrom:tokenTo",
// "pool:tokenFrom:tokenTo" or bare pool-id symbol by querying the same pool
// entity used for pricing.
func (a *SubgraphAdapter) LookupPool(ctx context.Context, poolAddress string) (domain.PoolMetadata, error) {
	pool := subgraphPoolID(poolAddress)

	query := fmt.Sprintf(`{ pool(id: %q) { token0 { id symbol } token1 { id symbol } } }`, strings.ToLower(pool))
	body, err := json.Marshal(subgraphGraphQLRequest{Query: query})
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: marshaling pool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: building pool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: pool request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: upstream returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Pool *subgraphPoolFields `json:"pool"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: decoding pool response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: %s", parsed.Errors[0].Message)
	}
	if parsed.Data.Pool == nil {
		return domain.PoolMetadata{}, fmt.Errorf("subgraph: no pool found for %s", poolAddress)
	}

	p := parsed.Data.Pool
	return domain.PoolMetadata{
		Token0Address: p.Token0.ID,
		Token0Symbol:  p.Token0.Symbol,
		Token1Address: p.Token1.ID,
		Token1Symbol:  p.Token1.Symbol,
	}, nil
}
