package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

const bitqueryBaseURL = "https://streaming.bitquery.io/graphql"

// BitqueryAdapter queries a contract's latest trade price via GraphQL.
// Bitquery's schema allows an `OR` filter across multiple contract
// addresses in one query, so FetchPrices issues one request naming every
// requested address — the GraphQL analogue of batch-strategy family 1.
type BitqueryAdapter struct {
	client *http.Client
	apiKey string
}

func NewBitqueryAdapter(client *http.Client, apiKey string) *BitqueryAdapter {
	return &BitqueryAdapter{client: client, apiKey: apiKey}
}

func (a *BitqueryAdapter) Info() domain.ProviderInfo {
	return domain.ProviderInfo{ID: "bitquery", Name: "Bitquery", Kind: domain.KindPrediction, KeyRequired: true, NoKeyIntervalMS: 30000, KeyedIntervalMS: 15000}
}

const bitqueryQueryTemplate = `{
  EVM(dataset: combined) {
    DEXTradeByTokens(
      where: {Trade: {Currency: {SmartContract: {in: %s}}}}
      orderBy: {descending: Block_Time}
      limit: {count: 1}
    ) {
      Trade { Currency { SmartContract } PriceInUSD }
    }
  }
}`

type bitqueryGraphQLRequest struct {
	Query string `json:"query"`
}

type bitqueryTradeNode struct {
	Trade struct {
		Currency struct {
			SmartContract string `json:"SmartContract"`
		} `json:"Currency"`
		PriceInUSD float64 `json:"PriceInUSD"`
	} `json:"Trade"`
}

type bitqueryResponse struct {
	Data struct {
		EVM struct {
			DEXTradeByTokens []bitqueryTradeNode `json:"DEXTradeByTokens"`
		} `json:"EVM"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *BitqueryAdapter) FetchPrice(ctx context.Context, contractAddress string) (domain.AssetData, error) {
	prices, err := a.FetchPrices(ctx, []string{contractAddress})
	if err != nil {
		return domain.AssetData{}, err
	}
	if len(prices) == 0 {
		return domain.AssetData{}, fmt.Errorf("bitquery: no trade found for %s", contractAddress)
	}
	return prices[0], nil
}

func (a *BitqueryAdapter) FetchPrices(ctx context.Context, symbols []string) ([]domain.AssetData, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	addressList, err := json.Marshal(symbols)
	if err != nil {
		return nil, fmt.Errorf("bitquery: marshaling address list: %w", err)
	}
	query := fmt.Sprintf(bitqueryQueryTemplate, addressList)

	body, err := json.Marshal(bitqueryGraphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("bitquery: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bitqueryBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bitquery: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitquery: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitquery: upstream returned status %d", resp.StatusCode)
	}

	var parsed bitqueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("bitquery: decoding response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("bitquery: %s", parsed.Errors[0].Message)
	}

	out := make([]domain.AssetData, 0, len(parsed.Data.EVM.DEXTradeByTokens))
	for _, node := range parsed.Data.EVM.DEXTradeByTokens {
		addr := node.Trade.Currency.SmartContract
		out = append(out, domain.NewAssetData("bitquery", addr, decimal.NewFromFloat(node.Trade.PriceInUSD)))
	}
	return out, nil
}
