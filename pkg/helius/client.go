package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"solpilot/internal/autopilot"
)

// wrappedSolMint is the canonical wrapped SOL mint, used to price native SOL.
const wrappedSolMint = "So11111111111111111111111111111111111111112"

// Client represents a Helius API client.
type Client struct {
	apiKey     string
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a new Helius API client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		rpcURL: "https://mainnet.helius-rpc.com",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				IdleConnTimeout:       10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

type rpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

// rpcCall performs a JSON-RPC request and unmarshals the result into out.
func (c *Client) rpcCall(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/?api-key=%s", c.rpcURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, out)
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance returns the wallet's native SOL balance.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	var result balanceResult
	if err := c.rpcCall(ctx, "getBalance", []interface{}{address}, &result); err != nil {
		return 0, err
	}
	return float64(result.Value) / 1e9, nil
}

// assetsByOwnerResult mirrors the DAS getAssetsByOwner response, trimmed to
// the fungible-token fields this client consumes.
type assetsByOwnerResult struct {
	Items []asset `json:"items"`
}

type asset struct {
	ID        string     `json:"id"`
	Interface string     `json:"interface"`
	TokenInfo *tokenInfo `json:"token_info"`
}

type tokenInfo struct {
	Symbol    string     `json:"symbol"`
	Balance   uint64     `json:"balance"`
	Decimals  int        `json:"decimals"`
	PriceInfo *priceInfo `json:"price_info"`
}

type priceInfo struct {
	PricePerToken float64 `json:"price_per_token"`
	TotalPrice    float64 `json:"total_price"`
}

// GetPortfolio fetches the wallet's current composition: native SOL plus all
// fungible holdings with USD values from the DAS price feed.
func (c *Client) GetPortfolio(ctx context.Context, walletAddress string) (*autopilot.PortfolioSnapshot, error) {
	solBalance, err := c.GetBalance(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}

	params := map[string]interface{}{
		"ownerAddress": walletAddress,
		"page":         1,
		"limit":        1000,
		"displayOptions": map[string]interface{}{
			"showFungible":      true,
			"showNativeBalance": false,
		},
	}
	var result assetsByOwnerResult
	if err := c.rpcCall(ctx, "getAssetsByOwner", params, &result); err != nil {
		return nil, fmt.Errorf("failed to get assets: %w", err)
	}

	solPrice, err := c.AssetPrice(ctx, wrappedSolMint)
	if err != nil {
		// Portfolio totals degrade without a SOL quote but the snapshot
		// is still usable.
		solPrice = 0
	}

	snapshot := &autopilot.PortfolioSnapshot{
		WalletAddress: walletAddress,
		SolBalance:    solBalance,
		TotalValueUSD: solBalance * solPrice,
		FetchedAt:     time.Now(),
	}
	if solBalance > 0 {
		snapshot.Tokens = append(snapshot.Tokens, autopilot.TokenHolding{
			Mint:     wrappedSolMint,
			Symbol:   "SOL",
			Balance:  solBalance,
			Decimals: 9,
			ValueUSD: solBalance * solPrice,
			PriceUSD: solPrice,
		})
	}

	for _, item := range result.Items {
		if item.Interface != "FungibleToken" || item.TokenInfo == nil {
			continue
		}
		info := item.TokenInfo
		balance := float64(info.Balance)
		for i := 0; i < info.Decimals; i++ {
			balance /= 10
		}
		holding := autopilot.TokenHolding{
			Mint:     item.ID,
			Symbol:   info.Symbol,
			Balance:  balance,
			Decimals: info.Decimals,
		}
		if info.PriceInfo != nil {
			holding.ValueUSD = info.PriceInfo.TotalPrice
			holding.PriceUSD = info.PriceInfo.PricePerToken
		}
		snapshot.Tokens = append(snapshot.Tokens, holding)
		snapshot.TotalValueUSD += holding.ValueUSD
	}

	return snapshot, nil
}

type assetResult struct {
	TokenInfo *tokenInfo `json:"token_info"`
}

// AssetPrice returns the DAS USD price for a mint.
func (c *Client) AssetPrice(ctx context.Context, mint string) (float64, error) {
	params := map[string]interface{}{"id": mint}
	var result assetResult
	if err := c.rpcCall(ctx, "getAsset", params, &result); err != nil {
		return 0, err
	}
	if result.TokenInfo == nil || result.TokenInfo.PriceInfo == nil {
		return 0, fmt.Errorf("no price info for mint %s", mint)
	}
	return result.TokenInfo.PriceInfo.PricePerToken, nil
}
