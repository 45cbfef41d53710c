package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solpilot/internal/autopilot"
)

const defaultSlippageBps = 50

// Client talks to the Jupiter lite API: quotes, swaps, trigger (limit) and
// recurring (DCA) orders, plus token search and the price feed.
type Client struct {
	baseURL    string
	httpClient *http.Client

	tokenCacheMu sync.RWMutex
	tokenCache   map[string]*autopilot.TokenInfo

	priceCacheMu sync.RWMutex
	priceCache   map[string]priceCacheEntry
}

type priceCacheEntry struct {
	price     float64
	updatedAt time.Time
}

// NewClient creates a Jupiter client.
func NewClient() *Client {
	return &Client{
		baseURL: "https://lite-api.jup.ag",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokenCache: make(map[string]*autopilot.TokenInfo),
		priceCache: make(map[string]priceCacheEntry),
	}
}

// QuoteResponse represents the response structure from the Jupiter quote API.
type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          int         `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ContextSlot          int         `json:"contextSlot"`
	SwapUsdValue         string      `json:"swapUsdValue"`
}

// RoutePlan represents a route plan in the Jupiter response.
type RoutePlan struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo represents swap information in a route plan.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// GetQuote retrieves a swap quote. amount is in raw units of the input mint.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*QuoteResponse, error) {
	params := url.Values{}
	params.Add("inputMint", inputMint)
	params.Add("outputMint", outputMint)
	params.Add("amount", strconv.FormatUint(amount, 10))
	params.Add("slippageBps", strconv.Itoa(slippageBps))
	params.Add("restrictIntermediateTokens", "true")

	var quote QuoteResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/swap/v1/quote?%s", c.baseURL, params.Encode()), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// PrepareSwap quotes and builds an unsigned swap transaction for the order
// gateway contract. Amounts are human units; decimals come from token search.
func (c *Client) PrepareSwap(ctx context.Context, req autopilot.SwapRequest) (*autopilot.SwapResult, error) {
	input, err := c.mustResolve(ctx, req.InputToken)
	if err != nil {
		return nil, err
	}
	output, err := c.mustResolve(ctx, req.OutputToken)
	if err != nil {
		return nil, err
	}

	rawIn := rawAmount(req.Amount, input.Decimals)
	quote, err := c.GetQuote(ctx, input.Address, output.Address, rawIn, defaultSlippageBps)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	body := map[string]interface{}{
		"quoteResponse": quote,
		"userPublicKey": req.WalletAddress,
	}
	var swap swapResponse
	if err := c.postJSON(ctx, c.baseURL+"/swap/v1/swap", body, &swap); err != nil {
		return nil, fmt.Errorf("failed to build swap transaction: %w", err)
	}

	outRaw, err := strconv.ParseFloat(quote.OutAmount, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse outAmount: %w", err)
	}
	estimatedOutput := outRaw
	for i := 0; i < output.Decimals; i++ {
		estimatedOutput /= 10
	}
	priceImpact, _ := strconv.ParseFloat(quote.PriceImpactPct, 64)

	return &autopilot.SwapResult{
		EstimatedOutput: estimatedOutput,
		PriceImpactPct:  priceImpact,
		Transaction:     swap.SwapTransaction,
	}, nil
}

type triggerOrderResponse struct {
	Transaction string `json:"transaction"`
	RequestID   string `json:"requestId"`
}

// CreateLimitOrder submits a trigger-API order and returns the unsigned
// transaction.
func (c *Client) CreateLimitOrder(ctx context.Context, req autopilot.LimitOrderRequest) (string, error) {
	body := map[string]interface{}{
		"inputMint":  req.InputMint,
		"outputMint": req.OutputMint,
		"maker":      req.Maker,
		"payer":      req.Payer,
		"params": map[string]interface{}{
			"makingAmount": strconv.FormatUint(req.MakingAmount, 10),
			"takingAmount": strconv.FormatUint(req.TakingAmount, 10),
			"expiredAt":    strconv.FormatInt(req.ExpiredAt, 10),
		},
	}
	var resp triggerOrderResponse
	if err := c.postJSON(ctx, c.baseURL+"/trigger/v1/createOrder", body, &resp); err != nil {
		return "", fmt.Errorf("failed to create limit order: %w", err)
	}
	return resp.Transaction, nil
}

type recurringOrderResponse struct {
	Transaction string `json:"transaction"`
	RequestID   string `json:"requestId"`
}

// CreateDCAOrder submits a recurring-API order and returns the unsigned
// transaction.
func (c *Client) CreateDCAOrder(ctx context.Context, req autopilot.DCAOrderRequest) (string, error) {
	totalIn := req.AmountPerCycle * uint64(req.NumberOfCycles)
	body := map[string]interface{}{
		"user":       req.Payer,
		"inputMint":  req.InputMint,
		"outputMint": req.OutputMint,
		"params": map[string]interface{}{
			"time": map[string]interface{}{
				"inAmount":       strconv.FormatUint(totalIn, 10),
				"numberOfOrders": req.NumberOfCycles,
				"interval":       req.CycleFrequencySeconds,
			},
		},
	}
	var resp recurringOrderResponse
	if err := c.postJSON(ctx, c.baseURL+"/recurring/v1/createOrder", body, &resp); err != nil {
		return "", fmt.Errorf("failed to create recurring order: %w", err)
	}
	return resp.Transaction, nil
}

// searchToken mirrors the tokens-API search result, trimmed.
type searchToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// FindTokenBySymbol resolves a symbol to mint metadata via token search.
// Returns (nil, nil) when no exact symbol match exists. Results are cached.
func (c *Client) FindTokenBySymbol(ctx context.Context, symbol string) (*autopilot.TokenInfo, error) {
	c.tokenCacheMu.RLock()
	cached, ok := c.tokenCache[symbol]
	c.tokenCacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	var results []searchToken
	searchURL := fmt.Sprintf("%s/tokens/v2/search?query=%s", c.baseURL, url.QueryEscape(symbol))
	if err := c.getJSON(ctx, searchURL, &results); err != nil {
		return nil, fmt.Errorf("token search failed: %w", err)
	}

	for _, t := range results {
		if t.Symbol == symbol {
			info := &autopilot.TokenInfo{Address: t.ID, Symbol: t.Symbol, Decimals: t.Decimals}
			c.tokenCacheMu.Lock()
			c.tokenCache[symbol] = info
			c.tokenCacheMu.Unlock()
			return info, nil
		}
	}
	return nil, nil
}

// priceEntry mirrors the price API v3 per-mint payload.
type priceEntry struct {
	USDPrice float64 `json:"usdPrice"`
}

// GetPrice returns the current USD price for a symbol. On a feed failure the
// last cached price is served when available, so monitor cycles survive
// transient feed outages.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	token, err := c.mustResolve(ctx, symbol)
	if err != nil {
		return 0, err
	}

	var prices map[string]priceEntry
	priceURL := fmt.Sprintf("%s/price/v3?ids=%s", c.baseURL, url.QueryEscape(token.Address))
	if err := c.getJSON(ctx, priceURL, &prices); err != nil {
		c.priceCacheMu.RLock()
		entry, ok := c.priceCache[symbol]
		c.priceCacheMu.RUnlock()
		if ok {
			return entry.price, nil
		}
		return 0, fmt.Errorf("failed to get price and no cached price: %w", err)
	}

	entry, ok := prices[token.Address]
	if !ok || entry.USDPrice <= 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}

	c.priceCacheMu.Lock()
	c.priceCache[symbol] = priceCacheEntry{price: entry.USDPrice, updatedAt: time.Now()}
	c.priceCacheMu.Unlock()

	return entry.USDPrice, nil
}

func (c *Client) mustResolve(ctx context.Context, symbol string) (*autopilot.TokenInfo, error) {
	token, err := c.FindTokenBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("unknown token symbol %s", symbol)
	}
	return token, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, fullURL string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
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
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

func rawAmount(amount float64, decimals int) uint64 {
	raw := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	if raw.IsNegative() {
		return 0
	}
	return raw.BigInt().Uint64()
}
