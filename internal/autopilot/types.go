package autopilot

import (
	"errors"
	"fmt"
	"time"
)

// ErrUpstream marks a portfolio gateway failure. A monitor cycle cannot
// proceed without a portfolio, so this aborts the run for that wallet.
var ErrUpstream = errors.New("upstream gateway error")

// UpstreamError wraps a gateway failure with the operation that failed.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// TokenHolding represents a single token position inside a portfolio.
type TokenHolding struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Balance  float64 `json:"balance"`
	Decimals int     `json:"decimals"`
	ValueUSD float64 `json:"value_usd"`
	PriceUSD float64 `json:"price_usd"`
}

// PortfolioSnapshot is a point-in-time view of a wallet. Immutable once
// produced by the portfolio gateway.
type PortfolioSnapshot struct {
	WalletAddress string         `json:"wallet_address"`
	SolBalance    float64        `json:"sol_balance"`
	TotalValueUSD float64        `json:"total_value_usd"`
	Tokens        []TokenHolding `json:"tokens"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

// TokenValue returns the USD value held in symbol, 0 if not held.
func (p *PortfolioSnapshot) TokenValue(symbol string) float64 {
	for _, t := range p.Tokens {
		if t.Symbol == symbol {
			return t.ValueUSD
		}
	}
	return 0
}

// TokenBalance returns the balance held in symbol, 0 if not held.
func (p *PortfolioSnapshot) TokenBalance(symbol string) float64 {
	for _, t := range p.Tokens {
		if t.Symbol == symbol {
			return t.Balance
		}
	}
	return 0
}

// PriceObservation is one sample of a symbol's USD price.
type PriceObservation struct {
	Symbol    string    `json:"symbol"`
	PriceUSD  float64   `json:"price_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceChange is a material move of one symbol between two monitor cycles.
// Changes below the materiality threshold are never emitted.
type PriceChange struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousPrice float64   `json:"previous_price"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// OpportunityKind enumerates the signals the monitor can derive.
type OpportunityKind string

const (
	OpportunityBuyDip     OpportunityKind = "buy_dip"
	OpportunityTakeProfit OpportunityKind = "take_profit"
	OpportunityRebalance  OpportunityKind = "rebalance"
	OpportunitySentiment  OpportunityKind = "sentiment"
)

// Opportunity is a typed trading signal derived from price changes and the
// current portfolio. Never persisted; it belongs to a single snapshot.
type Opportunity struct {
	Kind         OpportunityKind `json:"kind"`
	Token        string          `json:"token"`
	Reason       string          `json:"reason"`
	CurrentPrice float64         `json:"current_price"`
	TargetPrice  float64         `json:"target_price,omitempty"`
	Confidence   float64         `json:"confidence"`
	Timestamp    time.Time       `json:"timestamp"`
}

// PortfolioDelta is the portfolio-level change versus the previous snapshot.
type PortfolioDelta struct {
	ChangePercent float64 `json:"change_percent"`
	ChangeUSD     float64 `json:"change_usd"`
}

// MonitorSnapshot aggregates one monitor cycle's output for a wallet.
// Exactly one is kept per wallet, replaced each cycle.
type MonitorSnapshot struct {
	Timestamp     time.Time          `json:"timestamp"`
	Portfolio     *PortfolioSnapshot `json:"portfolio"`
	PriceChanges  []PriceChange      `json:"price_changes"`
	Opportunities []Opportunity      `json:"opportunities"`
	Delta         PortfolioDelta     `json:"delta"`
	// SkippedTokens lists symbols whose price lookup failed this cycle,
	// with the reason. A skip is not fatal to the cycle.
	SkippedTokens []SkippedToken `json:"skipped_tokens,omitempty"`
}

// SkippedToken records a per-token price lookup failure.
type SkippedToken struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// OrderAction enumerates what the executor should do with an order.
type OrderAction string

const (
	ActionBuy   OrderAction = "buy"
	ActionSell  OrderAction = "sell"
	ActionDCA   OrderAction = "dca"
	ActionLimit OrderAction = "limit"
)

// StrategyOrder is a candidate action produced by the strategy evaluator.
// It is immutable: the risk gate drops rejected orders, it never edits them.
type StrategyOrder struct {
	Strategy    string            `json:"strategy"`
	Token       string            `json:"token"`
	Action      OrderAction       `json:"action"`
	InputToken  string            `json:"input_token"`
	OutputToken string            `json:"output_token"`
	InputAmount float64           `json:"input_amount"`
	TargetPrice float64           `json:"target_price,omitempty"`
	Reason      string            `json:"reason"`
	Confidence  float64           `json:"confidence"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RiskLimits is the per-wallet risk configuration. Held in memory; callers
// must not assume it survives a process restart.
type RiskLimits struct {
	WalletAddress             string   `json:"wallet_address"`
	MaxDailyLossUSD           float64  `json:"max_daily_loss_usd"`
	MaxOrderSizeUSD           float64  `json:"max_order_size_usd"`
	MaxSlippagePercent        float64  `json:"max_slippage_percent"`
	TokenWhitelist            []string `json:"token_whitelist"`
	TokenBlacklist            []string `json:"token_blacklist"`
	MaxPortfolioConcentration float64  `json:"max_portfolio_concentration"`
	EnableAutopilot           bool     `json:"enable_autopilot"`
}

// RiskLimitsPatch carries a partial update; nil fields keep the stored value.
type RiskLimitsPatch struct {
	MaxDailyLossUSD           *float64  `json:"max_daily_loss_usd"`
	MaxOrderSizeUSD           *float64  `json:"max_order_size_usd"`
	MaxSlippagePercent        *float64  `json:"max_slippage_percent"`
	TokenWhitelist            *[]string `json:"token_whitelist"`
	TokenBlacklist            *[]string `json:"token_blacklist"`
	MaxPortfolioConcentration *float64  `json:"max_portfolio_concentration"`
	EnableAutopilot           *bool     `json:"enable_autopilot"`
}

// RiskCheckResult is the risk gate's verdict. A rejection is normal control
// flow, not an error.
type RiskCheckResult struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OrderStatus enumerates executed-order outcomes.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusSuccess OrderStatus = "success"
	StatusFailed  OrderStatus = "failed"
)

// ExecutedOrder is the audit record for one dispatch attempt.
type ExecutedOrder struct {
	ID              string            `json:"id"`
	WalletAddress   string            `json:"wallet_address"`
	Timestamp       time.Time         `json:"timestamp"`
	Strategy        string            `json:"strategy"`
	Action          OrderAction       `json:"action"`
	InputToken      string            `json:"input_token"`
	OutputToken     string            `json:"output_token"`
	InputAmount     float64           `json:"input_amount"`
	EstimatedOutput float64           `json:"estimated_output,omitempty"`
	Status          OrderStatus       `json:"status"`
	Transaction     string            `json:"transaction,omitempty"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ExecutionStats summarizes the audit log.
type ExecutionStats struct {
	Total       int            `json:"total"`
	Success     int            `json:"success"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate"`
	ByStrategy  map[string]int `json:"by_strategy"`
}

// RunReport is the orchestrator's result for one wallet cycle.
type RunReport struct {
	WalletAddress string           `json:"wallet_address"`
	Snapshot      *MonitorSnapshot `json:"snapshot"`
	Opportunities []Opportunity    `json:"opportunities"`
	Executed      []ExecutedOrder  `json:"executed"`
	// Skipped lists candidate orders dropped by validation or the risk
	// gate, with the reason. Skips do not fail the run.
	Skipped []SkippedOrder `json:"skipped,omitempty"`
}

// SkippedOrder records a candidate order that was not executed.
type SkippedOrder struct {
	Order  StrategyOrder `json:"order"`
	Reason string        `json:"reason"`
}
