package autopilot

import (
	"fmt"
	"math"
	"sort"
)

// Strategy names. Each name carries exactly one parameter struct on its
// StrategyConfig.
const (
	StrategyBuyDip     = "buy-dip"
	StrategyTakeProfit = "take-profit"
	StrategyRebalance  = "rebalance"
	StrategySentiment  = "sentiment"
)

// BuyDipParams configures the buy-dip strategy.
type BuyDipParams struct {
	FundingToken    string  `json:"funding_token"`
	MinConfidence   float64 `json:"min_confidence"`
	MaxOrderSizeUSD float64 `json:"max_order_size_usd"`
	MinFundingUSD   float64 `json:"min_funding_usd"`
}

// TakeProfitParams configures the take-profit strategy.
type TakeProfitParams struct {
	MinConfidence float64 `json:"min_confidence"`
	ProfitTarget  float64 `json:"profit_target"`
	SellFraction  float64 `json:"sell_fraction"`
}

// RebalanceParams configures the rebalance strategy.
type RebalanceParams struct {
	// TargetAllocation maps token symbol to target percent of portfolio.
	TargetAllocation map[string]float64 `json:"target_allocation"`
	ImbalancePercent float64            `json:"imbalance_percent"`
	MinOrderValueUSD float64            `json:"min_order_value_usd"`
	FundingToken     string             `json:"funding_token"`
}

// SentimentParams is a placeholder: the strategy has no data source wired
// and never emits orders.
type SentimentParams struct{}

// StrategyConfig is one enabled/disabled strategy with its typed parameters.
// Exactly one parameter field is non-nil, matching Name.
type StrategyConfig struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	BuyDip     *BuyDipParams     `json:"buy_dip,omitempty"`
	TakeProfit *TakeProfitParams `json:"take_profit,omitempty"`
	Rebalance  *RebalanceParams  `json:"rebalance,omitempty"`
	Sentiment  *SentimentParams  `json:"sentiment,omitempty"`
}

// DefaultStrategies returns the fixed strategy set the orchestrator runs.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{
			ID:      "buy-dip-default",
			Name:    StrategyBuyDip,
			Enabled: true,
			BuyDip: &BuyDipParams{
				FundingToken:    "USDC",
				MinConfidence:   0.6,
				MaxOrderSizeUSD: 500,
				MinFundingUSD:   50,
			},
		},
		{
			ID:      "take-profit-default",
			Name:    StrategyTakeProfit,
			Enabled: true,
			TakeProfit: &TakeProfitParams{
				MinConfidence: 0.6,
				ProfitTarget:  0.95,
				SellFraction:  0.5,
			},
		},
		{
			ID:      "rebalance-default",
			Name:    StrategyRebalance,
			Enabled: false,
			Rebalance: &RebalanceParams{
				TargetAllocation: map[string]float64{"SOL": 50, "USDC": 50},
				ImbalancePercent: 10,
				MinOrderValueUSD: 25,
				FundingToken:     "USDC",
			},
		},
		{
			ID:        "sentiment-default",
			Name:      StrategySentiment,
			Enabled:   false,
			Sentiment: &SentimentParams{},
		},
	}
}

// Evaluate turns a snapshot's opportunities into candidate orders. Pure:
// it reads only its arguments. Strategies run in configuration order and
// their outputs are concatenated, never merged or deduplicated.
func Evaluate(snapshot *MonitorSnapshot, strategies []StrategyConfig) []StrategyOrder {
	if snapshot == nil || snapshot.Portfolio == nil {
		return nil
	}

	var orders []StrategyOrder
	for _, strategy := range strategies {
		if !strategy.Enabled {
			continue
		}
		switch strategy.Name {
		case StrategyBuyDip:
			orders = append(orders, evaluateBuyDip(snapshot, strategy.BuyDip)...)
		case StrategyTakeProfit:
			orders = append(orders, evaluateTakeProfit(snapshot, strategy.TakeProfit)...)
		case StrategyRebalance:
			orders = append(orders, evaluateRebalance(snapshot, strategy.Rebalance)...)
		case StrategySentiment:
			// No data source; intentionally produces nothing.
		}
	}
	return orders
}

func evaluateBuyDip(snapshot *MonitorSnapshot, params *BuyDipParams) []StrategyOrder {
	if params == nil {
		return nil
	}

	var orders []StrategyOrder
	for _, opp := range snapshot.Opportunities {
		if opp.Kind != OpportunityBuyDip || opp.Confidence < params.MinConfidence {
			continue
		}
		fundingValue := snapshot.Portfolio.TokenValue(params.FundingToken)
		if fundingValue < params.MinFundingUSD {
			continue
		}
		amount := math.Min(params.MaxOrderSizeUSD, fundingValue*0.5)
		orders = append(orders, StrategyOrder{
			Strategy:    StrategyBuyDip,
			Token:       opp.Token,
			Action:      ActionBuy,
			InputToken:  params.FundingToken,
			OutputToken: opp.Token,
			InputAmount: amount,
			Reason:      opp.Reason,
			Confidence:  opp.Confidence,
		})
	}
	return orders
}

func evaluateTakeProfit(snapshot *MonitorSnapshot, params *TakeProfitParams) []StrategyOrder {
	if params == nil {
		return nil
	}

	var orders []StrategyOrder
	for _, opp := range snapshot.Opportunities {
		if opp.Kind != OpportunityTakeProfit || opp.Confidence < params.MinConfidence {
			continue
		}
		// Cannot take profit on a token the wallet does not hold.
		balance := snapshot.Portfolio.TokenBalance(opp.Token)
		if balance <= 0 {
			continue
		}
		orders = append(orders, StrategyOrder{
			Strategy:    StrategyTakeProfit,
			Token:       opp.Token,
			Action:      ActionLimit,
			InputToken:  opp.Token,
			OutputToken: "USDC",
			InputAmount: balance * params.SellFraction,
			TargetPrice: opp.CurrentPrice * params.ProfitTarget,
			Reason:      opp.Reason,
			Confidence:  opp.Confidence,
		})
	}
	return orders
}

func evaluateRebalance(snapshot *MonitorSnapshot, params *RebalanceParams) []StrategyOrder {
	if params == nil || len(params.TargetAllocation) == 0 {
		return nil
	}
	portfolio := snapshot.Portfolio
	if portfolio.TotalValueUSD <= 0 {
		return nil
	}

	// Sorted for a stable order across runs.
	symbols := make([]string, 0, len(params.TargetAllocation))
	for symbol := range params.TargetAllocation {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var orders []StrategyOrder
	for _, symbol := range symbols {
		targetPercent := params.TargetAllocation[symbol]
		currentValue := portfolio.TokenValue(symbol)
		currentPercent := currentValue / portfolio.TotalValueUSD * 100

		diff := currentPercent - targetPercent
		if math.Abs(diff) <= params.ImbalancePercent {
			continue
		}
		excessUSD := math.Abs(diff) / 100 * portfolio.TotalValueUSD
		if excessUSD <= params.MinOrderValueUSD {
			continue
		}

		if diff > 0 {
			// Overweight: sell 80% of the excess back toward target.
			unitPrice := tokenUnitPrice(portfolio, symbol)
			if unitPrice <= 0 {
				continue
			}
			orders = append(orders, StrategyOrder{
				Strategy:    StrategyRebalance,
				Token:       symbol,
				Action:      ActionSell,
				InputToken:  symbol,
				OutputToken: params.FundingToken,
				InputAmount: excessUSD * 0.8 / unitPrice,
				Reason:      fmt.Sprintf("%s at %.1f%% of portfolio, target %.1f%%", symbol, currentPercent, targetPercent),
				Confidence:  math.Min(1, math.Abs(diff)/targetPercent),
			})
		} else {
			// Underweight: buy, funded from the stablecoin balance.
			fundingValue := portfolio.TokenValue(params.FundingToken)
			if fundingValue <= params.MinOrderValueUSD {
				continue
			}
			orders = append(orders, StrategyOrder{
				Strategy:    StrategyRebalance,
				Token:       symbol,
				Action:      ActionBuy,
				InputToken:  params.FundingToken,
				OutputToken: symbol,
				InputAmount: math.Min(excessUSD, fundingValue),
				Reason:      fmt.Sprintf("%s at %.1f%% of portfolio, target %.1f%%", symbol, currentPercent, targetPercent),
				Confidence:  math.Min(1, math.Abs(diff)/targetPercent),
			})
		}
	}
	return orders
}

func tokenUnitPrice(portfolio *PortfolioSnapshot, symbol string) float64 {
	for _, t := range portfolio.Tokens {
		if t.Symbol == symbol {
			return t.PriceUSD
		}
	}
	return 0
}
