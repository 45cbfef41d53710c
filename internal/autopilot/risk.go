package autopilot

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// dailyLossWarnFraction is where the daily-loss budget starts warning
	// without blocking.
	dailyLossWarnFraction = 0.8

	// dailyLossWindow is how long an accumulated loss counts before the
	// tracker lazily expires it.
	dailyLossWindow = 24 * time.Hour

	// slippageEstimateCap bounds the rough slippage estimate.
	slippageEstimateCap = 10.0
)

// DefaultRiskLimits returns the limits a wallet gets before any explicit
// configuration. Autopilot starts disabled: a wallet must opt in.
func DefaultRiskLimits(walletAddress string) RiskLimits {
	return RiskLimits{
		WalletAddress:             walletAddress,
		MaxDailyLossUSD:           500,
		MaxOrderSizeUSD:           500,
		MaxSlippagePercent:        5,
		TokenWhitelist:            nil,
		TokenBlacklist:            nil,
		MaxPortfolioConcentration: 50,
		EnableAutopilot:           false,
	}
}

type dailyLoss struct {
	lossUSD float64
	resetAt time.Time
}

// RiskManager owns per-wallet risk limits and daily-loss tracking, and gates
// candidate orders. Limits live in memory only; callers must not assume they
// survive a restart.
type RiskManager struct {
	pricer *ApproximatePricer

	mu     sync.RWMutex
	limits map[string]RiskLimits
	losses map[string]dailyLoss
}

// NewRiskManager creates a risk manager valuing orders with pricer.
func NewRiskManager(pricer *ApproximatePricer) *RiskManager {
	return &RiskManager{
		pricer: pricer,
		limits: make(map[string]RiskLimits),
		losses: make(map[string]dailyLoss),
	}
}

// GetLimits returns the wallet's limits, creating defaults on first lookup.
func (r *RiskManager) GetLimits(walletAddress string) RiskLimits {
	r.mu.Lock()
	defer r.mu.Unlock()
	limits, ok := r.limits[walletAddress]
	if !ok {
		limits = DefaultRiskLimits(walletAddress)
		r.limits[walletAddress] = limits
	}
	return limits
}

// UpdateLimits applies a partial update and returns the stored result.
func (r *RiskManager) UpdateLimits(walletAddress string, patch RiskLimitsPatch) RiskLimits {
	r.mu.Lock()
	defer r.mu.Unlock()
	limits, ok := r.limits[walletAddress]
	if !ok {
		limits = DefaultRiskLimits(walletAddress)
	}
	if patch.MaxDailyLossUSD != nil {
		limits.MaxDailyLossUSD = *patch.MaxDailyLossUSD
	}
	if patch.MaxOrderSizeUSD != nil {
		limits.MaxOrderSizeUSD = *patch.MaxOrderSizeUSD
	}
	if patch.MaxSlippagePercent != nil {
		limits.MaxSlippagePercent = *patch.MaxSlippagePercent
	}
	if patch.TokenWhitelist != nil {
		limits.TokenWhitelist = *patch.TokenWhitelist
	}
	if patch.TokenBlacklist != nil {
		limits.TokenBlacklist = *patch.TokenBlacklist
	}
	if patch.MaxPortfolioConcentration != nil {
		limits.MaxPortfolioConcentration = *patch.MaxPortfolioConcentration
	}
	if patch.EnableAutopilot != nil {
		limits.EnableAutopilot = *patch.EnableAutopilot
	}
	r.limits[walletAddress] = limits
	return limits
}

// DailyLoss returns the wallet's accumulated loss inside the current 24h
// window. Expired records are deleted lazily here.
func (r *RiskManager) DailyLoss(walletAddress string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.losses[walletAddress]
	if !ok {
		return 0
	}
	if time.Now().After(entry.resetAt) {
		delete(r.losses, walletAddress)
		return 0
	}
	return entry.lossUSD
}

// RecordLoss books a realized loss against the wallet's daily budget. The
// first loss of a window pins the reset time 24h out.
func (r *RiskManager) RecordLoss(walletAddress string, lossUSD float64) {
	if lossUSD <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.losses[walletAddress]
	now := time.Now()
	if !ok || now.After(entry.resetAt) {
		entry = dailyLoss{resetAt: now.Add(dailyLossWindow)}
	}
	entry.lossUSD += lossUSD
	r.losses[walletAddress] = entry
}

// ResetDailyLoss clears the wallet's tracker immediately.
func (r *RiskManager) ResetDailyLoss(walletAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.losses, walletAddress)
}

// Check gates a candidate order against the wallet's limits and portfolio.
// Checks run in a fixed order; the first failure short-circuits with a
// human-readable reason. Concentration breaches only ever warn.
func (r *RiskManager) Check(order StrategyOrder, portfolio *PortfolioSnapshot, walletAddress string) RiskCheckResult {
	limits := r.GetLimits(walletAddress)
	var warnings []string

	if !limits.EnableAutopilot {
		return RiskCheckResult{Allowed: false, Reason: "autopilot is disabled for this wallet"}
	}

	if len(limits.TokenWhitelist) > 0 {
		if !contains(limits.TokenWhitelist, order.InputToken) {
			return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("input token %s is not on the whitelist", order.InputToken)}
		}
		if !contains(limits.TokenWhitelist, order.OutputToken) {
			return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("output token %s is not on the whitelist", order.OutputToken)}
		}
	}

	if contains(limits.TokenBlacklist, order.InputToken) {
		return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("input token %s is blacklisted", order.InputToken)}
	}
	if contains(limits.TokenBlacklist, order.OutputToken) {
		return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("output token %s is blacklisted", order.OutputToken)}
	}

	orderUSD := r.pricer.ValueUSD(order.InputToken, order.InputAmount)
	if orderUSD > limits.MaxOrderSizeUSD {
		return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("order value $%.2f exceeds max order size $%.2f", orderUSD, limits.MaxOrderSizeUSD)}
	}

	loss := r.DailyLoss(walletAddress)
	if loss >= limits.MaxDailyLossUSD {
		return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("daily loss $%.2f has reached the $%.2f limit", loss, limits.MaxDailyLossUSD)}
	}
	if loss >= limits.MaxDailyLossUSD*dailyLossWarnFraction {
		warnings = append(warnings, fmt.Sprintf("daily loss $%.2f is above 80%% of the $%.2f limit", loss, limits.MaxDailyLossUSD))
	}

	balance := heldBalance(portfolio, order.InputToken)
	if balance < order.InputAmount {
		return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("insufficient %s balance: need %.6f, hold %.6f (short %.6f)", order.InputToken, order.InputAmount, balance, order.InputAmount-balance)}
	}

	if portfolio.TotalValueUSD > 0 {
		orderPercent := orderUSD / portfolio.TotalValueUSD * 100
		slippageEstimate := math.Min(orderPercent*0.1, slippageEstimateCap)
		if slippageEstimate > limits.MaxSlippagePercent {
			return RiskCheckResult{Allowed: false, Reason: fmt.Sprintf("estimated slippage %.2f%% exceeds max %.2f%%", slippageEstimate, limits.MaxSlippagePercent)}
		}

		if order.Action == ActionBuy {
			postValue := portfolio.TokenValue(order.OutputToken) + orderUSD
			concentration := postValue / portfolio.TotalValueUSD * 100
			if concentration > limits.MaxPortfolioConcentration {
				warnings = append(warnings, fmt.Sprintf("%s would be %.1f%% of the portfolio, above the %.1f%% concentration limit", order.OutputToken, concentration, limits.MaxPortfolioConcentration))
			}
		}
	}

	return RiskCheckResult{Allowed: true, Warnings: warnings}
}

func heldBalance(portfolio *PortfolioSnapshot, symbol string) float64 {
	if balance := portfolio.TokenBalance(symbol); balance > 0 {
		return balance
	}
	if symbol == "SOL" {
		return portfolio.SolBalance
	}
	return 0
}

func contains(list []string, symbol string) bool {
	for _, s := range list {
		if s == symbol {
			return true
		}
	}
	return false
}
