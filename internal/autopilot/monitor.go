package autopilot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// maxPriceHistory bounds the per-symbol observation ring.
	maxPriceHistory = 100

	// materialityThreshold filters out noise: absolute percent changes
	// below this never become a PriceChange.
	materialityThreshold = 0.5

	buyDipDropPercent    = -5.0
	buyDipTrendPercent   = -2.0
	takeProfitPercent    = 10.0
	takeProfitPullback   = 0.95
	solConcentrationSoft = 50.0
	solConcentrationHard = 70.0
)

// Monitor watches wallets: it snapshots portfolios, tracks price history and
// derives trading opportunities. All state is in-process; maps are guarded
// so concurrent runs for different wallets are safe.
type Monitor struct {
	portfolio PortfolioProvider
	prices    PriceProvider

	mu           sync.RWMutex
	snapshots    map[string]*MonitorSnapshot  // wallet -> latest snapshot
	priceHistory map[string][]PriceObservation // symbol -> rolling window
}

// NewMonitor creates a monitor backed by the given gateways.
func NewMonitor(portfolio PortfolioProvider, prices PriceProvider) *Monitor {
	return &Monitor{
		portfolio:    portfolio,
		prices:       prices,
		snapshots:    make(map[string]*MonitorSnapshot),
		priceHistory: make(map[string][]PriceObservation),
	}
}

// Snapshot returns the wallet's latest monitor snapshot, nil if the wallet
// has never been monitored.
func (m *Monitor) Snapshot(walletAddress string) *MonitorSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[walletAddress]
}

// History returns a copy of the symbol's price observations.
func (m *Monitor) History(symbol string) []PriceObservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.priceHistory[symbol]
	out := make([]PriceObservation, len(history))
	copy(out, history)
	return out
}

// Run performs one monitor cycle for the wallet. A portfolio gateway failure
// aborts the cycle with an UpstreamError; a single token's price failure is
// logged, recorded on the snapshot and skipped.
func (m *Monitor) Run(ctx context.Context, walletAddress string) (*MonitorSnapshot, error) {
	portfolio, err := m.portfolio.GetPortfolio(ctx, walletAddress)
	if err != nil {
		return nil, &UpstreamError{Op: "portfolio lookup", Err: err}
	}

	now := time.Now()
	previous := m.Snapshot(walletAddress)

	// SOL first, then held tokens in portfolio order, so derived lists are
	// stable for identical inputs.
	symbols := []string{"SOL"}
	for _, t := range portfolio.Tokens {
		if t.Symbol != "SOL" {
			symbols = append(symbols, t.Symbol)
		}
	}

	var changes []PriceChange
	var skipped []SkippedToken
	for _, symbol := range symbols {
		price, err := m.prices.GetPrice(ctx, symbol)
		if err != nil {
			log.WithFields(log.Fields{
				"wallet": walletAddress,
				"symbol": symbol,
			}).Warnf("price lookup failed, skipping token: %v", err)
			skipped = append(skipped, SkippedToken{Symbol: symbol, Reason: err.Error()})
			continue
		}

		change := m.observe(symbol, price, now)
		if math.Abs(change.ChangePercent) >= materialityThreshold {
			changes = append(changes, change)
		}
	}

	snapshot := &MonitorSnapshot{
		Timestamp:     now,
		Portfolio:     portfolio,
		PriceChanges:  changes,
		Opportunities: m.deriveOpportunities(portfolio, changes, now),
		Delta:         portfolioDelta(portfolio, previous),
		SkippedTokens: skipped,
	}

	m.mu.Lock()
	m.snapshots[walletAddress] = snapshot
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"wallet":        walletAddress,
		"total_usd":     portfolio.TotalValueUSD,
		"changes":       len(changes),
		"opportunities": len(snapshot.Opportunities),
	}).Info("monitor cycle completed")

	return snapshot, nil
}

// observe appends a price observation for symbol and returns the change
// versus the previous observation. On first sight the previous price
// defaults to the current one, so the change is zero and gets filtered by
// the materiality threshold.
func (m *Monitor) observe(symbol string, price float64, now time.Time) PriceChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.priceHistory[symbol]
	previousPrice := price
	if len(history) > 0 {
		previousPrice = history[len(history)-1].PriceUSD
	}

	history = append(history, PriceObservation{Symbol: symbol, PriceUSD: price, Timestamp: now})
	if len(history) > maxPriceHistory {
		history = history[len(history)-maxPriceHistory:]
	}
	m.priceHistory[symbol] = history

	changePercent := 0.0
	if previousPrice > 0 {
		changePercent = (price - previousPrice) / previousPrice * 100
	}

	return PriceChange{
		Symbol:        symbol,
		CurrentPrice:  price,
		PreviousPrice: previousPrice,
		ChangePercent: changePercent,
		Timestamp:     now,
	}
}

// averageChangePercent is the mean of the successive percent changes across
// the history stored before the current cycle's observation, 0 with fewer
// than two prior observations. Excluding the newest sample keeps a lone
// first drop from counting as its own trend.
func (m *Monitor) averageChangePercent(symbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.priceHistory[symbol]
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	if len(history) < 2 {
		return 0
	}

	var sum float64
	var n int
	for i := 1; i < len(history); i++ {
		prev := history[i-1].PriceUSD
		if prev <= 0 {
			continue
		}
		sum += (history[i].PriceUSD - prev) / prev * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (m *Monitor) deriveOpportunities(portfolio *PortfolioSnapshot, changes []PriceChange, now time.Time) []Opportunity {
	var opportunities []Opportunity

	for _, change := range changes {
		// A single-sample dip only qualifies when the symbol's history
		// confirms a downtrend.
		if change.ChangePercent < buyDipDropPercent {
			trend := m.averageChangePercent(change.Symbol)
			if trend < buyDipTrendPercent {
				opportunities = append(opportunities, Opportunity{
					Kind:         OpportunityBuyDip,
					Token:        change.Symbol,
					Reason:       fmt.Sprintf("%s dropped %.2f%% with downtrend averaging %.2f%%", change.Symbol, change.ChangePercent, trend),
					CurrentPrice: change.CurrentPrice,
					Confidence:   math.Min(1, math.Abs(change.ChangePercent)/20),
					Timestamp:    now,
				})
			}
		}

		if change.ChangePercent > takeProfitPercent {
			opportunities = append(opportunities, Opportunity{
				Kind:         OpportunityTakeProfit,
				Token:        change.Symbol,
				Reason:       fmt.Sprintf("%s gained %.2f%%, locking in on a pullback", change.Symbol, change.ChangePercent),
				CurrentPrice: change.CurrentPrice,
				TargetPrice:  change.CurrentPrice * takeProfitPullback,
				Confidence:   math.Min(1, change.ChangePercent/30),
				Timestamp:    now,
			})
		}
	}

	// SOL concentration warning. sentiment opportunities are never derived
	// here: there is no data source wired for them.
	if portfolio.TotalValueUSD > 0 {
		solValue := portfolio.SolBalance * solPrice(portfolio, changes)
		share := solValue / portfolio.TotalValueUSD * 100
		if share > solConcentrationHard {
			opportunities = append(opportunities, Opportunity{
				Kind:       OpportunityRebalance,
				Token:      "SOL",
				Reason:     fmt.Sprintf("SOL is %.1f%% of the portfolio, above the %v%% concentration ceiling", share, solConcentrationHard),
				Confidence: math.Min(1, (share-solConcentrationSoft)/solConcentrationSoft),
				Timestamp:  now,
			})
		}
	}

	return opportunities
}

// solPrice picks the freshest SOL price available: this cycle's change if
// SOL moved, otherwise the portfolio's embedded unit price.
func solPrice(portfolio *PortfolioSnapshot, changes []PriceChange) float64 {
	for _, c := range changes {
		if c.Symbol == "SOL" {
			return c.CurrentPrice
		}
	}
	for _, t := range portfolio.Tokens {
		if t.Symbol == "SOL" {
			return t.PriceUSD
		}
	}
	if portfolio.SolBalance > 0 && portfolio.TotalValueUSD > 0 {
		// Without a quote, back the price out of the totals so the
		// concentration check still sees SOL value.
		nonSol := 0.0
		for _, t := range portfolio.Tokens {
			nonSol += t.ValueUSD
		}
		return (portfolio.TotalValueUSD - nonSol) / portfolio.SolBalance
	}
	return 0
}

func portfolioDelta(current *PortfolioSnapshot, previous *MonitorSnapshot) PortfolioDelta {
	if previous == nil || previous.Portfolio == nil || previous.Portfolio.TotalValueUSD == 0 {
		return PortfolioDelta{}
	}
	prevTotal := previous.Portfolio.TotalValueUSD
	return PortfolioDelta{
		ChangeUSD:     current.TotalValueUSD - prevTotal,
		ChangePercent: (current.TotalValueUSD - prevTotal) / prevTotal * 100,
	}
}
