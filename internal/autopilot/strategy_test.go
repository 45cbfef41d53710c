package autopilot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(portfolio *PortfolioSnapshot, opportunities ...Opportunity) *MonitorSnapshot {
	return &MonitorSnapshot{
		Timestamp:     time.Now(),
		Portfolio:     portfolio,
		Opportunities: opportunities,
	}
}

func TestEvaluateNilSnapshot(t *testing.T) {
	assert.Nil(t, Evaluate(nil, DefaultStrategies()))
	assert.Nil(t, Evaluate(&MonitorSnapshot{}, DefaultStrategies()))
}

func TestEvaluateBuyDip(t *testing.T) {
	dip := Opportunity{
		Kind:         OpportunityBuyDip,
		Token:        "SOL",
		CurrentPrice: 85,
		Confidence:   0.75,
		Reason:       "SOL dropped 15.00% with downtrend averaging -5.00%",
	}

	t.Run("sized from funding balance and order cap", func(t *testing.T) {
		snapshot := snapshotWith(usdcPortfolio(2000, 0, 0), dip)
		orders := Evaluate(snapshot, DefaultStrategies())
		require.Len(t, orders, 1)
		order := orders[0]
		assert.Equal(t, StrategyBuyDip, order.Strategy)
		assert.Equal(t, ActionBuy, order.Action)
		assert.Equal(t, "USDC", order.InputToken)
		assert.Equal(t, "SOL", order.OutputToken)
		// min(500 cap, 50% of 2000 funding) is the cap.
		assert.InDelta(t, 500, order.InputAmount, 0.001)
		assert.InDelta(t, 0.75, order.Confidence, 0.001)
	})

	t.Run("half the funding balance when below the cap", func(t *testing.T) {
		snapshot := snapshotWith(usdcPortfolio(600, 0, 0), dip)
		orders := Evaluate(snapshot, DefaultStrategies())
		require.Len(t, orders, 1)
		assert.InDelta(t, 300, orders[0].InputAmount, 0.001)
	})

	t.Run("confidence below the floor produces nothing", func(t *testing.T) {
		weak := dip
		weak.Confidence = 0.5
		snapshot := snapshotWith(usdcPortfolio(2000, 0, 0), weak)
		assert.Empty(t, Evaluate(snapshot, DefaultStrategies()))
	})

	t.Run("funding below the minimum produces nothing", func(t *testing.T) {
		snapshot := snapshotWith(usdcPortfolio(40, 0, 0), dip)
		assert.Empty(t, Evaluate(snapshot, DefaultStrategies()))
	})
}

func TestEvaluateTakeProfit(t *testing.T) {
	gain := Opportunity{
		Kind:         OpportunityTakeProfit,
		Token:        "SOL",
		CurrentPrice: 120,
		TargetPrice:  114,
		Confidence:   0.7,
	}

	t.Run("limit sell half the holding at the pullback target", func(t *testing.T) {
		snapshot := snapshotWith(usdcPortfolio(100, 10, 120), gain)
		orders := Evaluate(snapshot, DefaultStrategies())
		require.Len(t, orders, 1)
		order := orders[0]
		assert.Equal(t, StrategyTakeProfit, order.Strategy)
		assert.Equal(t, ActionLimit, order.Action)
		assert.Equal(t, "SOL", order.InputToken)
		assert.Equal(t, "USDC", order.OutputToken)
		assert.InDelta(t, 5, order.InputAmount, 0.001)
		assert.InDelta(t, 114, order.TargetPrice, 0.001)
	})

	t.Run("no holding means no order", func(t *testing.T) {
		snapshot := snapshotWith(usdcPortfolio(100, 0, 0), gain)
		assert.Empty(t, Evaluate(snapshot, DefaultStrategies()))
	})

	t.Run("confidence below the floor produces nothing", func(t *testing.T) {
		weak := gain
		weak.Confidence = 0.4
		snapshot := snapshotWith(usdcPortfolio(100, 10, 120), weak)
		assert.Empty(t, Evaluate(snapshot, DefaultStrategies()))
	})
}

func TestEvaluateRebalance(t *testing.T) {
	strategies := []StrategyConfig{{
		ID:      "rebalance-test",
		Name:    StrategyRebalance,
		Enabled: true,
		Rebalance: &RebalanceParams{
			TargetAllocation: map[string]float64{"SOL": 50, "USDC": 50},
			ImbalancePercent: 10,
			MinOrderValueUSD: 25,
			FundingToken:     "USDC",
		},
	}}

	t.Run("overweight sells most of the excess", func(t *testing.T) {
		// 9 SOL at $100 plus $100 USDC: SOL is 90%, 40 points over target.
		snapshot := snapshotWith(usdcPortfolio(100, 9, 100))
		orders := Evaluate(snapshot, strategies)
		require.Len(t, orders, 2)

		sol := orders[0]
		assert.Equal(t, ActionSell, sol.Action)
		assert.Equal(t, "SOL", sol.InputToken)
		// 40% of $1000 is $400 excess; sell 80% of it at $100/SOL.
		assert.InDelta(t, 3.2, sol.InputAmount, 0.001)

		usdc := orders[1]
		assert.Equal(t, ActionBuy, usdc.Action)
		assert.Equal(t, "USDC", usdc.OutputToken)
	})

	t.Run("inside the imbalance band does nothing", func(t *testing.T) {
		// 55/45 split is within the 10 point band.
		snapshot := snapshotWith(usdcPortfolio(450, 5.5, 100))
		assert.Empty(t, Evaluate(snapshot, strategies))
	})
}

func TestEvaluateDisabledStrategies(t *testing.T) {
	dip := Opportunity{Kind: OpportunityBuyDip, Token: "SOL", Confidence: 0.9}
	strategies := DefaultStrategies()
	for i := range strategies {
		strategies[i].Enabled = false
	}
	snapshot := snapshotWith(usdcPortfolio(2000, 0, 0), dip)
	assert.Empty(t, Evaluate(snapshot, strategies))
}

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 4)

	byName := map[string]StrategyConfig{}
	for _, s := range strategies {
		byName[s.Name] = s
	}
	assert.True(t, byName[StrategyBuyDip].Enabled)
	assert.True(t, byName[StrategyTakeProfit].Enabled)
	assert.False(t, byName[StrategyRebalance].Enabled)
	assert.False(t, byName[StrategySentiment].Enabled)
	assert.InDelta(t, 0.6, byName[StrategyBuyDip].BuyDip.MinConfidence, 0.001)
	assert.InDelta(t, 0.95, byName[StrategyTakeProfit].TakeProfit.ProfitTarget, 0.001)
}
