package autopilot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorSwap(t *testing.T) {
	gateway := &fakeGateway{swapResult: &SwapResult{EstimatedOutput: 3.3, Transaction: "swap-tx", PriceImpactPct: 0.12}}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	record := e.Execute(context.Background(), usdcBuyOrder(500), testWallet, usdcPortfolio(2000, 0, 0))

	assert.Equal(t, StatusSuccess, record.Status)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, testWallet, record.WalletAddress)
	assert.InDelta(t, 3.3, record.EstimatedOutput, 0.001)
	assert.Equal(t, "swap-tx", record.Transaction)
	assert.Equal(t, "0.12", record.Metadata["price_impact_pct"])

	require.Len(t, gateway.swaps, 1)
	assert.Equal(t, "USDC", gateway.swaps[0].InputToken)
	assert.Equal(t, "SOL", gateway.swaps[0].OutputToken)
	assert.InDelta(t, 500, gateway.swaps[0].Amount, 0.001)
	assert.Equal(t, testWallet, gateway.swaps[0].WalletAddress)
}

func TestExecutorSwapFailure(t *testing.T) {
	gateway := &fakeGateway{swapErr: errors.New("no route")}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	record := e.Execute(context.Background(), usdcBuyOrder(500), testWallet, usdcPortfolio(2000, 0, 0))

	assert.Equal(t, StatusFailed, record.Status)
	assert.Contains(t, record.Error, "no route")
	assert.Empty(t, record.Transaction)

	// The failure is still on the log.
	records := e.Log(0)
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
}

func TestExecutorLimitOrder(t *testing.T) {
	gateway := &fakeGateway{limitTx: "limit-tx-1"}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	order := StrategyOrder{
		Strategy:    StrategyTakeProfit,
		Token:       "SOL",
		Action:      ActionLimit,
		InputToken:  "SOL",
		OutputToken: "USDC",
		InputAmount: 2,
		TargetPrice: 95,
	}
	record := e.Execute(context.Background(), order, testWallet, usdcPortfolio(100, 2, 100))

	assert.Equal(t, StatusSuccess, record.Status)
	assert.Equal(t, "limit-tx-1", record.Transaction)
	assert.InDelta(t, 190, record.EstimatedOutput, 0.001)

	require.Len(t, gateway.limits, 1)
	req := gateway.limits[0]
	// 2 SOL in lamports, 190 USDC in its 6-decimal raw units.
	assert.Equal(t, uint64(2_000_000_000), req.MakingAmount)
	assert.Equal(t, uint64(190_000_000), req.TakingAmount)
	assert.Equal(t, testWallet, req.Maker)
	assert.Equal(t, testWallet, req.Payer)
	assert.Greater(t, req.ExpiredAt, int64(0))
}

func TestExecutorLimitOrderNeedsTarget(t *testing.T) {
	gateway := &fakeGateway{}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	order := StrategyOrder{
		Action:      ActionLimit,
		InputToken:  "SOL",
		OutputToken: "USDC",
		InputAmount: 1,
	}
	record := e.Execute(context.Background(), order, testWallet, usdcPortfolio(100, 1, 100))

	assert.Equal(t, StatusFailed, record.Status)
	assert.Contains(t, record.Error, "no target price")
	assert.Empty(t, gateway.limits, "nothing reaches the gateway without a target")
}

func TestExecutorDCAOrder(t *testing.T) {
	gateway := &fakeGateway{dcaTx: "dca-tx-1"}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	order := StrategyOrder{
		Strategy:    StrategyBuyDip,
		Action:      ActionDCA,
		InputToken:  "USDC",
		OutputToken: "SOL",
		InputAmount: 100,
	}
	record := e.Execute(context.Background(), order, testWallet, usdcPortfolio(200, 0, 0))

	assert.Equal(t, StatusSuccess, record.Status)
	assert.Equal(t, "dca-tx-1", record.Transaction)

	require.Len(t, gateway.dcas, 1)
	req := gateway.dcas[0]
	// 100 USDC split into 10 daily legs of 10 USDC each.
	assert.Equal(t, uint64(10_000_000), req.AmountPerCycle)
	assert.Equal(t, 10, req.NumberOfCycles)
	assert.Equal(t, int64(86400), req.CycleFrequencySeconds)
}

func TestExecutorUnknownToken(t *testing.T) {
	gateway := &fakeGateway{}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)

	order := StrategyOrder{
		Action:      ActionLimit,
		InputToken:  "NOPE",
		OutputToken: "USDC",
		InputAmount: 1,
		TargetPrice: 10,
	}
	record := e.Execute(context.Background(), order, testWallet, usdcPortfolio(100, 0, 0))

	assert.Equal(t, StatusFailed, record.Status)
	assert.Contains(t, record.Error, "unknown token symbol NOPE")
}

func TestExecutorBooksLosses(t *testing.T) {
	pricer := NewApproximatePricer()
	risk := NewRiskManager(pricer)

	t.Run("quoted shortfall is booked", func(t *testing.T) {
		// Spend 300 USDC, quoted 1.9 SOL back ($285): a $15 shortfall.
		gateway := &fakeGateway{swapResult: &SwapResult{EstimatedOutput: 1.9, Transaction: "tx"}}
		e := NewExecutor(gateway, defaultResolver(), risk, pricer)

		e.Execute(context.Background(), usdcBuyOrder(300), testWallet, usdcPortfolio(2000, 0, 0))
		assert.InDelta(t, 15, risk.DailyLoss(testWallet), 0.001)
	})

	t.Run("failed dispatch books the full notional", func(t *testing.T) {
		risk.ResetDailyLoss(testWallet)
		gateway := &fakeGateway{swapErr: errors.New("no route")}
		e := NewExecutor(gateway, defaultResolver(), risk, pricer)

		e.Execute(context.Background(), usdcBuyOrder(300), testWallet, usdcPortfolio(2000, 0, 0))
		assert.InDelta(t, 300, risk.DailyLoss(testWallet), 0.001)
	})

	t.Run("favorable quote books nothing", func(t *testing.T) {
		risk.ResetDailyLoss(testWallet)
		// 2.1 SOL quoted for 300 USDC is a gain, not a loss.
		gateway := &fakeGateway{swapResult: &SwapResult{EstimatedOutput: 2.1, Transaction: "tx"}}
		e := NewExecutor(gateway, defaultResolver(), risk, pricer)

		e.Execute(context.Background(), usdcBuyOrder(300), testWallet, usdcPortfolio(2000, 0, 0))
		assert.Zero(t, risk.DailyLoss(testWallet))
	})
}

func TestExecutorLogBound(t *testing.T) {
	gateway := &fakeGateway{}
	e := NewExecutor(gateway, defaultResolver(), nil, nil)
	portfolio := usdcPortfolio(1e9, 0, 0)

	for i := 0; i < maxExecutionLog+25; i++ {
		order := usdcBuyOrder(float64(i + 1))
		e.Execute(context.Background(), order, testWallet, portfolio)
	}

	records := e.Log(0)
	require.Len(t, records, maxExecutionLog, "the log evicts oldest-first at the cap")
	// The first 25 records were evicted.
	assert.InDelta(t, 26, records[0].InputAmount, 0.001)
	assert.InDelta(t, float64(maxExecutionLog+25), records[len(records)-1].InputAmount, 0.001)
}

func TestExecutorLogLimitAndStats(t *testing.T) {
	e := NewExecutor(&fakeGateway{}, defaultResolver(), nil, nil)
	portfolio := usdcPortfolio(1000, 0, 0)

	for i := 0; i < 4; i++ {
		e.Execute(context.Background(), usdcBuyOrder(10), testWallet, portfolio)
	}
	// One failed limit order in the same log.
	e.Execute(context.Background(), StrategyOrder{
		Strategy:    StrategyTakeProfit,
		Action:      ActionLimit,
		InputToken:  "SOL",
		OutputToken: "USDC",
		InputAmount: 1,
	}, testWallet, portfolio)

	assert.Len(t, e.Log(3), 3)

	stats := e.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 0.8, stats.SuccessRate, 0.001)
	assert.Equal(t, 4, stats.ByStrategy[StrategyBuyDip])
	assert.Equal(t, 1, stats.ByStrategy[StrategyTakeProfit])
}

func TestRawAmount(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals int
		want     uint64
	}{
		{2, 9, 2_000_000_000},
		{190, 6, 190_000_000},
		{0.000001, 6, 1},
		{0.0000001, 6, 0},
		{-1, 6, 0},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v@%d", tc.amount, tc.decimals), func(t *testing.T) {
			assert.Equal(t, tc.want, rawAmount(tc.amount, tc.decimals))
		})
	}
}
