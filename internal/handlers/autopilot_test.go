package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solpilot/internal/autopilot"
	"solpilot/internal/handlers"
	"solpilot/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validWallet is the system program address, a well-formed base58 key.
const validWallet = "11111111111111111111111111111111"

type stubPortfolio struct {
	snapshot *autopilot.PortfolioSnapshot
	err      error
}

func (s *stubPortfolio) GetPortfolio(ctx context.Context, walletAddress string) (*autopilot.PortfolioSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snapshot := *s.snapshot
	snapshot.WalletAddress = walletAddress
	return &snapshot, nil
}

type stubPrices struct {
	prices map[string]float64
}

func (s *stubPrices) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return 0, errors.New("no price for " + symbol)
	}
	return price, nil
}

type stubGateway struct{}

func (s *stubGateway) PrepareSwap(ctx context.Context, req autopilot.SwapRequest) (*autopilot.SwapResult, error) {
	return &autopilot.SwapResult{EstimatedOutput: req.Amount, Transaction: "stub-tx"}, nil
}

func (s *stubGateway) CreateLimitOrder(ctx context.Context, req autopilot.LimitOrderRequest) (string, error) {
	return "stub-limit-tx", nil
}

func (s *stubGateway) CreateDCAOrder(ctx context.Context, req autopilot.DCAOrderRequest) (string, error) {
	return "stub-dca-tx", nil
}

type stubResolver struct{}

func (s *stubResolver) FindTokenBySymbol(ctx context.Context, symbol string) (*autopilot.TokenInfo, error) {
	switch symbol {
	case "SOL":
		return &autopilot.TokenInfo{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Decimals: 9}, nil
	case "USDC":
		return &autopilot.TokenInfo{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6}, nil
	}
	return nil, nil
}

func testPortfolio() *autopilot.PortfolioSnapshot {
	return &autopilot.PortfolioSnapshot{
		SolBalance:    0,
		TotalValueUSD: 20000,
		Tokens: []autopilot.TokenHolding{{
			Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC",
			Balance: 20000, Decimals: 6, ValueUSD: 20000, PriceUSD: 1,
		}},
		FetchedAt: time.Now(),
	}
}

// setupRouter wires a full pipeline over stubs and returns the router.
func setupRouter(t *testing.T, portfolio autopilot.PortfolioProvider, prices autopilot.PriceProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pricer := autopilot.NewApproximatePricer()
	monitor := autopilot.NewMonitor(portfolio, prices)
	risk := autopilot.NewRiskManager(pricer)
	executor := autopilot.NewExecutor(&stubGateway{}, &stubResolver{}, risk, pricer)
	handlers.SetService(autopilot.NewService(monitor, risk, executor, nil, nil))

	r := gin.New()
	routes.SetupAutopilotRoutes(r)
	routes.SetupRiskLimitsRoutes(r)
	routes.SetupOrderRoutes(r)
	return r
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRunAutopilotEndpoint(t *testing.T) {
	t.Run("invalid wallet returns 400", func(t *testing.T) {
		r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{prices: map[string]float64{"SOL": 100, "USDC": 1}})
		w := perform(r, http.MethodPost, "/autopilot/run/not-base58!", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream failure returns 502", func(t *testing.T) {
		r := setupRouter(t, &stubPortfolio{err: errors.New("rpc down")}, &stubPrices{})
		w := perform(r, http.MethodPost, "/autopilot/run/"+validWallet, "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("successful run returns the report", func(t *testing.T) {
		r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{prices: map[string]float64{"SOL": 100, "USDC": 1}})
		w := perform(r, http.MethodPost, "/autopilot/run/"+validWallet, "")
		require.Equal(t, http.StatusOK, w.Code)

		var report autopilot.RunReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, validWallet, report.WalletAddress)
		require.NotNil(t, report.Snapshot)
		assert.InDelta(t, 20000, report.Snapshot.Portfolio.TotalValueUSD, 0.001)
	})
}

func TestAutopilotStatusEndpoint(t *testing.T) {
	r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{prices: map[string]float64{"SOL": 100, "USDC": 1}})

	w := perform(r, http.MethodGet, "/autopilot/status/"+validWallet, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no snapshot before the first run")

	require.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/autopilot/run/"+validWallet, "").Code)

	w = perform(r, http.MethodGet, "/autopilot/status/"+validWallet, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot autopilot.MonitorSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, validWallet, snapshot.Portfolio.WalletAddress)
}

func TestListStrategiesEndpoint(t *testing.T) {
	r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{})

	w := perform(r, http.MethodGet, "/autopilot/strategies", "")
	require.Equal(t, http.StatusOK, w.Code)

	var strategies []autopilot.StrategyConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strategies))
	assert.Len(t, strategies, 4)
}

func TestRiskLimitsEndpoints(t *testing.T) {
	r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{})

	t.Run("get creates defaults", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/risk-limits/"+validWallet, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp handlers.RiskLimitsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 500, resp.MaxOrderSizeUSD, 0.001)
		assert.False(t, resp.EnableAutopilot)
		assert.Zero(t, resp.DailyLossUSD)
	})

	t.Run("partial update round trips", func(t *testing.T) {
		w := perform(r, http.MethodPut, "/risk-limits/"+validWallet, `{"max_order_size_usd": 250}`)
		require.Equal(t, http.StatusOK, w.Code)

		var limits autopilot.RiskLimits
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limits))
		assert.InDelta(t, 250, limits.MaxOrderSizeUSD, 0.001)
		assert.InDelta(t, 500, limits.MaxDailyLossUSD, 0.001, "untouched fields keep defaults")

		w = perform(r, http.MethodGet, "/risk-limits/"+validWallet, "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp handlers.RiskLimitsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 250, resp.MaxOrderSizeUSD, 0.001)
	})

	t.Run("update rejects a bad wallet", func(t *testing.T) {
		w := perform(r, http.MethodPut, "/risk-limits/not-base58!", `{"max_order_size_usd": 250}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reset daily loss", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/risk-limits/"+validWallet+"/reset-daily-loss", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOrdersEndpoints(t *testing.T) {
	r := setupRouter(t, &stubPortfolio{snapshot: testPortfolio()}, &stubPrices{})

	t.Run("empty log", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/orders", "")
		require.Equal(t, http.StatusOK, w.Code)

		var orders []autopilot.ExecutedOrder
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
		assert.Empty(t, orders)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/orders?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/orders/stats", "")
		require.Equal(t, http.StatusOK, w.Code)

		var stats autopilot.ExecutionStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Zero(t, stats.Total)
	})
}
