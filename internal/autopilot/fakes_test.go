package autopilot

import (
	"context"
	"errors"
	"time"
)

// fakePortfolio serves a fixed snapshot or a fixed error.
type fakePortfolio struct {
	snapshot *PortfolioSnapshot
	err      error
}

func (f *fakePortfolio) GetPortfolio(ctx context.Context, walletAddress string) (*PortfolioSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snapshot := *f.snapshot
	snapshot.WalletAddress = walletAddress
	return &snapshot, nil
}

// fakePrices serves prices from a map; missing symbols fail.
type fakePrices struct {
	prices map[string]float64
	fail   map[string]error
}

func (f *fakePrices) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err, ok := f.fail[symbol]; ok {
		return 0, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no price configured for " + symbol)
	}
	return price, nil
}

// fakeGateway records dispatched orders and returns scripted results.
type fakeGateway struct {
	swapResult *SwapResult
	swapErr    error
	limitTx    string
	limitErr   error
	dcaTx      string
	dcaErr     error

	swaps  []SwapRequest
	limits []LimitOrderRequest
	dcas   []DCAOrderRequest
}

func (f *fakeGateway) PrepareSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	f.swaps = append(f.swaps, req)
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	if f.swapResult != nil {
		return f.swapResult, nil
	}
	return &SwapResult{EstimatedOutput: req.Amount, Transaction: "tx"}, nil
}

func (f *fakeGateway) CreateLimitOrder(ctx context.Context, req LimitOrderRequest) (string, error) {
	f.limits = append(f.limits, req)
	if f.limitErr != nil {
		return "", f.limitErr
	}
	if f.limitTx != "" {
		return f.limitTx, nil
	}
	return "limit-tx", nil
}

func (f *fakeGateway) CreateDCAOrder(ctx context.Context, req DCAOrderRequest) (string, error) {
	f.dcas = append(f.dcas, req)
	if f.dcaErr != nil {
		return "", f.dcaErr
	}
	if f.dcaTx != "" {
		return f.dcaTx, nil
	}
	return "dca-tx", nil
}

// fakeResolver resolves tokens from a map; missing symbols resolve to nil.
type fakeResolver struct {
	tokens map[string]*TokenInfo
}

func (f *fakeResolver) FindTokenBySymbol(ctx context.Context, symbol string) (*TokenInfo, error) {
	return f.tokens[symbol], nil
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{tokens: map[string]*TokenInfo{
		"SOL":  {Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Decimals: 9},
		"USDC": {Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6},
	}}
}

func usdcPortfolio(usdc, solBalance, solPrice float64) *PortfolioSnapshot {
	snapshot := &PortfolioSnapshot{
		SolBalance:    solBalance,
		TotalValueUSD: usdc + solBalance*solPrice,
		FetchedAt:     time.Now(),
	}
	if solBalance > 0 {
		snapshot.Tokens = append(snapshot.Tokens, TokenHolding{
			Mint: "So11111111111111111111111111111111111111112", Symbol: "SOL",
			Balance: solBalance, Decimals: 9, ValueUSD: solBalance * solPrice, PriceUSD: solPrice,
		})
	}
	snapshot.Tokens = append(snapshot.Tokens, TokenHolding{
		Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC",
		Balance: usdc, Decimals: 6, ValueUSD: usdc, PriceUSD: 1,
	})
	return snapshot
}

// seedHistory installs prior observations for a symbol.
func seedHistory(m *Monitor, symbol string, prices ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]PriceObservation, 0, len(prices))
	ts := time.Now().Add(-time.Duration(len(prices)) * time.Minute)
	for i, price := range prices {
		history = append(history, PriceObservation{
			Symbol:    symbol,
			PriceUSD:  price,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		})
	}
	m.priceHistory[symbol] = history
}
