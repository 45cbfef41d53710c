package autopilot

import "context"

// PortfolioProvider supplies the current composition of a wallet.
// Implemented by pkg/helius.
type PortfolioProvider interface {
	GetPortfolio(ctx context.Context, walletAddress string) (*PortfolioSnapshot, error)
}

// PriceProvider supplies the current USD price for a symbol. A failure for
// one symbol is not fatal to a monitor cycle.
type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// TokenInfo is the metadata the executor needs to turn a human amount into
// raw integer units.
type TokenInfo struct {
	Address  string
	Symbol   string
	Decimals int
}

// TokenResolver maps a symbol to its mint metadata. Returns (nil, nil) when
// the symbol is unknown.
type TokenResolver interface {
	FindTokenBySymbol(ctx context.Context, symbol string) (*TokenInfo, error)
}

// SwapRequest describes an immediate swap.
type SwapRequest struct {
	InputToken    string
	OutputToken   string
	Amount        float64
	WalletAddress string
}

// SwapResult is the prepared swap returned by the order gateway.
type SwapResult struct {
	EstimatedOutput float64
	PriceImpactPct  float64
	Transaction     string
}

// LimitOrderRequest describes a limit order in raw integer units.
type LimitOrderRequest struct {
	InputMint    string
	OutputMint   string
	Maker        string
	Payer        string
	MakingAmount uint64
	TakingAmount uint64
	ExpiredAt    int64
}

// DCAOrderRequest describes a recurring order in raw integer units.
type DCAOrderRequest struct {
	InputMint             string
	OutputMint            string
	Payer                 string
	AmountPerCycle        uint64
	CycleFrequencySeconds int64
	NumberOfCycles        int
}

// OrderGateway accepts order descriptions and returns prepared transactions.
// Implemented by pkg/jupiter.
type OrderGateway interface {
	PrepareSwap(ctx context.Context, req SwapRequest) (*SwapResult, error)
	CreateLimitOrder(ctx context.Context, req LimitOrderRequest) (string, error)
	CreateDCAOrder(ctx context.Context, req DCAOrderRequest) (string, error)
}
