package autopilot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	// maxExecutionLog bounds the in-memory audit log (FIFO eviction).
	maxExecutionLog = 500

	// limitOrderExpiry is the default lifetime of a limit order.
	limitOrderExpiry = 30 * 24 * time.Hour

	// dcaCycles and dcaCycleSeconds split a DCA order into equal daily buys.
	dcaCycles       = 10
	dcaCycleSeconds = 24 * 60 * 60
)

// Executor dispatches approved orders to the order gateway and keeps the
// bounded audit log. Execute never returns an error: failures are recorded
// on the returned order so one bad order cannot abort a batch.
type Executor struct {
	gateway OrderGateway
	tokens  TokenResolver
	risk    *RiskManager
	pricer  *ApproximatePricer

	mu  sync.RWMutex
	log []ExecutedOrder
}

// NewExecutor creates an executor. risk may be nil when loss booking is not
// wanted (tests).
func NewExecutor(gateway OrderGateway, tokens TokenResolver, risk *RiskManager, pricer *ApproximatePricer) *Executor {
	return &Executor{gateway: gateway, tokens: tokens, risk: risk, pricer: pricer}
}

// Execute dispatches one approved order for the wallet and returns the audit
// record, appended to the log regardless of outcome.
func (e *Executor) Execute(ctx context.Context, order StrategyOrder, walletAddress string, portfolio *PortfolioSnapshot) ExecutedOrder {
	record := ExecutedOrder{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Timestamp:     time.Now(),
		Strategy:      order.Strategy,
		Action:        order.Action,
		InputToken:    order.InputToken,
		OutputToken:   order.OutputToken,
		InputAmount:   order.InputAmount,
		Status:        StatusPending,
		Metadata:      map[string]string{},
	}

	var err error
	switch order.Action {
	case ActionBuy, ActionSell:
		err = e.executeSwap(ctx, order, walletAddress, &record)
	case ActionLimit:
		err = e.executeLimit(ctx, order, walletAddress, &record)
	case ActionDCA:
		err = e.executeDCA(ctx, order, walletAddress, &record)
	default:
		err = fmt.Errorf("unknown order action %q", order.Action)
	}

	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		log.WithFields(log.Fields{
			"wallet":   walletAddress,
			"strategy": order.Strategy,
			"action":   order.Action,
		}).Warnf("order execution failed: %v", err)
	} else {
		record.Status = StatusSuccess
	}

	e.bookLoss(walletAddress, record)
	e.append(record)
	return record
}

func (e *Executor) executeSwap(ctx context.Context, order StrategyOrder, walletAddress string, record *ExecutedOrder) error {
	result, err := e.gateway.PrepareSwap(ctx, SwapRequest{
		InputToken:    order.InputToken,
		OutputToken:   order.OutputToken,
		Amount:        order.InputAmount,
		WalletAddress: walletAddress,
	})
	if err != nil {
		return fmt.Errorf("swap preparation: %w", err)
	}
	record.EstimatedOutput = result.EstimatedOutput
	record.Transaction = result.Transaction
	record.Metadata["price_impact_pct"] = strconv.FormatFloat(result.PriceImpactPct, 'f', -1, 64)
	return nil
}

func (e *Executor) executeLimit(ctx context.Context, order StrategyOrder, walletAddress string, record *ExecutedOrder) error {
	input, output, err := e.resolvePair(ctx, order)
	if err != nil {
		return err
	}
	if order.TargetPrice <= 0 {
		return fmt.Errorf("limit order for %s has no target price", order.Token)
	}

	makingAmount := rawAmount(order.InputAmount, input.Decimals)
	takingAmount := rawAmount(order.InputAmount*order.TargetPrice, output.Decimals)

	tx, err := e.gateway.CreateLimitOrder(ctx, LimitOrderRequest{
		InputMint:    input.Address,
		OutputMint:   output.Address,
		Maker:        walletAddress,
		Payer:        walletAddress,
		MakingAmount: makingAmount,
		TakingAmount: takingAmount,
		ExpiredAt:    time.Now().Add(limitOrderExpiry).Unix(),
	})
	if err != nil {
		return fmt.Errorf("limit order submission: %w", err)
	}
	record.EstimatedOutput = order.InputAmount * order.TargetPrice
	record.Transaction = tx
	record.Metadata["making_amount"] = strconv.FormatUint(makingAmount, 10)
	record.Metadata["taking_amount"] = strconv.FormatUint(takingAmount, 10)
	return nil
}

func (e *Executor) executeDCA(ctx context.Context, order StrategyOrder, walletAddress string, record *ExecutedOrder) error {
	input, output, err := e.resolvePair(ctx, order)
	if err != nil {
		return err
	}

	total := rawAmount(order.InputAmount, input.Decimals)
	perCycle := total / dcaCycles

	tx, err := e.gateway.CreateDCAOrder(ctx, DCAOrderRequest{
		InputMint:             input.Address,
		OutputMint:            output.Address,
		Payer:                 walletAddress,
		AmountPerCycle:        perCycle,
		CycleFrequencySeconds: dcaCycleSeconds,
		NumberOfCycles:        dcaCycles,
	})
	if err != nil {
		return fmt.Errorf("dca order submission: %w", err)
	}
	record.Transaction = tx
	record.Metadata["cycles"] = strconv.Itoa(dcaCycles)
	record.Metadata["amount_per_cycle"] = strconv.FormatUint(perCycle, 10)
	return nil
}

// resolvePair resolves input and output token metadata. An unknown symbol is
// fatal for this order only.
func (e *Executor) resolvePair(ctx context.Context, order StrategyOrder) (*TokenInfo, *TokenInfo, error) {
	input, err := e.tokens.FindTokenBySymbol(ctx, order.InputToken)
	if err != nil {
		return nil, nil, fmt.Errorf("token lookup %s: %w", order.InputToken, err)
	}
	if input == nil {
		return nil, nil, fmt.Errorf("unknown token symbol %s", order.InputToken)
	}
	output, err := e.tokens.FindTokenBySymbol(ctx, order.OutputToken)
	if err != nil {
		return nil, nil, fmt.Errorf("token lookup %s: %w", order.OutputToken, err)
	}
	if output == nil {
		return nil, nil, fmt.Errorf("unknown token symbol %s", order.OutputToken)
	}
	return input, output, nil
}

// bookLoss charges the daily-loss tracker. A failed dispatch books the
// order's full notional, so repeated failing attempts trip the daily budget
// like a circuit breaker. A successful fill books the quoted shortfall,
// if any.
func (e *Executor) bookLoss(walletAddress string, record ExecutedOrder) {
	if e.risk == nil || e.pricer == nil {
		return
	}
	inputUSD := e.pricer.ValueUSD(record.InputToken, record.InputAmount)
	if record.Status == StatusFailed {
		e.risk.RecordLoss(walletAddress, inputUSD)
		return
	}
	if record.EstimatedOutput <= 0 {
		return
	}
	outputUSD := e.pricer.ValueUSD(record.OutputToken, record.EstimatedOutput)
	if loss := inputUSD - outputUSD; loss > 0 {
		e.risk.RecordLoss(walletAddress, loss)
	}
}

func (e *Executor) append(record ExecutedOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, record)
	if len(e.log) > maxExecutionLog {
		e.log = e.log[len(e.log)-maxExecutionLog:]
	}
}

// Log returns up to limit most recent records, newest last. limit <= 0
// returns the whole log.
func (e *Executor) Log(limit int) []ExecutedOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	records := e.log
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]ExecutedOrder, len(records))
	copy(out, records)
	return out
}

// Stats aggregates the audit log.
func (e *Executor) Stats() ExecutionStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := ExecutionStats{ByStrategy: make(map[string]int)}
	for _, record := range e.log {
		stats.Total++
		switch record.Status {
		case StatusSuccess:
			stats.Success++
		case StatusFailed:
			stats.Failed++
		}
		stats.ByStrategy[record.Strategy]++
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total)
	}
	return stats
}

// rawAmount converts a human amount into raw integer units for a token with
// the given decimal count, rounding down.
func rawAmount(amount float64, decimals int) uint64 {
	raw := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	if raw.IsNegative() {
		return 0
	}
	return raw.BigInt().Uint64()
}
