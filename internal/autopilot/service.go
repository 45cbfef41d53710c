package autopilot

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// minOrderAmount rejects dust before an order reaches the risk gate.
const minOrderAmount = 0.001

// EventPublisher receives executed-order events. Optional; wired to the
// RabbitMQ publisher when messaging is configured.
type EventPublisher interface {
	Publish(queueName string, message interface{}) error
}

// EventsQueue is where executed-order events are published.
const EventsQueue = "autopilot_events"

// Service is the top-level orchestrator: it sequences monitor, strategy
// evaluation, risk gating and execution for one wallet per Run call.
// Concurrent runs for the same wallet are serialized.
type Service struct {
	monitor    *Monitor
	risk       *RiskManager
	executor   *Executor
	strategies []StrategyConfig
	events     EventPublisher

	mu      sync.Mutex
	wallets map[string]*sync.Mutex
}

// NewService wires the pipeline. strategies defaults to DefaultStrategies
// when nil; events may be nil.
func NewService(monitor *Monitor, risk *RiskManager, executor *Executor, strategies []StrategyConfig, events EventPublisher) *Service {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	return &Service{
		monitor:    monitor,
		risk:       risk,
		executor:   executor,
		strategies: strategies,
		events:     events,
		wallets:    make(map[string]*sync.Mutex),
	}
}

// Monitor exposes the monitor for status endpoints.
func (s *Service) Monitor() *Monitor { return s.monitor }

// Risk exposes the risk manager for limit endpoints.
func (s *Service) Risk() *RiskManager { return s.risk }

// Executor exposes the executor for audit endpoints.
func (s *Service) Executor() *Executor { return s.executor }

// Strategies returns the configured strategy set.
func (s *Service) Strategies() []StrategyConfig { return s.strategies }

// Run executes one full autopilot cycle for the wallet. It fails only when
// the monitor itself fails; rejected or invalid orders are skipped with a
// reason and the run still succeeds.
func (s *Service) Run(ctx context.Context, walletAddress string) (*RunReport, error) {
	lock := s.walletLock(walletAddress)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := s.monitor.Run(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("monitor wallet %s: %w", walletAddress, err)
	}

	report := &RunReport{
		WalletAddress: walletAddress,
		Snapshot:      snapshot,
		Opportunities: snapshot.Opportunities,
	}

	orders := Evaluate(snapshot, s.strategies)
	for _, order := range orders {
		if reason := validateOrder(order, snapshot.Portfolio); reason != "" {
			log.WithFields(log.Fields{
				"wallet":   walletAddress,
				"strategy": order.Strategy,
				"token":    order.Token,
			}).Infof("order skipped: %s", reason)
			report.Skipped = append(report.Skipped, SkippedOrder{Order: order, Reason: reason})
			continue
		}

		check := s.risk.Check(order, snapshot.Portfolio, walletAddress)
		for _, warning := range check.Warnings {
			log.WithFields(log.Fields{"wallet": walletAddress, "strategy": order.Strategy}).Warn(warning)
		}
		if !check.Allowed {
			log.WithFields(log.Fields{
				"wallet":   walletAddress,
				"strategy": order.Strategy,
				"token":    order.Token,
			}).Infof("order rejected by risk gate: %s", check.Reason)
			report.Skipped = append(report.Skipped, SkippedOrder{Order: order, Reason: check.Reason})
			continue
		}

		executed := s.executor.Execute(ctx, order, walletAddress, snapshot.Portfolio)
		report.Executed = append(report.Executed, executed)
		s.publish(executed)
	}

	log.WithFields(log.Fields{
		"wallet":   walletAddress,
		"orders":   len(orders),
		"executed": len(report.Executed),
		"skipped":  len(report.Skipped),
	}).Info("autopilot run completed")

	return report, nil
}

// validateOrder is the structural gate ahead of the risk gate: dust orders
// and orders the wallet cannot fund are dropped outright.
func validateOrder(order StrategyOrder, portfolio *PortfolioSnapshot) string {
	if order.InputAmount < minOrderAmount {
		return fmt.Sprintf("order amount %.6f below minimum %v", order.InputAmount, minOrderAmount)
	}
	if balance := heldBalance(portfolio, order.InputToken); balance < order.InputAmount {
		return fmt.Sprintf("wallet holds %.6f %s, order needs %.6f", balance, order.InputToken, order.InputAmount)
	}
	return ""
}

func (s *Service) publish(record ExecutedOrder) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(EventsQueue, record); err != nil {
		log.Warnf("failed to publish execution event: %v", err)
	}
}

func (s *Service) walletLock(walletAddress string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.wallets[walletAddress]
	if !ok {
		lock = &sync.Mutex{}
		s.wallets[walletAddress] = lock
	}
	return lock
}
