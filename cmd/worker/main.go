package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"solpilot/internal/autopilot"
	"solpilot/internal/handlers"
	"solpilot/pkg/config"
	"solpilot/pkg/helius"
	"solpilot/pkg/jupiter"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"
)

const runQueue = "autopilot_run"

// runMessage is the payload consumed from the run-request queue.
type runMessage struct {
	Action string `json:"action"`
	Wallet string `json:"wallet"`
}

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on environment")
	}

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	publisher, err := config.NewPublisher()
	if err != nil {
		logrus.Fatal("Failed to create publisher: ", err)
	}
	defer publisher.Close()

	// Wire the autopilot pipeline
	heliusClient := helius.NewClient(os.Getenv("HELIUS_API_KEY"))
	jupiterClient := jupiter.NewClient()

	pricer := autopilot.NewApproximatePricer()
	monitor := autopilot.NewMonitor(heliusClient, jupiterClient)
	risk := autopilot.NewRiskManager(pricer)
	handlers.LoadWalletSettings(risk)
	executor := autopilot.NewExecutor(jupiterClient, jupiterClient, risk, pricer)
	service := autopilot.NewService(monitor, risk, executor, nil, publisher)

	wallets := configuredWallets()
	if len(wallets) == 0 {
		logrus.Warn("AUTOPILOT_WALLETS is empty, worker will only serve queue requests")
	}

	// Schedule periodic runs for every configured wallet
	interval := os.Getenv("AUTOPILOT_INTERVAL")
	if interval == "" {
		interval = "@every 5m"
	}
	scheduler := cron.New()
	_, err = scheduler.AddFunc(interval, func() {
		for _, wallet := range wallets {
			runWallet(service, wallet)
		}
	})
	if err != nil {
		logrus.Fatal("Failed to schedule autopilot runs: ", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// React to on-chain balance changes without waiting for the next tick
	watcher := helius.NewWalletWatcher(os.Getenv("HELIUS_API_KEY"))
	for _, wallet := range wallets {
		if err := watcher.Watch(wallet, func(address string, lamports uint64) {
			go runWallet(service, address)
		}); err != nil {
			logrus.Errorf("Failed to watch wallet %s: %v", wallet, err)
		}
	}

	// Create consumer for on-demand run requests
	msgConsumer, err := config.NewConsumer(runQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	logrus.Info("Autopilot worker started, waiting for messages...")

	err = msgConsumer.Consume(func(msg []byte) error {
		var runMsg runMessage
		if err := json.Unmarshal(msg, &runMsg); err != nil {
			logrus.Errorf("Failed to unmarshal message: %v", err)
			return err
		}
		if runMsg.Action != "run" || runMsg.Wallet == "" {
			logrus.Warnf("Ignoring malformed run request: %+v", runMsg)
			return nil
		}
		runWallet(service, runMsg.Wallet)
		return nil
	})
	if err != nil {
		log.Fatal("Failed to start consumer: ", err)
	}
}

func runWallet(service *autopilot.Service, wallet string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := service.Run(ctx, wallet)
	if err != nil {
		logrus.Errorf("Autopilot run failed for %s: %v", wallet, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"wallet":        wallet,
		"opportunities": len(report.Opportunities),
		"executed":      len(report.Executed),
		"skipped":       len(report.Skipped),
	}).Info("Autopilot run finished")
}

func configuredWallets() []string {
	raw := os.Getenv("AUTOPILOT_WALLETS")
	if raw == "" {
		return nil
	}
	var wallets []string
	for _, w := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(w)
		if trimmed != "" {
			wallets = append(wallets, trimmed)
		}
	}
	return wallets
}
