package main

import (
	"log"
	"os"

	"solpilot/internal/autopilot"
	"solpilot/internal/handlers"
	"solpilot/internal/routes"
	"solpilot/pkg/config"
	"solpilot/pkg/helius"
	"solpilot/pkg/jupiter"
)

func main() {
	// Load .env if present
	loadEnv()

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ (optional, will log warning if not configured)
	var events autopilot.EventPublisher
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer func() {
			if config.RabbitMQ != nil {
				config.RabbitMQ.Close()
			}
		}()
		publisher, err := config.NewPublisher()
		if err != nil {
			log.Fatal("Create publisher failed:", err)
		}
		defer publisher.Close()
		events = publisher
		log.Println("RabbitMQ initialized successfully")
	} else {
		log.Println("RabbitMQ not configured, skipping initialization")
	}

	// Wire the autopilot pipeline
	heliusClient := helius.NewClient(os.Getenv("HELIUS_API_KEY"))
	jupiterClient := jupiter.NewClient()

	pricer := autopilot.NewApproximatePricer()
	monitor := autopilot.NewMonitor(heliusClient, jupiterClient)
	risk := autopilot.NewRiskManager(pricer)
	handlers.LoadWalletSettings(risk)
	executor := autopilot.NewExecutor(jupiterClient, jupiterClient, risk, pricer)
	service := autopilot.NewService(monitor, risk, executor, nil, events)
	handlers.SetService(service)

	// Set up router
	r := routes.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
