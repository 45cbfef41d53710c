package main

import (
	"log"

	"github.com/joho/godotenv"
)

// loadEnv loads a .env file when one exists; env vars already set win.
func loadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}
}
