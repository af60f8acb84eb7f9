package main

import (
	"github.com/joho/godotenv"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/app"
	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found: %v", err)
	}

	if err := middleware.InitAuth(); err != nil {
		logger.Fatal("Failed to initialize auth: %v", err)
	}

	if err := db.Init(); err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	if err := db.DB.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
	); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	app.Start()
}
