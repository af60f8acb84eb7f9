package service

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

const defaultTransactionLimit = 10

// GetWallet returns the user's balance, creating the wallet on first access.
func GetWallet(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	wallet, err := models.GetOrCreateWallet(nil, userID)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, gin.H{
		"balance":    wallet.Balance,
		"currency":   models.WalletCurrency,
		"updated_at": wallet.UpdatedAt,
	})
}

// GetWalletTransactions lists the most recent ledger records for the user.
func GetWalletTransactions(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	limit := defaultTransactionLimit
	if raw, ok := c.GetQuery("limit"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			c.JSON(400, gin.H{"error": "limit must be between 1 and 50"})
			return
		}
		limit = parsed
	}

	txns, err := models.ListRecentTransactions(nil, userID, limit)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	if len(txns) == 0 {
		c.String(404, "[]")
		return
	}

	c.JSON(200, txns)
}
