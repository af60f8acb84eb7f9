package service

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/checkout"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

// Checkout is the hosted provider client, set once at startup.
var Checkout *checkout.Client

const MinDepositUSDT = 1

type depositInput struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// CreateCheckoutSessionHandler asks the provider for a hosted checkout page
// and records a pending deposit transaction carrying the session id. The
// browser is redirected to the returned URL; crediting happens only after
// verification.
func CreateCheckoutSessionHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	var input depositInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if input.Amount < MinDepositUSDT {
		c.JSON(406, gin.H{"error": fmt.Sprintf("Minimum deposit is %d %s",
			MinDepositUSDT, models.WalletCurrency)})
		return
	}

	amount := decimal.NewFromFloat(input.Amount).Round(2)

	session, err := Checkout.CreateSession(c.Request.Context(),
		fmt.Sprintf("%d", userID), uuid.NewString(), amount)
	if err != nil {
		logger.Error("%v", err)
		c.JSON(502, gin.H{"error": "failed to create payment session"})
		return
	}

	txn := models.Transaction{
		UserID:            userID,
		Type:              models.TransactionTypeDeposit,
		Amount:            amount,
		Description:       "Wallet top-up",
		Status:            models.TransactionStatusPending,
		CheckoutSessionID: &session.ID,
	}
	if err := db.DB.Create(&txn).Error; err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, gin.H{"url": session.URL})
}
