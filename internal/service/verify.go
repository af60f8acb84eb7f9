package service

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/checkout"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

var (
	ErrVerificationFailed = errors.New("payment not completed")
	ErrAlreadyProcessed   = errors.New("payment already processed")
)

type verifyInput struct {
	SessionID string `json:"session_id" validate:"required"`
}

// VerifyPayment is called by the return page after the provider redirects
// back. It checks the provider-reported payment status and credits the wallet
// at most once per session id.
func VerifyPayment(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	var input verifyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	session, err := Checkout.RetrieveSession(c.Request.Context(), input.SessionID)
	if err != nil {
		logger.Error("%v", err)
		c.JSON(502, gin.H{"error": "failed to retrieve payment session"})
		return
	}

	if session.PaymentStatus != checkout.PaymentStatusPaid {
		c.JSON(402, gin.H{"error": ErrVerificationFailed.Error()})
		return
	}

	amount, newBalance, err := creditDepositOnce(input.SessionID, &userID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			c.JSON(409, gin.H{"error": ErrAlreadyProcessed.Error()})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(404, gin.H{"error": "payment session not found"})
			return
		}
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, gin.H{
		"success":     true,
		"amount":      amount,
		"new_balance": newBalance,
	})
}

// creditDepositOnce flips the pending deposit to completed and credits the
// wallet in one database transaction. The status flip is the sole arbiter of
// at-most-once crediting, retries and double clicks land on ErrAlreadyProcessed.
// expectUserID, when set, restricts the lookup to the caller's own deposits.
func creditDepositOnce(sessionID string, expectUserID *int64) (amount, newBalance decimal.Decimal, err error) {
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		txn, err := models.GetDepositBySessionID(tx, sessionID)
		if err != nil {
			return err
		}

		if expectUserID != nil && txn.UserID != *expectUserID {
			return gorm.ErrRecordNotFound
		}

		won, err := models.CompleteDepositIfPending(tx, sessionID)
		if err != nil {
			return logger.WrapError(err, "")
		}
		if !won {
			return ErrAlreadyProcessed
		}

		if err := models.AdjustBalance(tx, txn.UserID, txn.Amount); err != nil {
			return logger.WrapError(err, "")
		}

		wallet, err := models.GetOrCreateWallet(tx, txn.UserID)
		if err != nil {
			return logger.WrapError(err, "")
		}

		amount = txn.Amount
		newBalance = wallet.Balance
		return nil
	})
	return amount, newBalance, err
}
