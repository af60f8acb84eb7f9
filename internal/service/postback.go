package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

// PostbackTransaction is one settled payment reported by the provider.
type PostbackTransaction struct {
	Amount       float64 `json:"amount"`
	Status       string  `json:"status"`
	Currency     string  `json:"currency"`
	SessionID    string  `json:"session_id"`
	CreatedAt    int64   `json:"created_at"`
	CustomUserID *string `json:"custom_user_id"`
	Signature    string  `json:"signature"`
}

type PostbackBody struct {
	AccessKey    string                `json:"access_key"`
	Signature    string                `json:"signature"`
	Transactions []PostbackTransaction `json:"transactions"`
}

const postbackStatusSuccess = "Success"

func verifyPostbackSignature(accessKey string, transactions []PostbackTransaction, signature string) bool {
	var signatureString string
	for _, tx := range transactions {
		userID := ""
		if tx.CustomUserID != nil {
			userID = *tx.CustomUserID
		}
		signatureString += fmt.Sprintf("%s%s%.2f%s%s%d%s",
			tx.SessionID,
			userID,
			tx.Amount,
			tx.Currency,
			tx.Status,
			tx.CreatedAt,
			accessKey)
	}

	hash := md5.New()
	hash.Write([]byte(signatureString))
	expectedSignature := hex.EncodeToString(hash.Sum(nil))

	return expectedSignature == signature
}

// PaymentSystemPostback is the provider's server-to-server webhook. It lands
// on the same idempotent credit path as the redirect-back verification, so a
// payment confirmed through both routes is still credited once.
func PaymentSystemPostback(c *gin.Context) {
	var postbackBody PostbackBody

	if err := c.ShouldBindJSON(&postbackBody); err != nil {
		logger.Error("Unable to unmarshal postback: %v", err)
		c.JSON(400, gin.H{"error": "Unable to unmarshal body"})
		return
	}

	expectedAccessKey := os.Getenv("CHECKOUT_ACCESS_KEY")
	if expectedAccessKey == "" || postbackBody.AccessKey != expectedAccessKey {
		c.JSON(403, gin.H{"error": "invalid access key"})
		return
	}

	if !verifyPostbackSignature(
		postbackBody.AccessKey,
		postbackBody.Transactions,
		postbackBody.Signature) {
		c.JSON(403, gin.H{"error": "signature not valid"})
		return
	}

	successfulTransactions := 0

	for i := range postbackBody.Transactions {
		tx := &postbackBody.Transactions[i]

		if tx.Status != postbackStatusSuccess {
			logger.Error("postback transaction status not 'Success'; session id: %s", tx.SessionID)
			// still acknowledged so the provider stops retrying
			successfulTransactions++
			continue
		}

		_, _, err := creditDepositOnce(tx.SessionID, nil)
		if err != nil {
			if errors.Is(err, ErrAlreadyProcessed) {
				// at-least-once delivery, the first attempt already credited
				successfulTransactions++
				continue
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Error("postback for unknown session id: %s", tx.SessionID)
				continue
			}
			logger.Error("%v", err)
			continue
		}

		successfulTransactions++
	}

	if successfulTransactions == len(postbackBody.Transactions) {
		c.JSON(200, gin.H{"status": "OK"})
		return
	}

	c.Status(500)
}
