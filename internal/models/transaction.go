package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

type TransactionType string

const (
	TransactionTypeBet     TransactionType = "bet"
	TransactionTypeWin     TransactionType = "win"
	TransactionTypeDeposit TransactionType = "deposit"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger record. Rows are never mutated except
// the pending to completed status flip on deposits.
type Transaction struct {
	ID                int64             `gorm:"primaryKey,autoIncrement" json:"id"`
	UserID            int64             `gorm:"index;not null;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user_id"`
	Type              TransactionType   `gorm:"not null;index" json:"type"`
	Amount            decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"amount"`
	Description       string            `json:"description"`
	Status            TransactionStatus `gorm:"not null" json:"status"`
	CheckoutSessionID *string           `gorm:"uniqueIndex" json:"-"`
	CreatedAt         time.Time         `json:"created_at"`
}

// ListRecentTransactions returns most-recent-first, id as the tiebreak for
// rows created in the same instant.
func ListRecentTransactions(tx *gorm.DB, userID int64, limit int) ([]Transaction, error) {
	if tx == nil {
		tx = db.DB
	}

	var txns []Transaction
	err := tx.Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return txns, nil
}

func GetDepositBySessionID(tx *gorm.DB, sessionID string) (*Transaction, error) {
	if tx == nil {
		tx = db.DB
	}

	var txn Transaction
	err := tx.Where("checkout_session_id = ? AND type = ?",
		sessionID, TransactionTypeDeposit).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, logger.WrapError(err, "")
	}

	return &txn, nil
}

// CompleteDepositIfPending flips pending to completed for the session id and
// reports whether this call won the flip. The status column is the dedup
// token: whoever gets RowsAffected == 1 credits the wallet, everyone else
// sees an already processed deposit.
func CompleteDepositIfPending(tx *gorm.DB, sessionID string) (bool, error) {
	if tx == nil {
		tx = db.DB
	}

	res := tx.Model(&Transaction{}).
		Where("checkout_session_id = ? AND status = ?",
			sessionID, TransactionStatusPending).
		Update("status", TransactionStatusCompleted)
	if res.Error != nil {
		return false, logger.WrapError(res.Error, "")
	}

	return res.RowsAffected == 1, nil
}
