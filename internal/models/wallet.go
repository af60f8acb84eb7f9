package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

const WalletCurrency = "USDT"

// ErrNegativeBalance is returned when a debit would overdraw the wallet.
var ErrNegativeBalance = errors.New("wallet balance cannot go negative")

type Wallet struct {
	ID        int64           `gorm:"primaryKey,autoIncrement" json:"id"`
	UserID    int64           `gorm:"uniqueIndex;not null;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance record
// on first access.
func GetOrCreateWallet(tx *gorm.DB, userID int64) (*Wallet, error) {
	if tx == nil {
		tx = db.DB
	}

	var wallet Wallet
	err := tx.Where("user_id = ?", userID).
		FirstOrCreate(&wallet, Wallet{UserID: userID, Balance: decimal.Zero}).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &wallet, nil
}

// AdjustBalance applies delta as a single atomic increment at the storage
// layer. The guard in the WHERE clause keeps the balance non-negative under
// concurrent writers; no caller ever writes a whole balance value.
func AdjustBalance(tx *gorm.DB, userID int64, delta decimal.Decimal) error {
	if tx == nil {
		tx = db.DB
	}

	if _, err := GetOrCreateWallet(tx, userID); err != nil {
		return logger.WrapError(err, "")
	}

	res := tx.Model(&Wallet{}).
		Where("user_id = ? AND balance + ? >= 0", userID, delta).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return logger.WrapError(res.Error, "")
	}

	if res.RowsAffected == 0 {
		return ErrNegativeBalance
	}

	return nil
}
