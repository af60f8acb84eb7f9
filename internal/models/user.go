package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

type User struct {
	ID        int64     `gorm:"primaryKey,autoIncrement" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func CheckIfUserExistsByID(userID int64) (bool, error) {
	var exists bool
	err := db.DB.Model(&User{}).
		Select("count(*) > 0").
		Where("id = ?", userID).
		Scan(&exists).Error
	if err != nil {
		return true, logger.WrapError(err, "")
	}

	return exists, nil
}

func CheckIfUserExistsByEmailOrUsername(tx *gorm.DB, email, username string) (bool, error) {
	if tx == nil {
		tx = db.DB
	}

	var exists bool
	err := tx.Model(&User{}).
		Select("count(*) > 0").
		Where("email = ? OR username = ?", email, username).
		Scan(&exists).Error
	if err != nil {
		return true, logger.WrapError(err, "")
	}

	return exists, nil
}

func GetUserWithPassword(email string) (*User, error) {
	var user User

	err := db.DB.
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &user, nil
}
