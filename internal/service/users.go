package service

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

// AccessExpiration is the access token lifetime in hours.
const AccessExpiration = 10

type Token struct {
	AccessToken string `json:"access_token"`
}

type signUpInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUp registers a user and creates their zero-balance wallet in the same
// transaction, then issues an access token.
func SignUp(c *gin.Context) {
	var input signUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "Unable to unmarshal body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	exists, err := models.CheckIfUserExistsByEmailOrUsername(nil, input.Email, input.Username)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}
	if exists {
		c.JSON(409, gin.H{"error": "User with this email or username already exists"})
		return
	}

	hashedPassword, err := middleware.HashPassword(input.Password)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	user := models.User{
		Email:    input.Email,
		Username: input.Username,
		Password: hashedPassword,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return logger.WrapError(err, "")
		}

		wallet := models.Wallet{
			UserID:  user.ID,
			Balance: decimal.Zero,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return logger.WrapError(err, "")
		}

		return nil
	})
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	issueToken(c, &user)
}

// Login checks the credentials and issues an access token.
func Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	if err := validate.Struct(input); err != nil {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	user, err := models.GetUserWithPassword(input.Email)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	if !middleware.ComparePasswords(user.Password, input.Password) {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	issueToken(c, user)
}

func issueToken(c *gin.Context, user *models.User) {
	accessExpiration := time.Now().Unix() + int64(AccessExpiration*60*60)

	access, err := middleware.TokenNew(
		middleware.JWTKey, user.ID, accessExpiration, middleware.TokenAccess)
	if err != nil {
		logger.Error("%v", err)
		c.AbortWithStatus(500)
		return
	}

	c.JSON(200, gin.H{
		"access_token": access,
		"user": gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"username": user.Username,
		},
	})
}

func GetUser(c *gin.Context) {
	var user models.User
	var err error

	user.ID, err = middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	err = db.DB.First(&user, user.ID).Error
	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	} else if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, user)
}
