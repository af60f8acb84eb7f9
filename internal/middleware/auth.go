package middleware

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

const (
	TokenAccess      = "TokenAccess"
	ContextUserIDKey = "user_id"
)

var JWTKey string

// InitAuth reads the token signing key from the environment. It must run
// after the .env file is loaded, a package-level read would freeze the key
// before godotenv gets a chance. An empty key is refused.
func InitAuth() error {
	key, ok := os.LookupEnv("JWT_SECRET")
	if !ok || key == "" {
		return logger.WrapError(errors.New("JWT_SECRET is not set"), "")
	}
	JWTKey = key
	return nil
}

type accessClaims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func TokenNew(key string, userID int64, expiresAt int64, tokenType string) (string, error) {
	claims := accessClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Unix(expiresAt, 0)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", logger.WrapError(err, "")
	}

	return signed, nil
}

func TokenCheck(tokenString, key string) (int64, string, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected token signing method")
			}
			return []byte(key), nil
		})
	if err != nil {
		return 0, "", err
	}

	if !token.Valid {
		return 0, "", errors.New("token not valid")
	}

	return claims.UserID, claims.TokenType, nil
}

func GetTokenFromAuthorizationHeader(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", errors.New("Authorization header is not a Bearer token")
	}

	return token, nil
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := GetTokenFromAuthorizationHeader(c)
		if err != nil {
			c.AbortWithStatus(400)
			return
		}

		userID, tokenType, err := TokenCheck(token, JWTKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatus(401)
				return
			}
			c.AbortWithStatus(400)
			return
		}

		if tokenType != TokenAccess {
			c.AbortWithStatus(401)
			return
		}

		// check if user in database
		exists, err := models.CheckIfUserExistsByID(userID)
		if err != nil {
			logger.Error("%v", err)
			c.AbortWithStatus(500)
			return
		}

		if exists {
			c.Set(ContextUserIDKey, userID)
			c.Next()
			return
		} else {
			c.JSON(401, gin.H{"error": "User not authorized"})
			c.Abort()
			return
		}
	}
}

func GetUserIDFromGinContext(c *gin.Context) (int64, error) {
	userIDAny, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, logger.WrapError(errors.New("user_id not in GIN context"), "")
	}

	userID, ok := userIDAny.(int64)
	if !ok {
		return 0, logger.WrapError(errors.New("user_id in GIN context is not int64"), "")
	}

	return userID, nil
}
