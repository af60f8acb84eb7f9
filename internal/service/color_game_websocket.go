package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
	"github.com/bish9oi/color-splash-casino-online/pkg/redis"
)

// upgrader is used to upgrade HTTP connections to WebSocket connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ColorWinData is the cross-player win feed entry kept in Redis.
type ColorWinData struct {
	UserID       int64           `json:"user_id"`
	Username     string          `json:"username"`
	WinningColor BetColor        `json:"winning_color"`
	Payout       decimal.Decimal `json:"payout"`
	Timestamp    int64           `json:"timestamp"`
}

// ColorGameWebsocketService streams recent color game wins to clients.
type ColorGameWebsocketService struct {
	redisService *redis.RedisService
}

func NewColorGameWebsocketService(redisService *redis.RedisService) *ColorGameWebsocketService {
	return &ColorGameWebsocketService{
		redisService: redisService,
	}
}

// GetRecentWins handles GET requests to fetch recent color game wins.
func (s *ColorGameWebsocketService) GetRecentWins(c *gin.Context) {
	wins, err := s.fetchRecentWins(c.Request.Context(), 10)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}
	if len(wins) < 1 {
		c.String(404, "[]")
		return
	}
	c.JSON(200, wins)
}

// LiveWinsWebsocketHandler pushes every new win over the WebSocket connection.
func (s *ColorGameWebsocketService) LiveWinsWebsocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("%v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var lastWinTimestamp int64

	for range ticker.C {
		wins, err := s.fetchRecentWins(c.Request.Context(), 1)
		if err != nil {
			logger.Error("%v", err)
			return
		}

		if len(wins) > 0 {
			latestWin := wins[0]
			if latestWin.Timestamp > lastWinTimestamp {
				if err := conn.WriteJSON(latestWin); err != nil {
					logger.Error("%v", err)
					return
				}
				lastWinTimestamp = latestWin.Timestamp
			}
		}
	}
}

// fetchRecentWins retrieves the newest win entries from Redis, newest first.
func (s *ColorGameWebsocketService) fetchRecentWins(ctx context.Context, limit int) ([]ColorWinData, error) {
	keys, err := s.redisService.Client().Keys(ctx, "colorgame:win:*").Result()
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > limit {
		keys = keys[:limit]
	}

	var wins []ColorWinData
	for _, key := range keys {
		data, err := s.redisService.GetKey(ctx, key)
		if err != nil {
			return nil, logger.WrapError(err, "")
		}

		var win ColorWinData
		if err := json.Unmarshal([]byte(data), &win); err != nil {
			return nil, logger.WrapError(err, "")
		}

		wins = append(wins, win)
	}

	return wins, nil
}
