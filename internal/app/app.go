package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/service"
	"github.com/bish9oi/color-splash-casino-online/pkg/checkout"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
	"github.com/bish9oi/color-splash-casino-online/pkg/redis"
)

const apiPrefix = "api/"

func Start() {
	gin.DisableConsoleColor()

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.BlockBadActorsMiddleware())
	authorized := router.Group("/", middleware.AuthMiddleware())

	// Redis backs the cross-player wins feed; the game itself runs without it
	var redisService *redis.RedisService
	if redisAddr, ok := os.LookupEnv("REDIS_ADDR"); ok {
		redisService = redis.NewRedisService(redisAddr, os.Getenv("REDIS_PASSWORD"))
	}

	service.Checkout = checkout.NewClientFromEnv()

	colorGame := service.NewColorGameService(redisService)
	colorGameWS := service.NewColorGameWebsocketService(redisService)

	// router
	{
		// auth
		router.POST(apiPrefix+"users/register", service.SignUp)
		router.POST(apiPrefix+"users/login", service.Login)

		// payment system
		router.POST(apiPrefix+"payments/postback", service.PaymentSystemPostback)
	}

	// authorized
	{
		// users
		authorized.GET(apiPrefix+"users", service.GetUser)

		// wallet
		authorized.GET(apiPrefix+"wallet", service.GetWallet)
		authorized.GET(apiPrefix+"wallet/transactions", service.GetWalletTransactions)

		// deposits
		authorized.POST(apiPrefix+"payments/checkout", service.CreateCheckoutSessionHandler)
		authorized.POST(apiPrefix+"payments/verify", service.VerifyPayment)

		// color game
		authorized.POST(apiPrefix+"games/color/place", colorGame.PlaceBet)
		authorized.GET(apiPrefix+"games/color/outcome", colorGame.GetOutcome)
		authorized.GET(apiPrefix+"games/color/history", colorGame.GetHistory)
		authorized.GET(apiPrefix+"games/color/stats", colorGame.GetStats)
	}

	if redisService != nil {
		authorized.GET(apiPrefix+"games/color/wins", colorGameWS.GetRecentWins)

		// Color game WebSocket routes
		router.GET(apiPrefix+"ws/colorgame/live", colorGameWS.LiveWinsWebsocketHandler)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: router.Handler(),
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server Shutdown: %v", err)
	}

	<-ctx.Done()
	logger.Info("Server exiting")
}
