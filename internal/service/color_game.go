package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/middleware"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
	"github.com/bish9oi/color-splash-casino-online/pkg/redis"
)

const (
	MinBetAmount     = 10
	PayoutMultiplier = 2
	BetCountdown     = 3 * time.Second
	HistoryWindow    = 10
)

type BetColor string

const (
	ColorRed    BetColor = "red"
	ColorBlue   BetColor = "blue"
	ColorYellow BetColor = "yellow"
)

// BetColors is the fixed outcome set a round resolves to.
var BetColors = []BetColor{ColorRed, ColorBlue, ColorYellow}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBelowMinimumBet   = errors.New("bet amount is below the minimum")
	ErrBetInFlight       = errors.New("a bet is already in flight")
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

type ColorBetInput struct {
	Color  BetColor `json:"color" validate:"required,oneof=red blue yellow"`
	Amount float64  `json:"amount" validate:"required,gt=0"`
}

// RoundOutcome is ephemeral session state, never persisted. SettleFailed
// marks a matched draw whose credit could not be recorded, which is not the
// same thing as a loss.
type RoundOutcome struct {
	RoundID      string          `json:"round_id"`
	ChosenColor  BetColor        `json:"chosen_color"`
	WinningColor BetColor        `json:"winning_color"`
	IsWin        bool            `json:"is_win"`
	Payout       decimal.Decimal `json:"payout"`
	SettleFailed bool            `json:"settle_failed,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

type SessionStats struct {
	TotalGames int `json:"total_games"`
	TotalWins  int `json:"total_wins"`
	WinStreak  int `json:"win_streak"`
	WinRate    int `json:"win_rate"`
}

type activeRound struct {
	RoundID    string
	Color      BetColor
	Amount     decimal.Decimal
	ResolvesAt time.Time
}

type playerSession struct {
	inFlight *activeRound
	history  []RoundOutcome
	stats    SessionStats
}

// ColorGameService runs the three-color betting rounds. One outstanding bet
// per user, guarded by the service mutex rather than a client-side flag.
type ColorGameService struct {
	mu           sync.Mutex
	sessions     map[int64]*playerSession
	rng          *rand.Rand
	countdown    time.Duration
	redisService *redis.RedisService
}

// NewColorGameService creates the game service. redisService may be nil, the
// live wins feed is then skipped.
func NewColorGameService(redisService *redis.RedisService) *ColorGameService {
	return &ColorGameService{
		sessions:     make(map[int64]*playerSession),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		countdown:    BetCountdown,
		redisService: redisService,
	}
}

// sessionLocked returns the per-user session, creating it on first use.
// Callers must hold s.mu.
func (s *ColorGameService) sessionLocked(userID int64) *playerSession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &playerSession{}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *ColorGameService) drawWinningColor() BetColor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BetColors[s.rng.Intn(len(BetColors))]
}

func (s *ColorGameService) beginRound(userID int64, color BetColor, amount decimal.Decimal) (*activeRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessionLocked(userID)
	if sess.inFlight != nil {
		return nil, ErrBetInFlight
	}

	round := &activeRound{
		RoundID:    uuid.NewString(),
		Color:      color,
		Amount:     amount,
		ResolvesAt: time.Now().Add(s.countdown),
	}
	sess.inFlight = round

	return round, nil
}

func (s *ColorGameService) abortRound(userID int64, roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessionLocked(userID)
	if sess.inFlight != nil && sess.inFlight.RoundID == roundID {
		sess.inFlight = nil
	}
}

// PlaceBet validates the bet, records the bet transaction and debits the
// wallet in one database transaction, then schedules resolution after the
// countdown. The record write runs before the balance update; if either
// fails the placement fails as a whole and the in-flight slot is released.
func (s *ColorGameService) PlaceBet(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	var input ColorBetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := validate.Struct(input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if input.Amount < MinBetAmount {
		c.JSON(400, gin.H{"error": ErrBelowMinimumBet.Error()})
		return
	}

	amount := decimal.NewFromFloat(input.Amount).Round(2)

	round, err := s.beginRound(userID, input.Color, amount)
	if err != nil {
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		txn := models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeBet,
			Amount:      amount,
			Description: fmt.Sprintf("Bet on %s", input.Color),
			Status:      models.TransactionStatusCompleted,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return logger.WrapError(err, "")
		}

		if err := models.AdjustBalance(tx, userID, amount.Neg()); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		s.abortRound(userID, round.RoundID)
		if errors.Is(err, models.ErrNegativeBalance) {
			c.JSON(402, gin.H{"error": ErrInsufficientFunds.Error()})
			return
		}
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	go s.scheduleRoundSettlement(userID, round.RoundID)

	c.JSON(200, gin.H{
		"round_id":          round.RoundID,
		"color":             round.Color,
		"amount":            amount,
		"countdown_seconds": int(s.countdown.Seconds()),
		"resolves_at":       round.ResolvesAt,
	})
}

func (s *ColorGameService) scheduleRoundSettlement(userID int64, roundID string) {
	timer := time.NewTimer(s.countdown)
	defer timer.Stop()
	<-timer.C

	if err := s.settleRound(userID, roundID); err != nil {
		logger.Error("Error settling round %s: %v", roundID, err)
	}
}

// settleRound draws the winning color and, on a match, records the win
// transaction and credits 2x the stake. The in-flight slot clears no matter
// what happened, a persistence failure must never leave the user stuck.
func (s *ColorGameService) settleRound(userID int64, roundID string) error {
	s.mu.Lock()
	sess := s.sessionLocked(userID)
	round := sess.inFlight
	if round == nil || round.RoundID != roundID {
		// round already cleared, nothing to settle
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	winning := s.drawWinningColor()

	isWin := round.Color == winning
	payout := decimal.Zero

	var settleErr error
	if isWin {
		payout = round.Amount.Mul(decimal.NewFromInt(PayoutMultiplier))
		settleErr = db.DB.Transaction(func(tx *gorm.DB) error {
			txn := models.Transaction{
				UserID:      userID,
				Type:        models.TransactionTypeWin,
				Amount:      payout,
				Description: fmt.Sprintf("Won on %s", winning),
				Status:      models.TransactionStatusCompleted,
			}
			if err := tx.Create(&txn).Error; err != nil {
				return logger.WrapError(err, "")
			}

			if err := models.AdjustBalance(tx, userID, payout); err != nil {
				return logger.WrapError(err, "")
			}

			return nil
		})
	}

	outcome := RoundOutcome{
		RoundID:      round.RoundID,
		ChosenColor:  round.Color,
		WinningColor: winning,
		IsWin:        isWin,
		Payout:       payout,
		SettleFailed: settleErr != nil,
		Timestamp:    time.Now(),
	}
	if settleErr != nil {
		outcome.Payout = decimal.Zero
	}

	s.finishRound(userID, roundID, outcome)

	if outcome.IsWin && !outcome.SettleFailed {
		s.publishWin(userID, outcome)
	}

	if settleErr != nil {
		return logger.WrapError(settleErr, "")
	}

	return nil
}

// finishRound clears the in-flight slot, prepends the outcome to the rolling
// history and updates the session counters.
func (s *ColorGameService) finishRound(userID int64, roundID string, outcome RoundOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessionLocked(userID)
	if sess.inFlight == nil || sess.inFlight.RoundID != roundID {
		return
	}
	sess.inFlight = nil

	sess.history = append([]RoundOutcome{outcome}, sess.history...)
	if len(sess.history) > HistoryWindow {
		sess.history = sess.history[:HistoryWindow]
	}

	sess.stats.TotalGames++
	if outcome.SettleFailed {
		return
	}
	if outcome.IsWin {
		sess.stats.TotalWins++
		sess.stats.WinStreak++
	} else {
		sess.stats.WinStreak = 0
	}
}

// ClearSession drops the ephemeral history and counters, used on logout.
// A round still in flight keeps settling, the debit already stands.
func (s *ColorGameService) ClearSession(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *ColorGameService) publishWin(userID int64, outcome RoundOutcome) {
	if s.redisService == nil {
		return
	}

	var user models.User
	if err := db.DB.First(&user, userID).Error; err != nil {
		logger.Error("%v", err)
		return
	}

	win := ColorWinData{
		UserID:       userID,
		Username:     user.Username,
		WinningColor: outcome.WinningColor,
		Payout:       outcome.Payout,
		Timestamp:    outcome.Timestamp.UnixNano(),
	}

	data, err := json.Marshal(win)
	if err != nil {
		logger.Error("%v", err)
		return
	}

	key := fmt.Sprintf("colorgame:win:%d", win.Timestamp)
	if err := s.redisService.SetKey(context.Background(), key, data, time.Hour); err != nil {
		logger.Error("%v", err)
	}
}

// GetOutcome reports whether a bet is in flight and the last settled round.
func (s *ColorGameService) GetOutcome(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	s.mu.Lock()
	sess := s.sessionLocked(userID)
	inFlight := sess.inFlight
	var last *RoundOutcome
	if len(sess.history) > 0 {
		outcome := sess.history[0]
		last = &outcome
	}
	s.mu.Unlock()

	resp := gin.H{"in_flight": inFlight != nil}
	if inFlight != nil {
		resp["resolves_at"] = inFlight.ResolvesAt
		resp["color"] = inFlight.Color
	}
	if last != nil {
		resp["last_outcome"] = last
	}

	c.JSON(200, resp)
}

// GetHistory returns the last settled rounds, most-recent-first, capped at
// the history window.
func (s *ColorGameService) GetHistory(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	s.mu.Lock()
	sess := s.sessionLocked(userID)
	history := make([]RoundOutcome, len(sess.history))
	copy(history, sess.history)
	s.mu.Unlock()

	if len(history) == 0 {
		c.String(404, "[]")
		return
	}

	c.JSON(200, history)
}

func (s *ColorGameService) GetStats(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	s.mu.Lock()
	sess := s.sessionLocked(userID)
	stats := sess.stats
	s.mu.Unlock()

	if stats.TotalGames > 0 {
		stats.WinRate = int(float64(stats.TotalWins) / float64(stats.TotalGames) * 100)
	}

	c.JSON(200, stats)
}
