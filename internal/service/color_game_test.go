package service

import (
	"errors"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bish9oi/color-splash-casino-online/cmd/db"
	"github.com/bish9oi/color-splash-casino-online/internal/models"
)

// seedForColor finds an rng seed whose first draw lands on the wanted color.
func seedForColor(t *testing.T, want BetColor) int64 {
	t.Helper()
	for seed := int64(0); seed < 1000; seed++ {
		if BetColors[rand.New(rand.NewSource(seed)).Intn(len(BetColors))] == want {
			return seed
		}
	}
	t.Fatal("no seed found for color " + string(want))
	return 0
}

func newGameRouter(svc *ColorGameService, userID int64) *gin.Engine {
	r := gin.New()
	r.POST("/place", setUser(userID), svc.PlaceBet)
	r.GET("/outcome", setUser(userID), svc.GetOutcome)
	r.GET("/history", setUser(userID), svc.GetHistory)
	r.GET("/stats", setUser(userID), svc.GetStats)
	return r
}

func waitForSettlement(t *testing.T, svc *ColorGameService, userID int64) RoundOutcome {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		sess := svc.sessionLocked(userID)
		if sess.inFlight == nil && len(sess.history) > 0 {
			outcome := sess.history[0]
			svc.mu.Unlock()
			return outcome
		}
		svc.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("round never settled")
	return RoundOutcome{}
}

func TestDrawWinningColorIsRoughlyUniform(t *testing.T) {
	svc := NewColorGameService(nil)

	const trials = 9000
	counts := make(map[BetColor]int)
	for i := 0; i < trials; i++ {
		counts[svc.drawWinningColor()]++
	}

	for _, color := range BetColors {
		n := counts[color]
		if n < 2700 || n > 3300 {
			t.Errorf("color %s drawn %d times out of %d, expected close to %d",
				color, n, trials, trials/len(BetColors))
		}
	}
}

func TestPlaceBetRejectsBelowMinimum(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	if err := models.AdjustBalance(nil, 1, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/place",
		strings.NewReader(`{"color":"red","amount":5}`))
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	wallet, err := models.GetOrCreateWallet(nil, 1)
	if err != nil {
		t.Fatalf("GetOrCreateWallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100 (rejected bet must not debit)", wallet.Balance)
	}
}

func TestPlaceBetRejectsInsufficientFunds(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	if err := models.AdjustBalance(nil, 1, decimal.NewFromInt(15)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/place",
		strings.NewReader(`{"color":"blue","amount":20}`))
	r.ServeHTTP(w, req)

	if w.Code != 402 {
		t.Fatalf("status = %d, want 402", w.Code)
	}

	wallet, err := models.GetOrCreateWallet(nil, 1)
	if err != nil {
		t.Fatalf("GetOrCreateWallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(15)) {
		t.Errorf("balance = %s, want 15 (failed bet must not debit)", wallet.Balance)
	}

	// the in-flight slot must be released so the next bet is allowed
	svc.mu.Lock()
	inFlight := svc.sessionLocked(1).inFlight
	svc.mu.Unlock()
	if inFlight != nil {
		t.Error("in-flight slot still held after a rejected bet")
	}
}

func TestPlaceBetRejectsUnknownColor(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/place",
		strings.NewReader(`{"color":"green","amount":10}`))
	r.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPlaceBetWinningRound(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)
	svc.countdown = 10 * time.Millisecond
	svc.rng = rand.New(rand.NewSource(seedForColor(t, ColorRed)))

	if err := models.AdjustBalance(nil, 1, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/place",
		strings.NewReader(`{"color":"red","amount":20}`))
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	outcome := waitForSettlement(t, svc, 1)
	if !outcome.IsWin {
		t.Fatalf("outcome.IsWin = false, rng was seeded to draw %s", ColorRed)
	}
	if outcome.WinningColor != ColorRed || outcome.ChosenColor != ColorRed {
		t.Errorf("outcome colors = %s/%s, want red/red",
			outcome.ChosenColor, outcome.WinningColor)
	}
	if !outcome.Payout.Equal(decimal.NewFromInt(40)) {
		t.Errorf("payout = %s, want 40", outcome.Payout)
	}

	// -20 stake, +40 payout
	wallet, err := models.GetOrCreateWallet(nil, 1)
	if err != nil {
		t.Fatalf("GetOrCreateWallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(120)) {
		t.Errorf("balance = %s, want 120", wallet.Balance)
	}

	svc.mu.Lock()
	stats := svc.sessionLocked(1).stats
	svc.mu.Unlock()
	if stats.TotalGames != 1 || stats.TotalWins != 1 || stats.WinStreak != 1 {
		t.Errorf("stats = %+v, want 1 game, 1 win, streak 1", stats)
	}
}

func TestPlaceBetLosingRound(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)
	svc.countdown = 10 * time.Millisecond
	svc.rng = rand.New(rand.NewSource(seedForColor(t, ColorBlue)))

	if err := models.AdjustBalance(nil, 1, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/place",
		strings.NewReader(`{"color":"red","amount":20}`))
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	outcome := waitForSettlement(t, svc, 1)
	if outcome.IsWin {
		t.Fatal("outcome.IsWin = true, rng was seeded to draw a different color")
	}
	if !outcome.Payout.Equal(decimal.Zero) {
		t.Errorf("payout = %s, want 0", outcome.Payout)
	}

	// only the stake left the wallet
	wallet, err := models.GetOrCreateWallet(nil, 1)
	if err != nil {
		t.Fatalf("GetOrCreateWallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(80)) {
		t.Errorf("balance = %s, want 80", wallet.Balance)
	}

	svc.mu.Lock()
	stats := svc.sessionLocked(1).stats
	svc.mu.Unlock()
	if stats.TotalGames != 1 || stats.TotalWins != 0 || stats.WinStreak != 0 {
		t.Errorf("stats = %+v, want 1 game, 0 wins, streak 0", stats)
	}
}

func TestBeginRoundRejectsSecondBet(t *testing.T) {
	svc := NewColorGameService(nil)

	if _, err := svc.beginRound(1, ColorRed, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("first beginRound: %v", err)
	}

	_, err := svc.beginRound(1, ColorBlue, decimal.NewFromInt(10))
	if !errors.Is(err, ErrBetInFlight) {
		t.Fatalf("second beginRound error = %v, want ErrBetInFlight", err)
	}

	// another user is not blocked by the first user's round
	if _, err := svc.beginRound(2, ColorBlue, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("beginRound for second user: %v", err)
	}
}

func TestHistoryCapsAtWindowMostRecentFirst(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	const rounds = HistoryWindow + 2
	roundIDs := make([]string, 0, rounds)
	for i := 0; i < rounds; i++ {
		round, err := svc.beginRound(1, ColorYellow, decimal.NewFromInt(10))
		if err != nil {
			t.Fatalf("beginRound %d: %v", i, err)
		}
		roundIDs = append(roundIDs, round.RoundID)
		if err := svc.settleRound(1, round.RoundID); err != nil {
			t.Fatalf("settleRound %d: %v", i, err)
		}
	}

	svc.mu.Lock()
	sess := svc.sessionLocked(1)
	history := make([]RoundOutcome, len(sess.history))
	copy(history, sess.history)
	stats := sess.stats
	svc.mu.Unlock()

	if len(history) != HistoryWindow {
		t.Fatalf("history length = %d, want %d", len(history), HistoryWindow)
	}
	// newest first: history[0] is the last round played
	if history[0].RoundID != roundIDs[rounds-1] {
		t.Errorf("history[0] = round %s, want the most recent round %s",
			history[0].RoundID, roundIDs[rounds-1])
	}
	// the two oldest rounds fell off the window
	if history[len(history)-1].RoundID != roundIDs[2] {
		t.Errorf("oldest kept round = %s, want %s",
			history[len(history)-1].RoundID, roundIDs[2])
	}
	// the counters keep the full total even after truncation
	if stats.TotalGames != rounds {
		t.Errorf("TotalGames = %d, want %d", stats.TotalGames, rounds)
	}
}

func TestWinStreakResetsOnLoss(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	play := func(chosen BetColor, winSeed int64) {
		t.Helper()
		svc.mu.Lock()
		svc.rng = rand.New(rand.NewSource(winSeed))
		svc.mu.Unlock()
		round, err := svc.beginRound(1, chosen, decimal.NewFromInt(10))
		if err != nil {
			t.Fatalf("beginRound: %v", err)
		}
		if err := svc.settleRound(1, round.RoundID); err != nil {
			t.Fatalf("settleRound: %v", err)
		}
	}

	redSeed := seedForColor(t, ColorRed)
	blueSeed := seedForColor(t, ColorBlue)

	play(ColorRed, redSeed)
	play(ColorRed, redSeed)
	play(ColorRed, blueSeed) // loss
	play(ColorRed, redSeed)

	svc.mu.Lock()
	stats := svc.sessionLocked(1).stats
	svc.mu.Unlock()

	if stats.TotalGames != 4 || stats.TotalWins != 3 {
		t.Fatalf("stats = %+v, want 4 games and 3 wins", stats)
	}
	if stats.WinStreak != 1 {
		t.Errorf("WinStreak = %d, want 1 (reset by the loss, then one win)", stats.WinStreak)
	}
}

func TestSettlementFailureClearsInFlightAndIsNotALoss(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)
	svc.rng = rand.New(rand.NewSource(seedForColor(t, ColorRed)))

	round, err := svc.beginRound(1, ColorRed, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("beginRound: %v", err)
	}

	// kill the database so the win credit cannot be recorded
	sqlDB, err := db.DB.DB()
	if err != nil {
		t.Fatalf("get database handle: %v", err)
	}
	sqlDB.Close()

	if err := svc.settleRound(1, round.RoundID); err == nil {
		t.Fatal("settleRound returned nil, want the persistence error")
	}

	svc.mu.Lock()
	sess := svc.sessionLocked(1)
	inFlight := sess.inFlight
	history := make([]RoundOutcome, len(sess.history))
	copy(history, sess.history)
	stats := sess.stats
	svc.mu.Unlock()

	// the user must not be stuck behind a dead round
	if inFlight != nil {
		t.Error("in-flight slot still held after a failed settlement")
	}

	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	outcome := history[0]
	if !outcome.SettleFailed {
		t.Error("SettleFailed = false, want true")
	}
	if !outcome.IsWin {
		t.Error("IsWin = false, the draw matched and a failed credit is not a loss")
	}
	if !outcome.Payout.Equal(decimal.Zero) {
		t.Errorf("payout = %s, want 0 (nothing was credited)", outcome.Payout)
	}

	// the round counts as played but never as a win or a loss
	if stats.TotalGames != 1 {
		t.Errorf("TotalGames = %d, want 1", stats.TotalGames)
	}
	if stats.TotalWins != 0 {
		t.Errorf("TotalWins = %d, want 0", stats.TotalWins)
	}
	if stats.WinStreak != 0 {
		t.Errorf("WinStreak = %d, want 0", stats.WinStreak)
	}

	// a fresh bet is allowed immediately
	if _, err := svc.beginRound(1, ColorBlue, decimal.NewFromInt(10)); err != nil {
		t.Errorf("beginRound after failed settlement: %v", err)
	}
}

func TestClearSessionDropsHistoryAndStats(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	round, err := svc.beginRound(1, ColorRed, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("beginRound: %v", err)
	}
	if err := svc.settleRound(1, round.RoundID); err != nil {
		t.Fatalf("settleRound: %v", err)
	}

	svc.ClearSession(1)

	svc.mu.Lock()
	sess := svc.sessionLocked(1)
	games, histLen := sess.stats.TotalGames, len(sess.history)
	svc.mu.Unlock()

	if games != 0 || histLen != 0 {
		t.Errorf("after ClearSession: games=%d history=%d, want both 0", games, histLen)
	}
}

func TestGetHistoryEmptyReturnsNotFound(t *testing.T) {
	setupTestDB(t)
	svc := NewColorGameService(nil)

	r := newGameRouter(svc, 1)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/history", nil))

	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if w.Body.String() != "[]" {
		t.Errorf("body = %q, want %q", w.Body.String(), "[]")
	}
}
