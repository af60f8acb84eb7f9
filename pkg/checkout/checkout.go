package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bish9oi/color-splash-casino-online/pkg/logger"
)

// Client talks to the hosted checkout provider. Only trusted server-side code
// goes through it, the browser never holds the API key.
type Client struct {
	BaseURL    string
	APIKey     string
	ReturnURL  string
	HTTPClient *http.Client
}

const PaymentStatusPaid = "paid"

// Session is the provider's view of a hosted checkout session.
type Session struct {
	ID            string `json:"session_id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

type createSessionRequest struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CustomUserID string `json:"custom_user_id"`
	Reference    string `json:"reference"`
	ReturnURL    string `json:"return_url"`
}

type createSessionResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

func NewClientFromEnv() *Client {
	baseURL, ok1 := os.LookupEnv("CHECKOUT_API_URL")
	apiKey, ok2 := os.LookupEnv("CHECKOUT_API_KEY")
	returnURL, ok3 := os.LookupEnv("CHECKOUT_RETURN_URL")
	if !ok1 || !ok2 || !ok3 {
		logger.Fatal("unable to get checkout provider parameters from environment")
	}

	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		ReturnURL: returnURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateSession asks the provider for a hosted checkout page and returns the
// session with its redirect URL.
func (c *Client) CreateSession(ctx context.Context, userRef, reference string, amount decimal.Decimal) (*Session, error) {
	reqBody := createSessionRequest{
		Amount:       amount.StringFixed(2),
		Currency:     "USDT",
		CustomUserID: userRef,
		Reference:    reference,
		ReturnURL:    c.ReturnURL,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/sessions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Apikey", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, logger.WrapError(
			fmt.Errorf("checkout provider returned status %d: %s", resp.StatusCode, string(body)), "")
	}

	var sessionResp createSessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, logger.WrapError(err, "")
	}

	if !sessionResp.Success {
		return nil, logger.WrapError(fmt.Errorf("checkout session creation rejected"), "")
	}

	return &Session{
		ID:  sessionResp.SessionID,
		URL: sessionResp.URL,
	}, nil
}

// RetrieveSession fetches a session by id, including its payment status.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.BaseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	req.Header.Set("Apikey", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, logger.WrapError(
			fmt.Errorf("checkout provider returned status %d: %s", resp.StatusCode, string(body)), "")
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &session, nil
}
