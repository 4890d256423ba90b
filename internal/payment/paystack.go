package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrMissingSecretKey   = errors.New("paystack secret key is not configured")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
	ErrVerificationFailed = errors.New("transaction verification failed")
	ErrUnexpectedGateway  = errors.New("unexpected response from payment gateway")
)

// Client talks to the Paystack API. Settlement confirmation arrives via
// webhook; this service only ever marks vouchers paid, it never touches
// sessions.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	log       zerolog.Logger
}

// NewClient creates a Paystack API client.
func NewClient(baseURL, secretKey string, log zerolog.Logger) (*Client, error) {
	if secretKey == "" {
		return nil, ErrMissingSecretKey
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("component", "payment").Logger(),
	}, nil
}

// InitializeTransactionResponse is the subset of the Paystack
// initialize response the portal cares about.
type InitializeTransactionResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction starts a transaction for the given amount.
// Amount is in the major currency unit; Paystack expects kobo.
func (c *Client) InitializeTransaction(email string, amount int64) (*InitializeTransactionResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":  email,
		"amount": amount * 100,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.mountHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedGateway, resp.StatusCode)
	}

	var payload struct {
		Status  bool                          `json:"status"`
		Message string                        `json:"message"`
		Data    InitializeTransactionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if !payload.Status {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedGateway, payload.Message)
	}

	c.log.Info().Str("reference", payload.Data.Reference).Msg("payment initialized")
	return &payload.Data, nil
}

// VerifyTransaction checks with Paystack that the referenced
// transaction settled successfully.
func (c *Client) VerifyTransaction(reference string) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return err
	}
	c.mountHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnexpectedGateway, resp.StatusCode)
	}

	var payload struct {
		Status bool `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	if !payload.Status || payload.Data.Status != "success" {
		return ErrVerificationFailed
	}

	c.log.Info().Str("reference", reference).Msg("transaction verified")
	return nil
}

// WebhookEvent is a Paystack webhook notification. The voucher being
// paid for travels in the transaction metadata.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Metadata  struct {
			VoucherCode string `json:"voucher_code"`
		} `json:"metadata"`
	} `json:"data"`
}

// ParseWebhook verifies the x-paystack-signature header (HMAC-SHA512 of
// the raw body keyed with the secret) and decodes the event.
func (c *Client) ParseWebhook(body []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return nil, ErrSignatureMismatch
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) mountHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
}
