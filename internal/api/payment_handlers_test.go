package api_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kabconnect-backend/internal/payment"
)

const webhookSecret = "sk_test_123"

func newPaymentEnv(t *testing.T) *testEnv {
	t.Helper()

	client, err := payment.NewClient("https://api.paystack.co", webhookSecret, zerolog.Nop())
	require.NoError(t, err)
	return newTestEnv(t, 10, client)
}

func (env *testEnv) postWebhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("x-paystack-signature", signature)

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookMarksVoucherPaid(t *testing.T) {
	env := newPaymentEnv(t)

	_, err := env.vouchers.Create("CODE-1", 500, false, "")
	require.NoError(t, err)

	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref-1",
			"status": "success",
			"metadata": {"voucher_code": "CODE-1"}
		}
	}`)

	rec := env.postWebhook(t, body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	voucher, err := env.vouchers.Get("CODE-1")
	require.NoError(t, err)
	require.True(t, voucher.Paid)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newPaymentEnv(t)

	_, err := env.vouchers.Create("CODE-1", 500, false, "")
	require.NoError(t, err)

	body := []byte(`{"event": "charge.success", "data": {"metadata": {"voucher_code": "CODE-1"}}}`)

	rec := env.postWebhook(t, body, "not-a-signature")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	voucher, err := env.vouchers.Get("CODE-1")
	require.NoError(t, err)
	require.False(t, voucher.Paid)
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	env := newPaymentEnv(t)

	_, err := env.vouchers.Create("CODE-1", 500, false, "")
	require.NoError(t, err)

	body := []byte(`{"event": "transfer.success", "data": {"metadata": {"voucher_code": "CODE-1"}}}`)

	rec := env.postWebhook(t, body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	voucher, err := env.vouchers.Get("CODE-1")
	require.NoError(t, err)
	require.False(t, voucher.Paid)
}

func TestWebhookUnknownVoucherAcknowledged(t *testing.T) {
	env := newPaymentEnv(t)

	body := []byte(`{"event": "charge.success", "data": {"metadata": {"voucher_code": "nope"}}}`)

	// Acknowledged so the gateway stops retrying.
	rec := env.postWebhook(t, body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentRoutesDisabledWithoutGateway(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	rec := env.request(t, http.MethodPost, "/payment/init", map[string]interface{}{
		"email":  "user@example.com",
		"amount": 500,
	}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
