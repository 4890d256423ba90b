package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kabconnect-backend/internal/api"
	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/metrics"
	"kabconnect-backend/internal/models"
	"kabconnect-backend/internal/payment"
	"kabconnect-backend/internal/portal"
)

type testEnv struct {
	e        *echo.Echo
	vouchers *database.VoucherRepo
	sessions *database.SessionRepo
}

func newTestEnv(t *testing.T, maxConns int, payments *payment.Client) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vouchers := database.NewVoucherRepo(db)
	sessions := database.NewSessionRepo(db)
	m := metrics.New(prometheus.NewRegistry())
	svc := portal.NewService(vouchers, sessions, maxConns, m, zerolog.Nop())

	e := echo.New()
	api.RegisterRoutes(e, api.NewHandler(svc, vouchers, payments, zerolog.Nop()), nil)

	return &testEnv{e: e, vouchers: vouchers, sessions: sessions}
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createPaidVoucher(t *testing.T, code string) {
	t.Helper()

	_, err := env.vouchers.Create(code, 500, false, "")
	require.NoError(t, err)
	require.NoError(t, env.vouchers.MarkPaid(code))
}

func decodePortalResponse(t *testing.T, rec *httptest.ResponseRecorder) models.PortalResponse {
	t.Helper()

	var resp models.PortalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	rec := env.request(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.createPaidVoucher(t, "CODE-1")

	rec := env.request(t, http.MethodPost, "/portal/login?ip=10.0.0.1",
		models.LoginRequest{VoucherCode: "CODE-1"},
		map[string]string{"X-Forwarded-For": "AA:BB:CC:DD:EE:FF"})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodePortalResponse(t, rec)
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.SessionID)

	// The admitted session shows up with its device identifiers.
	sessions, err := env.sessions.ListActive()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", sessions[0].MAC)
	require.Equal(t, "10.0.0.1", sessions[0].IP)
}

func TestLoginEndpointInvalidVoucher(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	rec := env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{VoucherCode: "nope"},
		map[string]string{"X-Forwarded-For": "AA:BB"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodePortalResponse(t, rec)
	require.False(t, resp.Success)
	require.Equal(t, "Invalid or expired voucher.", resp.Message)
}

func TestLoginEndpointMissingParameters(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	// No MAC header
	rec := env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{VoucherCode: "CODE-1"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// No voucher code
	rec = env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{}, map[string]string{"X-Forwarded-For": "AA:BB"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpointCapacityReached(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	env.createPaidVoucher(t, "CODE-1")
	env.createPaidVoucher(t, "CODE-2")

	rec := env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{VoucherCode: "CODE-1"},
		map[string]string{"X-Forwarded-For": "AA:BB"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{VoucherCode: "CODE-2"},
		map[string]string{"X-Forwarded-For": "CC:DD"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Maximum number of connections reached. Try again later.", decodePortalResponse(t, rec).Message)
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.createPaidVoucher(t, "CODE-1")

	rec := env.request(t, http.MethodPost, "/portal/login",
		models.LoginRequest{VoucherCode: "CODE-1"},
		map[string]string{"X-Forwarded-For": "AA:BB"})
	sessionID := decodePortalResponse(t, rec).SessionID

	rec = env.request(t, http.MethodPost, "/portal/logout",
		models.LogoutRequest{SessionID: sessionID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Logging out twice is fine.
	rec = env.request(t, http.MethodPost, "/portal/logout",
		models.LogoutRequest{SessionID: sessionID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown sessions are not.
	rec = env.request(t, http.MethodPost, "/portal/logout",
		models.LogoutRequest{SessionID: "nope"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Missing session ID.
	rec = env.request(t, http.MethodPost, "/portal/logout",
		models.LogoutRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveSessionsEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	rec := env.request(t, http.MethodGet, "/portal/sessions/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())

	for i := 0; i < 2; i++ {
		code := fmt.Sprintf("CODE-%d", i)
		env.createPaidVoucher(t, code)
		env.request(t, http.MethodPost, "/portal/login",
			models.LoginRequest{VoucherCode: code},
			map[string]string{"X-Forwarded-For": fmt.Sprintf("AA:BB:%02d", i)})
	}

	rec = env.request(t, http.MethodGet, "/portal/sessions/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)
}
