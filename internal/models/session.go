package models

import (
	"fmt"
	"time"
)

// Session records one granted admission window, bounded to 24 hours and
// associated with a device. Sessions are kept after deactivation for
// audit purposes.
type Session struct {
	SessionID   string    `json:"session_id"`
	VoucherCode string    `json:"voucher_code"`
	MAC         string    `json:"mac"`
	IP          string    `json:"ip,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// SessionID derives a session identifier from the redeeming voucher, the
// device and the creation instant, so repeated logins by the same device
// still get distinct IDs.
func SessionID(voucherCode, mac string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", voucherCode, mac, createdAt.UnixMilli())
}

// LoginRequest represents the request body for portal login
type LoginRequest struct {
	VoucherCode string `json:"voucherCode"`
	TelegramID  int64  `json:"telegramId,omitempty"`
}

// LogoutRequest represents the request body for portal logout
type LogoutRequest struct {
	SessionID string `json:"sessionId"`
}

// PortalResponse is the JSON envelope returned by the portal endpoints
type PortalResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}
