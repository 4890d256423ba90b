package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/models"
	"kabconnect-backend/internal/portal"
)

// login handles POST /portal/login. The router in front of the portal
// supplies the device MAC in the X-Forwarded-For header and the client
// IP as a query parameter.
func (h *Handler) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.PortalResponse{
			Success: false,
			Message: "invalid request body",
		})
	}

	mac := c.Request().Header.Get("X-Forwarded-For")
	ip := c.QueryParam("ip")

	if req.VoucherCode == "" || mac == "" {
		return c.JSON(http.StatusBadRequest, models.PortalResponse{
			Success: false,
			Message: "Missing required parameters: <voucherCode> or <mac>",
		})
	}

	result, err := h.portal.Login(req.VoucherCode, mac, ip)
	if err != nil {
		if errors.Is(err, portal.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, models.PortalResponse{
				Success: false,
				Message: "Missing required parameters: <voucherCode> or <mac>",
			})
		}
		h.log.Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, models.PortalResponse{
			Success: false,
			Message: "Something went wrong, please try again later.",
		})
	}

	if !result.Granted {
		message := "Invalid or expired voucher."
		if result.Reason == portal.ReasonCapacityReached {
			message = "Maximum number of connections reached. Try again later."
		}
		return c.JSON(http.StatusBadRequest, models.PortalResponse{
			Success: false,
			Message: message,
		})
	}

	return c.JSON(http.StatusOK, models.PortalResponse{
		Success:   true,
		Message:   "Access granted! You are connected.",
		SessionID: result.SessionID,
	})
}

// logout handles POST /portal/logout
func (h *Handler) logout(c echo.Context) error {
	var req models.LogoutRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, models.PortalResponse{
			Success: false,
			Message: "Missing required parameter: <sessionId>",
		})
	}

	if err := h.portal.Logout(req.SessionID); err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, models.PortalResponse{
				Success: false,
				Message: "Unknown session.",
			})
		}
		h.log.Error().Err(err).Msg("logout failed")
		return c.JSON(http.StatusInternalServerError, models.PortalResponse{
			Success: false,
			Message: "Something went wrong, please try again later.",
		})
	}

	return c.JSON(http.StatusOK, models.PortalResponse{
		Success: true,
		Message: "Session ended.",
	})
}

// activeSessions handles GET /portal/sessions/active. The network
// enforcement collaborator polls this to open/close access per MAC/IP.
func (h *Handler) activeSessions(c echo.Context) error {
	sessions, err := h.portal.ActiveSessions()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list active sessions")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list active sessions",
		})
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}
