package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"kabconnect-backend/internal/payment"
	"kabconnect-backend/internal/portal"
)

// Handler bundles the collaborators the HTTP layer dispatches to. All
// dependencies are injected at startup.
type Handler struct {
	portal   *portal.Service
	vouchers portal.VoucherStore
	payments *payment.Client // nil when no gateway is configured
	log      zerolog.Logger
}

// NewHandler creates the API handler set
func NewHandler(svc *portal.Service, vouchers portal.VoucherStore, payments *payment.Client, log zerolog.Logger) *Handler {
	return &Handler{
		portal:   svc,
		vouchers: vouchers,
		payments: payments,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Health check
func (h *Handler) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
