package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes. A nil limiter leaves login
// unthrottled.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter *RateLimiter) {
	// Health check (public)
	e.GET("/api/health", h.healthCheck)

	// Captive portal routes, consumed by the portal web page and the
	// chat-bot collaborator
	portalGroup := e.Group("/portal")
	if limiter != nil {
		portalGroup.POST("/login", h.login, limiter.Middleware())
	} else {
		portalGroup.POST("/login", h.login)
	}
	portalGroup.POST("/logout", h.logout)
	portalGroup.GET("/sessions/active", h.activeSessions)

	// Voucher lifecycle routes, consumed by the bot/admin collaborators
	vouchers := e.Group("/vouchers")
	vouchers.POST("", h.createVoucher)
	vouchers.GET("/:code", h.getVoucher)
	vouchers.POST("/:code/paid", h.markVoucherPaid)

	// Payment gateway routes, registered only when a gateway is configured
	if h.payments != nil {
		pay := e.Group("/payment")
		pay.POST("/init", h.initPayment)
		pay.GET("/verify/:reference", h.verifyPayment)
		pay.POST("/webhook", h.paymentWebhook)
	}
}
