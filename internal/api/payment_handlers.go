package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/payment"
)

type initPaymentRequest struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// initPayment handles POST /payment/init
func (h *Handler) initPayment(c echo.Context) error {
	var req initPaymentRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing required parameters: <email:string> or <amount:number>",
		})
	}

	result, err := h.payments.InitializeTransaction(req.Email, req.Amount)
	if err != nil {
		h.log.Error().Err(err).Msg("error initializing transaction")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to initialize transaction",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// verifyPayment handles GET /payment/verify/:reference
func (h *Handler) verifyPayment(c echo.Context) error {
	reference := c.Param("reference")
	if reference == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing required parameter: <reference>",
		})
	}

	if err := h.payments.VerifyTransaction(reference); err != nil {
		if errors.Is(err, payment.ErrVerificationFailed) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "transaction verification failed",
			})
		}
		h.log.Error().Err(err).Msg("error verifying transaction")
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to verify transaction",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}

// paymentWebhook handles POST /payment/webhook. A settled charge marks
// the voucher referenced in the transaction metadata as paid.
func (h *Handler) paymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
	}

	signature := c.Request().Header.Get("x-paystack-signature")
	event, err := h.payments.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureMismatch) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid webhook signature",
			})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid webhook payload",
		})
	}

	if event.Event == "charge.success" && event.Data.Metadata.VoucherCode != "" {
		err := h.vouchers.MarkPaid(event.Data.Metadata.VoucherCode)
		switch {
		case errors.Is(err, database.ErrVoucherNotFound):
			// Not retryable; acknowledge so the gateway stops resending.
			h.log.Warn().Str("voucher", event.Data.Metadata.VoucherCode).Msg("webhook for unknown voucher")
		case err != nil:
			h.log.Error().Err(err).Msg("webhook settlement failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "failed to process webhook",
			})
		default:
			h.log.Info().
				Str("voucher", event.Data.Metadata.VoucherCode).
				Str("reference", event.Data.Reference).
				Msg("voucher settled via webhook")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Webhook processed",
	})
}
