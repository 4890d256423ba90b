package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/models"
)

// createVoucher handles POST /vouchers. New vouchers start unpaid; the
// payment collaborator marks them paid on settlement.
func (h *Handler) createVoucher(c echo.Context) error {
	var req models.CreateVoucherRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
	}
	if req.LockToDevice && req.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "device_id is required for device-locked vouchers",
		})
	}

	code := req.Code
	if code == "" {
		code = uuid.New().String()
	}

	voucher, err := h.vouchers.Create(code, req.Amount, req.LockToDevice, req.DeviceID)
	if err != nil {
		if errors.Is(err, database.ErrVoucherExists) {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "voucher code already exists",
			})
		}
		h.log.Error().Err(err).Msg("create voucher failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create voucher",
		})
	}

	return c.JSON(http.StatusCreated, voucher)
}

// getVoucher handles GET /vouchers/:code
func (h *Handler) getVoucher(c echo.Context) error {
	voucher, err := h.vouchers.Get(c.Param("code"))
	if err != nil {
		if errors.Is(err, database.ErrVoucherNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "voucher not found",
			})
		}
		h.log.Error().Err(err).Msg("get voucher failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to get voucher",
		})
	}
	return c.JSON(http.StatusOK, voucher)
}

// markVoucherPaid handles POST /vouchers/:code/paid, the manual
// settlement path used when payment is confirmed out of band.
func (h *Handler) markVoucherPaid(c echo.Context) error {
	code := c.Param("code")

	if err := h.vouchers.MarkPaid(code); err != nil {
		if errors.Is(err, database.ErrVoucherNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "voucher not found",
			})
		}
		h.log.Error().Err(err).Msg("mark voucher paid failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to mark voucher paid",
		})
	}

	h.log.Info().Str("voucher", code).Msg("voucher marked paid")
	return c.JSON(http.StatusOK, map[string]string{
		"status": "paid",
		"code":   code,
	})
}
