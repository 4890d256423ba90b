package models

import "time"

// Voucher is a paid, time-boxed, single-use credential entitling its
// holder to one portal admission.
type Voucher struct {
	Code         string    `json:"code"`
	Amount       int64     `json:"amount"`
	Paid         bool      `json:"paid"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LockToDevice bool      `json:"lock_to_device,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	IsUsed       bool      `json:"is_used"`
}

// Redeemable reports whether the voucher can still be exchanged for a
// session at the given instant.
func (v *Voucher) Redeemable(now time.Time) bool {
	return v.Paid && !v.IsUsed && !now.After(v.ExpiresAt)
}

// CreateVoucherRequest is the request body for creating a voucher.
// Code is optional; a random one is generated when omitted.
type CreateVoucherRequest struct {
	Code         string `json:"code"`
	Amount       int64  `json:"amount"`
	LockToDevice bool   `json:"lock_to_device"`
	DeviceID     string `json:"device_id"`
}
