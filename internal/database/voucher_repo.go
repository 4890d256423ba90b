package database

import (
	"database/sql"
	"errors"
	"time"

	"kabconnect-backend/internal/models"
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrVoucherExists   = errors.New("voucher code already exists")
	ErrVoucherUsed     = errors.New("voucher already used")
)

// Voucher validity window, measured from creation.
const voucherTTL = 24 * time.Hour

// VoucherRepo is the single source of truth for voucher validity and
// redemption state.
type VoucherRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewVoucherRepo creates a new voucher repository
func NewVoucherRepo(db *sql.DB) *VoucherRepo {
	return &VoucherRepo{db: db, now: time.Now}
}

// Create inserts a new, unpaid voucher expiring 24 hours from now.
// Returns ErrVoucherExists if the code is already taken.
func (r *VoucherRepo) Create(code string, amount int64, lockToDevice bool, deviceID string) (*models.Voucher, error) {
	now := r.now().UTC()
	voucher := &models.Voucher{
		Code:         code,
		Amount:       amount,
		Paid:         false,
		CreatedAt:    now,
		ExpiresAt:    now.Add(voucherTTL),
		LockToDevice: lockToDevice,
		DeviceID:     deviceID,
	}

	var exists int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM vouchers WHERE code = ?", code).Scan(&exists); err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, ErrVoucherExists
	}

	_, err := r.db.Exec(`
		INSERT INTO vouchers (code, amount, paid, created_at, expires_at, lock_to_device, device_id, is_used)
		VALUES (?, ?, 0, ?, ?, ?, ?, 0)
	`, voucher.Code, voucher.Amount, voucher.CreatedAt, voucher.ExpiresAt, voucher.LockToDevice, voucher.DeviceID)
	if err != nil {
		return nil, err
	}

	return voucher, nil
}

// Get retrieves a voucher by code
func (r *VoucherRepo) Get(code string) (*models.Voucher, error) {
	voucher := &models.Voucher{}

	err := r.db.QueryRow(`
		SELECT code, amount, paid, created_at, expires_at, lock_to_device, device_id, is_used
		FROM vouchers WHERE code = ?
	`, code).Scan(
		&voucher.Code, &voucher.Amount, &voucher.Paid,
		&voucher.CreatedAt, &voucher.ExpiresAt, &voucher.LockToDevice, &voucher.DeviceID, &voucher.IsUsed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}

	return voucher, nil
}

// MarkPaid records external payment confirmation for a voucher.
func (r *VoucherRepo) MarkPaid(code string) error {
	result, err := r.db.Exec("UPDATE vouchers SET paid = 1 WHERE code = ?", code)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVoucherNotFound
	}

	return nil
}

// Validate reports whether the voucher is redeemable: paid, unused and
// not past its expiry. Business violations (unknown code, unpaid, used,
// expired) return false rather than an error; only storage failures
// surface as errors.
func (r *VoucherRepo) Validate(code string) (bool, error) {
	voucher, err := r.Get(code)
	if errors.Is(err, ErrVoucherNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return voucher.Redeemable(r.now().UTC()), nil
}

// Redeem marks the voucher identified by code as used. The update is
// keyed by code so a redemption can never touch any other voucher.
// Returns ErrVoucherNotFound for unknown codes and ErrVoucherUsed when
// the voucher was already redeemed.
func (r *VoucherRepo) Redeem(code string) error {
	result, err := r.db.Exec("UPDATE vouchers SET is_used = 1 WHERE code = ? AND is_used = 0", code)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	// Nothing updated: either the code is unknown or it lost a redemption race.
	var isUsed bool
	err = r.db.QueryRow("SELECT is_used FROM vouchers WHERE code = ?", code).Scan(&isUsed)
	if err == sql.ErrNoRows {
		return ErrVoucherNotFound
	}
	if err != nil {
		return err
	}
	if isUsed {
		return ErrVoucherUsed
	}
	return ErrVoucherNotFound
}
