package database

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"kabconnect-backend/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrCapacityExceeded = errors.New("maximum number of active sessions reached")
)

// SessionRepo tracks currently- and formerly-active sessions and
// enforces the global capacity invariant at the point of creation.
//
// All mutations of the active flag (create, terminate, sweep) go through
// mu, so two concurrent logins can never both observe count < cap and
// both be admitted.
type SessionRepo struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

// Create inserts a new active session if the number of active sessions
// is below maxActive at the instant of creation. The capacity check and
// the insert form a single critical section. Returns
// ErrCapacityExceeded when the cap is reached.
func (r *SessionRepo) Create(voucherCode, mac, ip string, maxActive int) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM sessions WHERE active = 1").Scan(&count); err != nil {
		return nil, err
	}
	if count >= maxActive {
		return nil, ErrCapacityExceeded
	}

	now := r.now().UTC()
	session := &models.Session{
		SessionID:   models.SessionID(voucherCode, mac, now),
		VoucherCode: voucherCode,
		MAC:         mac,
		IP:          ip,
		Active:      true,
		CreatedAt:   now,
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (session_id, voucher_code, mac, ip, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, session.SessionID, session.VoucherCode, session.MAC, session.IP, session.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return session, nil
}

// Get retrieves a session by ID
func (r *SessionRepo) Get(sessionID string) (*models.Session, error) {
	session := &models.Session{}
	var endedAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT session_id, voucher_code, mac, ip, active, created_at, ended_at
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(
		&session.SessionID, &session.VoucherCode, &session.MAC, &session.IP,
		&session.Active, &session.CreatedAt, &endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		session.EndedAt = endedAt.Time
	}

	return session, nil
}

// Terminate deactivates a session. Terminating an already-inactive
// session is a no-op; unknown sessions return ErrSessionNotFound. The
// record is retained for audit purposes.
func (r *SessionRepo) Terminate(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.Exec(
		"UPDATE sessions SET active = 0, ended_at = ? WHERE session_id = ? AND active = 1",
		r.now().UTC(), sessionID,
	)
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

	// Nothing updated: distinguish already-inactive from unknown.
	var exists int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE session_id = ?", sessionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CountActive returns the number of sessions with active = true
func (r *SessionRepo) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE active = 1").Scan(&count)
	return count, err
}

// ListActive returns a fresh snapshot of all active sessions.
func (r *SessionRepo) ListActive() ([]*models.Session, error) {
	rows, err := r.db.Query(`
		SELECT session_id, voucher_code, mac, ip, active, created_at, ended_at
		FROM sessions WHERE active = 1 ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session := &models.Session{}
		var endedAt sql.NullTime
		err := rows.Scan(
			&session.SessionID, &session.VoucherCode, &session.MAC, &session.IP,
			&session.Active, &session.CreatedAt, &endedAt,
		)
		if err != nil {
			return nil, err
		}
		if endedAt.Valid {
			session.EndedAt = endedAt.Time
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// SweepExpired terminates active sessions whose age exceeds maxAge and
// returns how many were terminated. It takes the same lock as Create
// and Terminate, so a sweep never races a logout of the same session.
func (r *SessionRepo) SweepExpired(maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	cutoff := now.Add(-maxAge)

	result, err := r.db.Exec(
		"UPDATE sessions SET active = 0, ended_at = ? WHERE active = 1 AND created_at < ?",
		now, cutoff,
	)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	return int(rows), err
}
