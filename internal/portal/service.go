package portal

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kabconnect-backend/internal/database"
	"kabconnect-backend/internal/metrics"
	"kabconnect-backend/internal/models"
)

// DefaultMaxConnections is the global cap on simultaneously active
// sessions when none is configured.
const DefaultMaxConnections = 200

var ErrInvalidInput = errors.New("missing voucher code or device identifier")

// Deny reasons returned on the LoginResult. Denials are normal business
// outcomes, not errors.
const (
	ReasonInvalidVoucher  = "invalid_or_expired_voucher"
	ReasonCapacityReached = "capacity_reached"
)

// VoucherStore is the voucher-side storage contract consumed by the
// admission service.
type VoucherStore interface {
	Create(code string, amount int64, lockToDevice bool, deviceID string) (*models.Voucher, error)
	Get(code string) (*models.Voucher, error)
	MarkPaid(code string) error
	Validate(code string) (bool, error)
	Redeem(code string) error
}

// SessionStore is the session-side storage contract. Create must
// perform the capacity check and the insert as one atomic step.
type SessionStore interface {
	Create(voucherCode, mac, ip string, maxActive int) (*models.Session, error)
	Get(sessionID string) (*models.Session, error)
	Terminate(sessionID string) error
	CountActive() (int, error)
	ListActive() ([]*models.Session, error)
	SweepExpired(maxAge time.Duration) (int, error)
}

// LoginResult is the admission decision. Reason is set only on denial.
type LoginResult struct {
	Granted   bool
	Reason    string
	SessionID string
}

// Service is the admission controller: the only component that
// sequences voucher and session state changes into one decision. It
// holds no persistent state of its own.
type Service struct {
	vouchers VoucherStore
	sessions SessionStore
	maxConns int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewService creates a new admission service
func NewService(vouchers VoucherStore, sessions SessionStore, maxConns int, m *metrics.Metrics, log zerolog.Logger) *Service {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	return &Service{
		vouchers: vouchers,
		sessions: sessions,
		maxConns: maxConns,
		metrics:  m,
		log:      log.With().Str("component", "portal").Logger(),
	}
}

// Login admits a device under the capacity cap in exchange for a valid
// voucher. The voucher is validated first (cheap check), the session is
// created under the capacity gate, and the voucher is redeemed last so a
// failed admission never consumes it.
func (s *Service) Login(voucherCode, mac, ip string) (*LoginResult, error) {
	if voucherCode == "" || mac == "" {
		return nil, ErrInvalidInput
	}

	valid, err := s.vouchers.Validate(voucherCode)
	if err != nil {
		return nil, err
	}
	if !valid {
		s.metrics.LoginDenied(ReasonInvalidVoucher)
		return &LoginResult{Reason: ReasonInvalidVoucher}, nil
	}

	// Device-locked vouchers are redeemable only by the device they
	// were issued to.
	voucher, err := s.vouchers.Get(voucherCode)
	if err != nil {
		return nil, err
	}
	if voucher.LockToDevice && voucher.DeviceID != mac {
		s.log.Warn().Str("voucher", voucherCode).Str("mac", mac).Msg("voucher locked to a different device")
		s.metrics.LoginDenied(ReasonInvalidVoucher)
		return &LoginResult{Reason: ReasonInvalidVoucher}, nil
	}

	session, err := s.sessions.Create(voucherCode, mac, ip, s.maxConns)
	if errors.Is(err, database.ErrCapacityExceeded) {
		s.metrics.LoginDenied(ReasonCapacityReached)
		return &LoginResult{Reason: ReasonCapacityReached}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.vouchers.Redeem(voucherCode); err != nil {
		// The session must not outlive a failed redemption; undo it
		// before reporting the outcome.
		if terr := s.sessions.Terminate(session.SessionID); terr != nil {
			s.log.Error().Err(terr).Str("session", session.SessionID).Msg("failed to terminate session after redeem failure")
		}
		if errors.Is(err, database.ErrVoucherUsed) || errors.Is(err, database.ErrVoucherNotFound) {
			// Lost a redemption race against a concurrent login.
			s.metrics.LoginDenied(ReasonInvalidVoucher)
			return &LoginResult{Reason: ReasonInvalidVoucher}, nil
		}
		return nil, err
	}

	s.metrics.LoginGranted()
	s.refreshActiveGauge()
	s.log.Info().Str("session", session.SessionID).Str("voucher", voucherCode).Str("mac", mac).Msg("access granted")

	return &LoginResult{Granted: true, SessionID: session.SessionID}, nil
}

// Logout terminates a session. Logging out an already-inactive session
// is a no-op; only unknown session IDs surface an error.
func (s *Service) Logout(sessionID string) error {
	if sessionID == "" {
		return ErrInvalidInput
	}

	if err := s.sessions.Terminate(sessionID); err != nil {
		return err
	}

	s.refreshActiveGauge()
	s.log.Info().Str("session", sessionID).Msg("session ended")
	return nil
}

// ActiveSessions returns a snapshot of active sessions for the network
// enforcement side to poll.
func (s *Service) ActiveSessions() ([]*models.Session, error) {
	return s.sessions.ListActive()
}

func (s *Service) refreshActiveGauge() {
	count, err := s.sessions.CountActive()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count active sessions")
		return
	}
	s.metrics.SetActiveSessions(count)
}
