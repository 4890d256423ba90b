package portal

import (
	"time"

	"github.com/rs/zerolog"

	"kabconnect-backend/internal/metrics"
)

// DefaultSessionMaxAge is how long a session stays valid: access expires
// 24 hours after it was granted.
const DefaultSessionMaxAge = 24 * time.Hour

// Sweeper periodically terminates active sessions whose lifetime has
// elapsed. Mutations go through the session store's locked path, so a
// sweep never races a concurrent logout.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	maxAge   time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a sweeper that runs every interval and terminates
// sessions older than maxAge.
func NewSweeper(sessions SessionStore, interval, maxAge time.Duration, m *metrics.Metrics, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		maxAge:   maxAge,
		metrics:  m,
		log:      log.With().Str("component", "sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(); err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
			}
		case <-s.stop:
			return
		}
	}
}

// SweepOnce runs a single sweep pass and returns how many sessions were
// terminated.
func (s *Sweeper) SweepOnce() (int, error) {
	terminated, err := s.sessions.SweepExpired(s.maxAge)
	if err != nil {
		return 0, err
	}

	if terminated > 0 {
		s.metrics.SweepTerminated(terminated)
		if count, err := s.sessions.CountActive(); err == nil {
			s.metrics.SetActiveSessions(count)
		}
		s.log.Info().Int("terminated", terminated).Msg("expired sessions terminated")
	}

	return terminated, nil
}
