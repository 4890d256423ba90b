package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"kabconnect-backend/internal/models"
)

// RateLimiter throttles login attempts per client IP. Voucher codes are
// guessable, so the portal bounds how fast a single device can try them.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo

	maxAttempts int
	window      time.Duration
	blockTime   time.Duration

	stop chan struct{}
}

type attemptInfo struct {
	count     int
	firstTry  time.Time
	blockedAt time.Time
}

// NewRateLimiter allows maxAttempts per window and blocks the key for
// blockTime after exceeding it. The cleanup loop runs until Stop.
func NewRateLimiter(maxAttempts int, window, blockTime time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts:    make(map[string]*attemptInfo),
		maxAttempts: maxAttempts,
		window:      window,
		blockTime:   blockTime,
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// DefaultRateLimiter bounds a device to 10 login attempts per minute,
// blocked for 5 minutes after exceeding.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(10, time.Minute, 5*time.Minute)
}

// Allow reports whether the key may attempt another login now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	info, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &attemptInfo{count: 1, firstTry: now}
		return true
	}

	if !info.blockedAt.IsZero() {
		if now.Sub(info.blockedAt) < rl.blockTime {
			return false
		}
		// Block expired, start a fresh window.
		*info = attemptInfo{count: 1, firstTry: now}
		return true
	}

	if now.Sub(info.firstTry) > rl.window {
		*info = attemptInfo{count: 1, firstTry: now}
		return true
	}

	info.count++
	if info.count > rl.maxAttempts {
		info.blockedAt = now
		return false
	}
	return true
}

// Stop terminates the cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// cleanup drops entries whose window and block have both expired.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, info := range rl.attempts {
				windowExpired := now.Sub(info.firstTry) > rl.window
				blockExpired := info.blockedAt.IsZero() || now.Sub(info.blockedAt) > rl.blockTime
				if windowExpired && blockExpired {
					delete(rl.attempts, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Middleware returns an Echo middleware that rejects rate-limited requests.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(rl.blockTime.Seconds())))
				return c.JSON(http.StatusTooManyRequests, models.PortalResponse{
					Success: false,
					Message: "Too many login attempts, try again later.",
				})
			}
			return next(c)
		}
	}
}
