package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/octobees/signup/internal/config"
)

// VerificationRateLimiter applies a token bucket per visitor to verification-code requests.
// Rejected requests are answered by onLimit, or with a JSON 429 envelope when onLimit is nil.
func VerificationRateLimiter(cfg config.RateLimitConfig, onLimit echo.HandlerFunc) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return next(c)
			}
		}
	}
	if onLimit == nil {
		onLimit = func(c echo.Context) error {
			return c.JSON(http.StatusTooManyRequests, map[string]any{"success": false, "message": "verification code rate limit exceeded"})
		}
	}

	limiters := newLimiterSet(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := c.Get(ContextKeyVisitorID).(string)
			if key == "" {
				key = c.RealIP()
			}
			if !limiters.allow(key, time.Now()) {
				return onLimit(c)
			}
			return next(c)
		}
	}
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one bucket per key. Buckets idle for a whole interval are
// full again, so they are dropped and recreated on the next request.
type limiterSet struct {
	every    rate.Limit
	burst    int
	interval time.Duration

	mu        sync.Mutex
	limiters  map[string]*visitorLimiter
	lastSweep time.Time
}

func newLimiterSet(cfg config.RateLimitConfig) *limiterSet {
	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}
	return &limiterSet{
		every:    rate.Every(perRequest),
		burst:    cfg.Requests,
		interval: cfg.Interval,
		limiters: make(map[string]*visitorLimiter),
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.interval {
		for k, v := range s.limiters {
			if now.Sub(v.lastSeen) >= s.interval {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.limiters[key]
	if !ok {
		v = &visitorLimiter{limiter: rate.NewLimiter(s.every, s.burst)}
		s.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
