package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"sketchroom/pkg/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*rate.Limiter),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burstSize)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	// Try X-Forwarded-For first (behind proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "too many concurrent requests",
				})
				return
			}
		}

		ip := clientIP(c.Request)
		limiter := store.getLimiter(ip)
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(time.Second.Seconds()),
			})
			return
		}
		c.Next()
	}
}

// ConnectionLimiter gates WebSocket upgrades per client IP and caps the
// number of concurrently open sessions.
type ConnectionLimiter struct {
	enabled bool
	store   *rateLimiterStore
	sem     chan struct{}

	messageRate  rate.Limit
	messageBurst int
}

// NewConnectionLimiter builds the WebSocket limits from config. When rate
// limiting is disabled every call succeeds and message limiters are unbounded.
func NewConnectionLimiter(cfg *config.Config) *ConnectionLimiter {
	ws := cfg.RateLimiting.WebSocket
	l := &ConnectionLimiter{
		enabled:      cfg.RateLimiting.Enabled,
		messageRate:  rate.Inf,
		messageBurst: 1,
	}
	if !l.enabled {
		return l
	}

	l.store = newRateLimiterStore(rate.Limit(float64(ws.ConnectionsPerMinute)/60), ws.ConnectionsPerMinute)
	if ws.MaxConcurrent > 0 {
		l.sem = make(chan struct{}, ws.MaxConcurrent)
	}
	l.messageRate = rate.Limit(ws.MessagesPerSecond)
	l.messageBurst = ws.Burst
	return l
}

// Acquire reserves a session slot for r. The returned release func must be
// called when the session ends. It reports false with the HTTP status to
// reject with when a limit is hit.
func (l *ConnectionLimiter) Acquire(r *http.Request) (release func(), status int, ok bool) {
	if !l.enabled {
		return func() {}, 0, true
	}
	if !l.store.getLimiter(clientIP(r)).Allow() {
		return nil, http.StatusTooManyRequests, false
	}
	if l.sem == nil {
		return func() {}, 0, true
	}
	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.sem }) }, 0, true
	default:
		return nil, http.StatusServiceUnavailable, false
	}
}

// MessageLimiter returns a fresh per-session inbound message limiter.
func (l *ConnectionLimiter) MessageLimiter() *rate.Limiter {
	return rate.NewLimiter(l.messageRate, l.messageBurst)
}
