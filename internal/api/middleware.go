package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

// requestIDMiddleware tags every request with an id for log correlation
// and echoes it back as X-Request-ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logger.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-request-id"
	}
	return hex.EncodeToString(b)
}

// rateLimiter enforces a per-caller token bucket, keyed by origin so one
// noisy page cannot starve the others. Internal UI traffic shares the
// "internal" bucket.
type rateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	rps     rate.Limit
	burst   int
	enabled bool
}

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(rps, burst int, enabled bool) *rateLimiter {
	rl := &rateLimiter{
		callers: make(map[string]*caller),
		rps:     rate.Limit(rps),
		burst:   burst,
		enabled: enabled,
	}

	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	c, exists := rl.callers[key]
	if !exists {
		c = &caller{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.callers[key] = c
	}
	c.lastSeen = time.Now()
	limiter := c.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)

		rl.mu.Lock()
		for key, c := range rl.callers {
			if time.Since(c.lastSeen) > 3*time.Minute {
				delete(rl.callers, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) limit(key func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(key(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, apperrors.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
