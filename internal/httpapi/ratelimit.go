package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/keeper-security/ksm-profile/pkg/types"
)

// RateLimiter is a token bucket shared by all clients of a server
type RateLimiter struct {
	rate       int       // requests per minute
	tokens     float64   // current tokens
	maxTokens  float64   // max tokens (burst)
	lastUpdate time.Time // last token update
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter allowing ratePerMinute requests with a
// burst of twice that.
func NewRateLimiter(ratePerMinute int) *RateLimiter {
	r := &RateLimiter{
		rate:      ratePerMinute,
		tokens:    float64(ratePerMinute),
		maxTokens: float64(ratePerMinute * 2),
		now:       time.Now,
	}
	r.lastUpdate = r.now()
	return r
}

// Allow takes a token if one is available
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Refill based on time passed
	now := r.now()
	elapsed := now.Sub(r.lastUpdate)
	r.tokens = min(r.tokens+elapsed.Minutes()*float64(r.rate), r.maxTokens)
	r.lastUpdate = now

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Middleware rejects requests with 429 once the bucket is empty
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(r.rate)))
			respondJSON(w, http.StatusTooManyRequests, types.SafeError{
				Code:    "rate_limited",
				Message: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func retryAfterSeconds(ratePerMinute int) int {
	if ratePerMinute <= 0 || ratePerMinute >= 60 {
		return 1
	}
	return 60 / ratePerMinute
}
