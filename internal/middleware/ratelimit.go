package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/verimarket/backend/internal/response"
)

const (
	defaultRequestsPerMinute = 60
	rateLimitWindow          = time.Minute
)

// Counter increments a key and sets its expiry in one round trip.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RateLimit provides fixed-window rate limiting per authenticated account.
type RateLimit struct {
	counter        Counter
	requestsPerMin int
}

func NewRateLimit(c Counter, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{counter: c, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting keyed by the principal set by Authenticate.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromCtx(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.counter.IncrWithExpiry(r.Context(), RateLimitKey(p.AccountID.String()), rateLimitWindow)
		if err != nil {
			// Fail open: a Redis outage must not take the API down.
			slog.Warn("rate limit counter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimitWindow).Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitKey is the counter key for one account.
func RateLimitKey(accountID string) string {
	return "ratelimit:" + accountID
}
