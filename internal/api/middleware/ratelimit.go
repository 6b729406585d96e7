package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/cache"
	"github.com/intelliparse/console/pkg/models"
)

const defaultRequestsPerMinute = 30

// sharedBucket counts verified requests that carry no identity at all.
const sharedBucket = "verified"

// SessionSource returns the cached session, if any.
type SessionSource interface {
	Get() (models.Session, bool)
}

// RateLimit provides fixed-window rate limiting through the cache.
type RateLimit struct {
	cache          cache.Cache
	sessions       SessionSource
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware. sessions may be nil, in
// which case requests are counted by the profile RequireSession attached.
func NewRateLimit(c cache.Cache, sessions SessionSource, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, sessions: sessions, requestsPerMin: requestsPerMin}
}

// Limit counts requests per signed-in identity. Requests that reached it
// without an identity check pass through uncounted.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := rl.identity(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(id)
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// Fail open
			slog.Warn("rate limit counter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(rl.requestsPerMin-int(count), 0)
		resetTime := time.Now().Add(60 * time.Second).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many submissions, slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// identity picks the counter key: the cached session identity first, then
// the verified profile's email, then one bucket shared by all verified
// requests without either.
func (rl *RateLimit) identity(r *http.Request) (string, bool) {
	profile, verified := GetProfile(r)
	if !verified {
		return "", false
	}
	if rl.sessions != nil {
		if sess, ok := rl.sessions.Get(); ok && sess.Identity != "" {
			return sess.Identity, true
		}
	}
	if profile.Email != "" {
		return profile.Email, true
	}
	return sharedBucket, true
}
