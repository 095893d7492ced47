package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ecoroute/ecoroute/internal/api/models"
)

// RateLimitConfig is a fixed window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets per endpoint class.
var (
	// OptimizeRateLimit covers the optimize endpoint, which makes live
	// provider calls for every candidate route.
	OptimizeRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// AdminRateLimit covers operator endpoints.
	AdminRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address (after chi's RealIP).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

// RateLimitBySubject limits authenticated callers by token subject and
// falls back to the client address.
func RateLimitBySubject(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySubjectOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

func keyBySubjectOrIP(r *http.Request) (string, error) {
	if subject := GetSubject(r.Context()); subject != "" {
		return "sub:" + subject, nil
	}
	return httprate.KeyByRealIP(r)
}

func rateLimitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		writeProblem(w, r, models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry later"))
	}
}
