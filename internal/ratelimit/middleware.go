package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/response"
)

// Response headers describing the caller's bucket
const (
	HeaderRemaining     = "X-RateLimit-Remaining"
	HeaderReplenishRate = "X-RateLimit-Replenish-Rate"
	HeaderBurstCapacity = "X-RateLimit-Burst-Capacity"
	HeaderRequested     = "X-RateLimit-Requested-Tokens"
)

// RejectionMarker is implemented by response writers that need to know a
// request was turned away before reaching the next handler.
type RejectionMarker interface {
	MarkRateLimited()
}

// Middleware answers 429 once the caller's bucket is empty
func Middleware(limiter Limiter, resolve KeyResolver) func(http.Handler) http.Handler {
	policy := limiter.Policy()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := resolve(r)

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request", "key", key, "error", err)
			}

			h := w.Header()
			h.Set(HeaderRemaining, strconv.FormatInt(res.Remaining, 10))
			h.Set(HeaderReplenishRate, strconv.FormatFloat(policy.ReplenishRate, 'f', -1, 64))
			h.Set(HeaderBurstCapacity, strconv.Itoa(policy.BurstCapacity))
			h.Set(HeaderRequested, strconv.Itoa(policy.Requested))

			if !res.Allowed {
				slog.InfoContext(r.Context(), "rate limited", "key", key, "path", r.URL.Path)
				if m, ok := w.(RejectionMarker); ok {
					m.MarkRateLimited()
				}
				response.Error(w, r, http.StatusTooManyRequests, customError.ErrCodeTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
