package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/correlation"
	"github.com/segyhp/jaryq-library/internal/ratelimit"
)

func testConfig() *config.Config {
	return &config.Config{
		Breaker: config.BreakerConfig{
			FailureRateThreshold: "0.25",
			WindowSize:           8,
			MinimumCalls:         4,
			OpenTimeout:          30 * time.Second,
			HalfOpenCalls:        2,
			CallTimeout:          time.Second,
		},
		RateLimit: config.RateLimitConfig{
			ReplenishRate:   2,
			BurstCapacity:   3,
			RequestedTokens: 1,
			Backend:         "redis",
		},
	}
}

func TestBreakerSettings(t *testing.T) {
	clk := clock.NewManual(time.Now())

	s := BreakerSettings(testConfig(), clk)

	assert.Equal(t, 8, s.WindowSize)
	assert.Equal(t, 4, s.MinimumCalls)
	assert.InDelta(t, 0.25, s.FailureRateThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, s.OpenTimeout)
	assert.Equal(t, 2, s.HalfOpenCalls)
	assert.Equal(t, time.Second, s.CallTimeout)
	assert.Same(t, clk, s.Clock)
	require.NotNil(t, s.OnStateChange)
	s.OnStateChange("books", breaker.StateClosed, breaker.StateOpen)
}

func TestNewLimiter(t *testing.T) {
	cfg := testConfig()
	clk := clock.NewManual(time.Now())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewLimiter(cfg, rdb, clk)
	assert.IsType(t, &ratelimit.RedisLimiter{}, l)
	assert.Equal(t, ratelimit.Policy{ReplenishRate: 2, BurstCapacity: 3, Requested: 1}, l.Policy())

	cfg.RateLimit.Backend = "memory"
	assert.IsType(t, &ratelimit.MemoryLimiter{}, NewLimiter(cfg, rdb, clk))

	cfg.RateLimit.Backend = "redis"
	assert.IsType(t, &ratelimit.MemoryLimiter{}, NewLimiter(cfg, nil, clk))
}

func TestNewRouter_LogsWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := NewRouter(logger)
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(correlation.Header, "trace-9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "trace-9", rec.Header().Get(correlation.Header))
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":204`)
}
