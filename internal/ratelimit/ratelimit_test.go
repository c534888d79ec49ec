package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/jaryq-library/internal/clock"
)

var epoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newRedisLimiter(t *testing.T, policy Policy, clk clock.Clock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisLimiter(rdb, policy, clk), mr
}

func limiters(t *testing.T, policy Policy, clk clock.Clock) map[string]Limiter {
	redisLimiter, _ := newRedisLimiter(t, policy, clk)
	return map[string]Limiter{
		"redis":  redisLimiter,
		"memory": NewMemoryLimiter(policy, clk),
	}
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	clk := clock.NewManual(epoch)
	policy := Policy{ReplenishRate: 1, BurstCapacity: 3, Requested: 1}

	for name, l := range limiters(t, policy, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				res, err := l.Allow(ctx, "user-1")
				require.NoError(t, err)
				assert.True(t, res.Allowed, "request %d", i)
				assert.Equal(t, int64(2-i), res.Remaining)
			}

			res, err := l.Allow(ctx, "user-1")
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, int64(0), res.Remaining)
		})
	}
}

func TestLimiter_Replenishes(t *testing.T) {
	policy := Policy{ReplenishRate: 2, BurstCapacity: 2, Requested: 1}

	for _, name := range []string{"redis", "memory"} {
		t.Run(name, func(t *testing.T) {
			clk := clock.NewManual(epoch)
			l := limiters(t, policy, clk)[name]
			ctx := context.Background()

			for i := 0; i < 2; i++ {
				res, err := l.Allow(ctx, "user-1")
				require.NoError(t, err)
				require.True(t, res.Allowed)
			}
			res, _ := l.Allow(ctx, "user-1")
			require.False(t, res.Allowed)

			clk.Advance(500 * time.Millisecond)
			res, err := l.Allow(ctx, "user-1")
			require.NoError(t, err)
			assert.True(t, res.Allowed)

			clk.Advance(10 * time.Second)
			res, err = l.Allow(ctx, "user-1")
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, int64(1), res.Remaining, "refill is capped at burst capacity")
		})
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	clk := clock.NewManual(epoch)
	policy := Policy{ReplenishRate: 1, BurstCapacity: 1, Requested: 1}

	for name, l := range limiters(t, policy, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			res, _ := l.Allow(ctx, "a")
			assert.True(t, res.Allowed)
			res, _ = l.Allow(ctx, "a")
			assert.False(t, res.Allowed)

			res, _ = l.Allow(ctx, "b")
			assert.True(t, res.Allowed)
		})
	}
}

func TestLimiter_RequestedLargerThanBurst(t *testing.T) {
	clk := clock.NewManual(epoch)
	policy := Policy{ReplenishRate: 1, BurstCapacity: 2, Requested: 3}

	for name, l := range limiters(t, policy, clk) {
		t.Run(name, func(t *testing.T) {
			res, err := l.Allow(context.Background(), "user-1")
			require.NoError(t, err)
			assert.False(t, res.Allowed)
		})
	}
}

func TestRedisLimiter_StoresBucketWithTTL(t *testing.T) {
	clk := clock.NewManual(epoch)
	l, mr := newRedisLimiter(t, Policy{ReplenishRate: 1, BurstCapacity: 5, Requested: 1}, clk)

	_, err := l.Allow(context.Background(), "user-1")
	require.NoError(t, err)

	key := "request_rate_limiter.{user-1}.tokens"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 10*time.Second, mr.TTL(key))
	assert.True(t, mr.Exists("request_rate_limiter.{user-1}.timestamp"))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	clk := clock.NewManual(epoch)
	l, mr := newRedisLimiter(t, Policy{ReplenishRate: 1, BurstCapacity: 1, Requested: 1}, clk)
	mr.Close()

	res, err := l.Allow(context.Background(), "user-1")

	assert.Error(t, err)
	assert.True(t, res.Allowed)
}

func TestPolicy_Defaults(t *testing.T) {
	p := Policy{}.normalized()

	assert.Equal(t, Policy{ReplenishRate: 1, BurstCapacity: 1, Requested: 1}, p)
}

func TestHeaderKeyResolver(t *testing.T) {
	resolve := HeaderKeyResolver("X-User-Id")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, AnonymousKey, resolve(req))

	req.Header.Set("X-User-Id", "180100586526")
	assert.Equal(t, "180100586526", resolve(req))
}

func TestMiddleware(t *testing.T) {
	clk := clock.NewManual(epoch)
	limiter := NewMemoryLimiter(Policy{ReplenishRate: 1, BurstCapacity: 1, Requested: 1}, clk)

	calls := 0
	h := Middleware(limiter, HeaderKeyResolver("X-User-Id"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/jaryqlibrary/books/fetch", nil)
		req.Header.Set("X-User-Id", "user-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, "1", rec.Header().Get(HeaderBurstCapacity))
	assert.Equal(t, "1", rec.Header().Get(HeaderReplenishRate))
	assert.Equal(t, "1", rec.Header().Get(HeaderRequested))

	rec = serve()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"TOO_MANY_REQUESTS"`)
	assert.Equal(t, 1, calls)
}

type markingRecorder struct {
	*httptest.ResponseRecorder
	marked int
}

func (m *markingRecorder) MarkRateLimited() { m.marked++ }

func TestMiddleware_MarksRejectedRequests(t *testing.T) {
	limiter := NewMemoryLimiter(Policy{ReplenishRate: 1, BurstCapacity: 1, Requested: 1}, clock.NewManual(epoch))
	h := Middleware(limiter, HeaderKeyResolver("X-User-Id"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := &markingRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/fetch", nil))
	assert.Equal(t, 0, rec.marked)

	rec = &markingRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/fetch", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, rec.marked)
}
