package server

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/client"
	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/ratelimit"
	"github.com/segyhp/jaryq-library/internal/repository"
	"github.com/segyhp/jaryq-library/internal/service"
)

// NewLoanService wires the coordinator to its store and to the peer
// services, each behind its own breaker.
func NewLoanService(cfg *config.Config, db *sqlx.DB, emitter service.EventEmitter, clk clock.Clock) *service.LoanService {
	breakers := breaker.NewRegistry(BreakerSettings(cfg, clk))
	httpClient := &http.Client{}

	return service.NewLoanService(
		repository.NewLoanRepository(db),
		client.NewBooksClient(cfg.Services.BooksURL, httpClient, breakers.Get("books")),
		client.NewMembersClient(cfg.Services.MembersURL, httpClient, breakers.Get("members")),
		emitter,
		clk,
	)
}

// NewLimiter picks the rate-limit bucket store named by RATE_LIMIT_BACKEND
func NewLimiter(cfg *config.Config, rdb *redis.Client, clk clock.Clock) ratelimit.Limiter {
	policy := ratelimit.Policy{
		ReplenishRate: cfg.RateLimit.ReplenishRate,
		BurstCapacity: cfg.RateLimit.BurstCapacity,
		Requested:     cfg.RateLimit.RequestedTokens,
	}
	if cfg.RateLimit.Backend == "memory" || rdb == nil {
		return ratelimit.NewMemoryLimiter(policy, clk)
	}
	return ratelimit.NewRedisLimiter(rdb, policy, clk)
}
