package main

import (
	"os"

	"github.com/gorilla/mux"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/gateway"
	"github.com/segyhp/jaryq-library/internal/handler"
	"github.com/segyhp/jaryq-library/internal/logging"
	"github.com/segyhp/jaryq-library/internal/ratelimit"
	"github.com/segyhp/jaryq-library/internal/server"
	"github.com/segyhp/jaryq-library/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		server.Fatal("failed to load configuration", err)
	}
	logger := logging.New(cfg.Logging, "gateway", os.Stdout)

	redisClient := server.InitRedis(cfg)
	defer redisClient.Close()

	routes, err := gateway.LoadRoutes(cfg.Gateway.RoutesFile, gateway.DefaultRoutes(cfg.Services))
	if err != nil {
		server.Fatal("failed to load routes", err)
	}

	clk := clock.NewSystem(nil)
	gw, err := gateway.New(routes, gateway.Options{
		Breakers:    breaker.NewRegistry(server.BreakerSettings(cfg, clk)),
		Limiter:     server.NewLimiter(cfg, redisClient, clk),
		KeyResolver: ratelimit.HeaderKeyResolver(cfg.RateLimit.KeyHeader),
		Clock:       clk,
	})
	if err != nil {
		server.Fatal("failed to build gateway", err)
	}

	// The route chain handles correlation ids itself, after the rewrite.
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	handler.NewHealthHandler(nil, redisClient, cfg.GetHealthTimeout()).Routes(router)
	gw.Routes(router)

	if err := server.Run(cfg, router); err != nil {
		server.Fatal("gateway stopped", err)
	}
}
