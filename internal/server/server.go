// Package server holds the process bootstrap shared by every command:
// connections, breakers, the HTTP router and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/correlation"
	"github.com/segyhp/jaryq-library/pkg/response"
)

const shutdownTimeout = 30 * time.Second

func InitDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func InitRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// BreakerSettings is the breaker template built from config. Transitions
// are logged.
func BreakerSettings(cfg *config.Config, clk clock.Clock) breaker.Settings {
	return breaker.Settings{
		WindowSize:           cfg.Breaker.WindowSize,
		MinimumCalls:         cfg.Breaker.MinimumCalls,
		FailureRateThreshold: cfg.GetFailureRateThreshold(),
		OpenTimeout:          cfg.Breaker.OpenTimeout,
		HalfOpenCalls:        cfg.Breaker.HalfOpenCalls,
		CallTimeout:          cfg.Breaker.CallTimeout,
		Clock:                clk,
		OnStateChange: func(name string, from, to breaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// NewRouter returns a router with access logging and correlation ids
func NewRouter(logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(correlation.Middleware)
	router.Use(response.LoggingMiddleware(logger))
	return router
}

// Worker runs until ctx is cancelled
type Worker func(ctx context.Context) error

// Run serves handler and the workers until SIGINT or SIGTERM, then shuts
// the server down gracefully and waits for the workers to return.
func Run(cfg *config.Config, handler http.Handler, workers ...Worker) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w(ctx); err != nil {
				slog.Error("worker stopped", "error", err)
			}
		}(w)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case serveErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}

	slog.Info("server exited")
	return nil
}

// Fatal logs err and exits
func Fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
