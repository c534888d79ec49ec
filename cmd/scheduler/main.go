package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/events"
	"github.com/segyhp/jaryq-library/internal/logging"
	"github.com/segyhp/jaryq-library/internal/server"
	"github.com/segyhp/jaryq-library/internal/service"
)

const reminderTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		server.Fatal("failed to load configuration", err)
	}
	logging.New(cfg.Logging, "scheduler", os.Stdout)
	slog.Info("starting scheduler")

	db, err := server.InitDB(cfg)
	if err != nil {
		server.Fatal("failed to initialize database", err)
	}
	defer db.Close()

	redisClient := server.InitRedis(cfg)
	defer redisClient.Close()

	loc := cfg.GetSchedulerLocation()
	clk := clock.NewSystem(loc)

	emitter := events.NewEmitter(
		events.NewRedisPublisher(redisClient, cfg.Events.StreamMaxLen),
		cfg.Events.BufferSize,
		clk,
	)
	emitter.Start()

	loanService := server.NewLoanService(cfg, db, emitter, clk)

	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))
	if err := setupCronJobs(c, cfg, loanService); err != nil {
		server.Fatal("failed to schedule jobs", err)
	}

	c.Start()
	slog.Info("scheduler started", "reminder_spec", cfg.Scheduler.ReminderSpec, "timezone", loc.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scheduler")
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := emitter.Close(ctx); err != nil {
		slog.Warn("events left unpublished", "error", err)
	}
	slog.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, loans *service.LoanService) error {
	// Daily reminder for loans due today, the only day they can be extended
	_, err := c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
		defer cancel()

		if _, err := loans.RemindDueToday(ctx); err != nil {
			slog.Error("due reminder job failed", "error", err)
		}
	})
	return err
}
