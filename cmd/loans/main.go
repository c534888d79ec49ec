package main

import (
	"context"
	"os"
	"time"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/domain"
	"github.com/segyhp/jaryq-library/internal/events"
	"github.com/segyhp/jaryq-library/internal/handler"
	"github.com/segyhp/jaryq-library/internal/logging"
	"github.com/segyhp/jaryq-library/internal/repository"
	"github.com/segyhp/jaryq-library/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		server.Fatal("failed to load configuration", err)
	}
	logger := logging.New(cfg.Logging, "loans", os.Stdout)

	db, err := server.InitDB(cfg)
	if err != nil {
		server.Fatal("failed to initialize database", err)
	}
	defer db.Close()

	if err := repository.ApplySchema(context.Background(), db, repository.SchemaLoans); err != nil {
		server.Fatal("failed to apply schema", err)
	}

	redisClient := server.InitRedis(cfg)
	defer redisClient.Close()

	clk := clock.NewSystem(cfg.GetSchedulerLocation())
	emitter := events.NewEmitter(
		events.NewRedisPublisher(redisClient, cfg.Events.StreamMaxLen),
		cfg.Events.BufferSize,
		clk,
	)
	emitter.Start()

	loanService := server.NewLoanService(cfg, db, emitter, clk)

	consumer := events.NewConsumer(redisClient, cfg.Events.ConsumerGroup+".loans", cfg.Events.ConsumerName, cfg.Events.BlockTime)
	consumer.Handle(domain.TopicLoanCommunication, events.Typed(loanService.UpdateCommunicationStatus))

	router := server.NewRouter(logger)
	handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout()).Routes(router)
	handler.NewLoanHandler(loanService).Routes(router)

	runErr := server.Run(cfg, router, consumer.Run)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := emitter.Close(ctx); err != nil {
		logger.Warn("events left unpublished", "error", err)
	}

	if runErr != nil {
		server.Fatal("loans service stopped", runErr)
	}
}
