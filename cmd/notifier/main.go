package main

import (
	"os"

	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/events"
	"github.com/segyhp/jaryq-library/internal/handler"
	"github.com/segyhp/jaryq-library/internal/logging"
	"github.com/segyhp/jaryq-library/internal/notify"
	"github.com/segyhp/jaryq-library/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		server.Fatal("failed to load configuration", err)
	}
	logger := logging.New(cfg.Logging, "notifier", os.Stdout)

	redisClient := server.InitRedis(cfg)
	defer redisClient.Close()

	notifier := notify.NewNotifier(
		notify.LogSender{},
		events.NewRedisPublisher(redisClient, cfg.Events.StreamMaxLen),
		clock.NewSystem(cfg.GetSchedulerLocation()),
	)

	consumer := events.NewConsumer(redisClient, cfg.Events.ConsumerGroup+".notifier", cfg.Events.ConsumerName, cfg.Events.BlockTime)
	notifier.Register(consumer)

	router := server.NewRouter(logger)
	handler.NewHealthHandler(nil, redisClient, cfg.GetHealthTimeout()).Routes(router)

	if err := server.Run(cfg, router, consumer.Run); err != nil {
		server.Fatal("notifier stopped", err)
	}
}
