package main

import (
	"context"
	"os"

	"github.com/segyhp/jaryq-library/internal/config"
	"github.com/segyhp/jaryq-library/internal/handler"
	"github.com/segyhp/jaryq-library/internal/logging"
	"github.com/segyhp/jaryq-library/internal/repository"
	"github.com/segyhp/jaryq-library/internal/server"
	"github.com/segyhp/jaryq-library/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		server.Fatal("failed to load configuration", err)
	}
	logger := logging.New(cfg.Logging, "books", os.Stdout)

	db, err := server.InitDB(cfg)
	if err != nil {
		server.Fatal("failed to initialize database", err)
	}
	defer db.Close()

	if err := repository.ApplySchema(context.Background(), db, repository.SchemaBooks); err != nil {
		server.Fatal("failed to apply schema", err)
	}

	bookService := service.NewBookService(repository.NewBookRepository(db))

	router := server.NewRouter(logger)
	handler.NewHealthHandler(db, nil, cfg.GetHealthTimeout()).Routes(router)
	handler.NewBookHandler(bookService).Routes(router)

	if err := server.Run(cfg, router); err != nil {
		server.Fatal("books service stopped", err)
	}
}
