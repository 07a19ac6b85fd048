package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mininotes/mininotes-go/internal/api"
	"github.com/mininotes/mininotes-go/internal/config"
	"github.com/mininotes/mininotes-go/internal/handler"
	"github.com/mininotes/mininotes-go/internal/logger"
	"github.com/mininotes/mininotes-go/internal/middleware"
	"github.com/mininotes/mininotes-go/internal/repository"
	"github.com/mininotes/mininotes-go/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return handler.ExitError
	}

	logger.Init(cfg.LogLevel, cfg.Env != "production")
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.StorageDriver, cfg.StorageDSN)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open session store")
		fmt.Fprintln(os.Stderr, "could not open local session store:", err)
		return handler.ExitError
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db, cfg.StorageDriver); err != nil {
		log.Error().Err(err).Msg("failed to migrate session store")
		fmt.Fprintln(os.Stderr, "could not prepare local session store:", err)
		return handler.ExitError
	}

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.RequestID,
			middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
			middleware.Logger,
		),
	}

	client := api.NewClient(cfg.APIURL, httpClient)
	sessions := service.NewSessionStore(client, repository.NewSessionRepository(db, cfg.StorageDriver))
	client.UseSession(sessions)

	notes := service.NewNotesViewModel(client, sessions)
	defer notes.Close()

	console := handler.NewConsole(os.Stdin, os.Stdout, os.Stderr)
	defer handler.AnnounceExpiry(sessions, console)()

	if _, err := sessions.RestoreSession(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore session")
	}

	router := handler.NewRouter(sessions, console)
	handler.Register(router,
		handler.NewAuthHandler(sessions, client, console),
		handler.NewNotesHandler(notes, client, console),
	)

	log.Debug().Str("api_url", cfg.APIURL).Str("env", cfg.Env).Msg("starting")
	return router.Run(ctx, args)
}
