package main

import (
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skybi/inbox/internal/api"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/api/web/session/storage/inmem"
	"github.com/skybi/inbox/internal/api/web/session/storage/postgres"
	"github.com/skybi/inbox/internal/config"
	"github.com/skybi/inbox/internal/metrics"
	"github.com/skybi/inbox/internal/task"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// Set up zerolog to use pretty printing
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out: os.Stderr,
	})
	log.Info().Msg("starting up...")

	// Load the application configuration
	log.Info().Msg("loading configuration...")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	if cfg.IsEnvProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().
		Str("listen_address", cfg.ListenAddress).
		Str("base_address", cfg.BaseAddress).
		Str("issuer", cfg.ProviderURL()).
		Strs("scopes", cfg.Scopes).
		Str("messages_endpoint", cfg.MessagesEndpoint).
		Str("session_storage", cfg.SessionStorage).
		Dur("session_lifetime", cfg.SessionLifetime).
		Msg("loaded configuration")

	ctx := context.Background()

	// Initialize the session storage driver
	log.Info().Str("driver", cfg.SessionStorage).Msg("initializing session storage...")
	var sessions session.Storage
	switch cfg.SessionStorage {
	case config.SessionStoragePostgres:
		driver := postgres.New(cfg.PostgresDSN)
		if err := driver.Initialize(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not initialize the database connection")
		}
		defer driver.Close()
		sessions = driver
	default:
		driver, err := inmem.New()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize the in-memory session storage")
		}
		sessions = driver
	}

	// Create the metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Schedule a task that purges expired sessions
	cleanupTask := task.NewRepeating(func() {
		n, err := sessions.TerminateExpired(ctx)
		if err != nil {
			log.Error().Err(err).Msg("could not terminate expired sessions")
		} else if n > 0 {
			appMetrics.SessionsExpired.Add(float64(n))
			log.Info().Int("amount", n).Msg("terminated expired sessions")
		}
	}, time.Minute)
	cleanupTask.Start()
	defer cleanupTask.Stop(true)

	// Start up the web service
	log.Info().Str("address", cfg.ListenAddress).Msg("starting up the web service...")
	apis := &api.Service{
		Config:   cfg,
		Sessions: sessions,
		Metrics:  appMetrics,
		Gatherer: registry,
	}
	apiErrs := make(chan error, 1)
	if err := apis.Startup(ctx, apiErrs); err != nil {
		log.Fatal().Err(err).Msg("could not start up the web service")
	}
	go func() {
		err := <-apiErrs
		log.Fatal().Err(err).Msg("the web service raised an unexpected error")
	}()
	defer func() {
		log.Info().Msg("shutting down the web service...")
		apis.Shutdown()
	}()

	log.Info().Msg("done!")
	defer log.Info().Msg("shutting down...")

	// Wait for the application to be terminated
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
}
