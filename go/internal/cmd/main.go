package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}

	cfg := loadConfig()
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, stopCancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopCancel()

	c := newCORS(cfg.AllowedOrigins)
	cfg.Connection.CheckOrigin = originChecker(c, cfg.AllowedOrigins)

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	go services.Dispatcher.Run(ctx)
	go services.Gateway.Start(ctx)

	server := setupServer(cfg, c, services)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stop.Done()
	log.Info().Msg("stop requested, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	services.Rooms.Shutdown()
	cancel()
	services.Dispatcher.Wait()

	stats := services.Dispatcher.Stats()
	log.Info().
		Uint64("events_published", stats.Published).
		Uint64("events_failed", stats.Failed).
		Uint64("events_dropped", stats.Dropped).
		Msg("server shutdown complete")
}

func setupLogging(cfg Config) {
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
