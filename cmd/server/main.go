package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/backend"
	"github.com/org/stockdesk/internal/config"
	"github.com/org/stockdesk/internal/downloads"
	"github.com/org/stockdesk/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadFile(os.Getenv("STOCKDESK_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Msg("failed to open storage")
	}
	defer store.Close()

	srv := backend.NewServer(store, backend.Config{
		ListenAddr: cfg.Listen,
		RateLimit:  cfg.RateLimit,
	})
	if cfg.AdminEmail != "" {
		if err := srv.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin")
		}
	}

	proc := downloads.NewProcessor(store, nil, downloads.Config{
		Interval:  cfg.ProcessInterval,
		BatchSize: cfg.ProcessBatch,
		MaxBytes:  cfg.MaxDownloadBytes,
	})
	procDone := make(chan struct{})
	go func() {
		proc.Run(ctx)
		close(procDone)
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.Listen).Str("storage", cfg.Storage).Msg("server started")
	<-ctx.Done()

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	<-procDone
	log.Info().Msg("server stopped")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.Storage != "postgres" {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return storage.NewMemoryBackend(), nil
	}
	if err := storage.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, err
	}
	log.Info().Msg("migrations applied")
	return storage.NewPostgresBackend(ctx, cfg.DatabaseURL)
}
