package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"itsamatch-backend/config"
	"itsamatch-backend/logger"
	"itsamatch-backend/repository"
	"itsamatch-backend/server"
	"itsamatch-backend/service"
	"itsamatch-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "console")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize the preference store
	store, err := initStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", string(cfg.Store.Type)).Msg("failed to initialize preference store")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Error().Err(err).Msg("failed to close preference store")
		} else {
			log.Info().Msg("preference store closed")
		}
	}()

	// Initialize services
	preferenceService := service.NewPreferenceService(
		service.WithPreferenceStore(store),
	)

	routerCfg := server.RouterConfig{
		PreferenceService: preferenceService,
		ConnectionString:  cfg.RedactedStoreURL(),
		CORSOrigins:       cfg.CORSOrigins,
		LegacyRoutes:      cfg.LegacyRoutes,
	}

	if cfg.SnapshotRoutes {
		snapshotStorage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Str("storage", string(cfg.Storage.Type)).Msg("failed to initialize snapshot storage")
		}
		routerCfg.SnapshotService = service.NewSnapshotService(
			service.SnapshotWithPreferenceStore(store),
			service.SnapshotWithStorage(snapshotStorage),
		)
		log.Info().Str("storage", string(cfg.Storage.Type)).Msg("snapshot routes enabled")
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	} else {
		log.Info().Msg("server shutdown complete")
	}
}

func initStore(cfg *config.Config) (repository.PreferenceStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout)
	defer cancel()

	store, err := repository.NewPreferenceStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure preference schema; duplicate keys are not prevented by the store")
	} else {
		log.Info().Str("store", string(cfg.Store.Type)).Msg("preference schema ready")
	}

	log.Info().
		Str("store", string(cfg.Store.Type)).
		Str("url", cfg.RedactedStoreURL()).
		Str("database", cfg.Store.Database).
		Str("collection", cfg.Store.Collection).
		Msg("preference store connection established")
	return store, nil
}
