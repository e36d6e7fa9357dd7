package main

import (
	"context"
	"fmt"
	"time"

	"itsamatch-backend/config"
	"itsamatch-backend/logger"
	"itsamatch-backend/repository"
	"itsamatch-backend/service"
	"itsamatch-backend/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "console")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout)
	defer cancel()

	store, err := repository.NewPreferenceStore(connectCtx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to preference store")
	}
	defer store.Close(context.Background())

	snapshotStorage, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("storage", string(cfg.Storage.Type)).Msg("failed to initialize storage")
	}

	snapshots := service.NewSnapshotService(
		service.SnapshotWithPreferenceStore(store),
		service.SnapshotWithStorage(snapshotStorage),
	)

	ctx, cancelRun := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelRun()

	result, err := snapshots.ExportSnapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to export preferences")
	}

	log.Info().
		Str("storage", string(cfg.Storage.Type)).
		Str("path", result.StoragePath).
		Int("documents", result.Count).
		Msg("snapshot written")
	fmt.Println(result.StoragePath)
}
