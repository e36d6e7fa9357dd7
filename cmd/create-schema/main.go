package main

import (
	"context"
	"fmt"

	"itsamatch-backend/config"
	"itsamatch-backend/logger"
	"itsamatch-backend/repository"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "console")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout)
	defer cancel()

	store, err := repository.NewPreferenceStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to preference store")
	}
	defer store.Close(context.Background())

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create preference schema")
	}

	switch cfg.Store.Type {
	case repository.StoreTypeMongo:
		fmt.Printf("✅ Unique index on (user_id, app_id) ready in %s.%s\n", cfg.Store.Database, cfg.Store.Collection)
	case repository.StoreTypePostgres:
		fmt.Printf("✅ Table %s ready with unique (user_id, app_id)\n", cfg.Store.Collection)
	default:
		fmt.Printf("Store type %s needs no schema\n", cfg.Store.Type)
	}
}
