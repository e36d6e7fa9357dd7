package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"itsamatch-backend/config"
	"itsamatch-backend/logger"
	"itsamatch-backend/models"
	"itsamatch-backend/repository"
	"itsamatch-backend/service"
	"itsamatch-backend/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	reset := flag.Bool("reset", false, "overwrite existing documents for the seeded keys")
	from := flag.String("from", "", "seed from a snapshot storage path instead of the built-in test users")
	flag.Parse()

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

	opts := []service.SnapshotServiceOption{service.SnapshotWithPreferenceStore(store)}
	if *from != "" {
		snapshotStorage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize storage")
		}
		opts = append(opts, service.SnapshotWithStorage(snapshotStorage))
	}
	snapshots := service.NewSnapshotService(opts...)

	ctx, cancelRun := context.WithTimeout(context.Background(), time.Minute)
	defer cancelRun()

	docs := testUsers()
	if *from != "" {
		docs, err = snapshots.LoadSnapshot(ctx, *from)
		if err != nil {
			log.Fatal().Err(err).Str("path", *from).Msg("failed to load snapshot")
		}
	}

	result, err := snapshots.ImportDocuments(ctx, service.ImportDocumentsRequest{
		Documents: docs,
		Reset:     *reset,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed preferences")
	}

	fmt.Printf("✅ Inserted %d documents, replaced %d, skipped %d existing\n", result.Inserted, result.Replaced, result.Skipped)

	for _, doc := range docs {
		stored, err := store.FindOne(ctx, doc.Key())
		if err != nil {
			log.Warn().Err(err).Str("user_id", doc.UserID).Msg("seeded document not readable")
			continue
		}
		fmt.Printf("   %s: %v %v\n", stored.UserID, stored.Preferences, stored.Settings)
	}
}

func testUsers() []*models.PreferenceDocument {
	seed := []struct {
		userID   string
		prefs    models.UserPreferences
		settings models.UserSettings
	}{
		{"user1", models.UserPreferences{Theme: "dark", NotificationsEnabled: true, Language: "en"}, models.UserSettings{Timezone: "UTC", Location: "US"}},
		{"user2", models.UserPreferences{Theme: "light", NotificationsEnabled: false, Language: "es"}, models.UserSettings{Timezone: "Europe/Madrid", Location: "ES"}},
		{"user3", models.UserPreferences{Theme: "system", NotificationsEnabled: true, Language: "fr"}, models.UserSettings{Timezone: "Europe/Paris", Location: "FR"}},
		{"user4", models.UserPreferences{Theme: "dark", NotificationsEnabled: true, Language: "de"}, models.UserSettings{Timezone: "Europe/Berlin", Location: "DE"}},
		{"user5", models.UserPreferences{Theme: "light", NotificationsEnabled: false, Language: "it"}, models.UserSettings{Timezone: "Europe/Rome", Location: "IT"}},
	}

	docs := make([]*models.PreferenceDocument, 0, len(seed))
	for _, s := range seed {
		docs = append(docs, models.NewUserPreferenceDocument(s.userID, s.prefs, s.settings))
	}
	return docs
}
