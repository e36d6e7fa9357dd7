package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"itsamatch-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPreferenceStore stores preference documents as JSONB rows.
// app_id is '' for user-scoped documents so the unique key covers both variants.
type PostgresPreferenceStore struct {
	db       *pgxpool.Pool
	database string
	table    string
}

// NewPostgresPreferenceStore opens a pool and verifies the connection
func NewPostgresPreferenceStore(ctx context.Context, cfg StoreConfig) (*PostgresPreferenceStore, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("postgres connection string is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = poolCfg.ConnConfig.Database
	}
	return NewPostgresPreferenceStoreFromPool(pool, database, cfg.Collection), nil
}

// NewPostgresPreferenceStoreFromPool wraps an existing pool
func NewPostgresPreferenceStoreFromPool(db *pgxpool.Pool, database, table string) *PostgresPreferenceStore {
	if table == "" {
		table = "preferences"
	}
	return &PostgresPreferenceStore{db: db, database: database, table: table}
}

func (s *PostgresPreferenceStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

const postgresColumns = "id, user_id, app_id, preferences, settings, created_at, updated_at"

func scanPostgresDocument(row pgx.Row) (*models.PreferenceDocument, error) {
	doc := &models.PreferenceDocument{}
	var id uuid.UUID
	err := row.Scan(
		&id,
		&doc.UserID,
		&doc.AppID,
		&doc.Preferences,
		&doc.Settings,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ID = id.String()
	if doc.Preferences == nil {
		doc.Preferences = map[string]interface{}{}
	}
	if doc.CreatedAt != nil {
		t := doc.CreatedAt.UTC()
		doc.CreatedAt = &t
	}
	if doc.UpdatedAt != nil {
		t := doc.UpdatedAt.UTC()
		doc.UpdatedAt = &t
	}
	return doc, nil
}

// FindOne returns the document stored under key
func (s *PostgresPreferenceStore) FindOne(ctx context.Context, key models.PreferenceKey) (*models.PreferenceDocument, error) {
	query := `SELECT ` + postgresColumns + ` FROM ` + s.ident() + ` WHERE user_id = $1 AND app_id = $2`

	doc, err := scanPostgresDocument(s.db.QueryRow(ctx, query, key.UserID, key.AppID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return doc, nil
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING against the unique key
func (s *PostgresPreferenceStore) InsertIfAbsent(ctx context.Context, doc *models.PreferenceDocument) (*models.PreferenceDocument, bool, error) {
	query := `
		INSERT INTO ` + s.ident() + ` (id, user_id, app_id, preferences, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, app_id) DO NOTHING
		RETURNING ` + postgresColumns

	prefs := doc.Preferences
	if prefs == nil {
		prefs = map[string]interface{}{}
	}

	stored, err := scanPostgresDocument(s.db.QueryRow(
		ctx, query,
		uuid.New(),
		doc.UserID,
		doc.AppID,
		prefs,
		doc.Settings,
		doc.CreatedAt,
		doc.UpdatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert preferences: %w", err)
	}

	existing, err := s.FindOne(ctx, doc.Key())
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Replace rewrites every column except the internal id
func (s *PostgresPreferenceStore) Replace(ctx context.Context, doc *models.PreferenceDocument) error {
	query := `
		UPDATE ` + s.ident() + ` SET
			preferences = $3,
			settings = $4,
			created_at = $5,
			updated_at = $6
		WHERE user_id = $1 AND app_id = $2`

	prefs := doc.Preferences
	if prefs == nil {
		prefs = map[string]interface{}{}
	}

	tag, err := s.db.Exec(ctx, query,
		doc.UserID,
		doc.AppID,
		prefs,
		doc.Settings,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields sets the named JSONB columns
func (s *PostgresPreferenceStore) UpdateFields(ctx context.Context, key models.PreferenceKey, fields map[string]interface{}) error {
	if err := checkUpdateFields(fields); err != nil {
		return err
	}

	args := []interface{}{key.UserID, key.AppID}
	var sets []string
	for _, name := range []string{FieldPreferences, FieldSettings} {
		if v, ok := fields[name]; ok {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
		}
	}
	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE ` + s.ident() + ` SET ` + strings.Join(sets, ", ") + ` WHERE user_id = $1 AND app_id = $2`
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row stored under key
func (s *PostgresPreferenceStore) Delete(ctx context.Context, key models.PreferenceKey) error {
	query := `DELETE FROM ` + s.ident() + ` WHERE user_id = $1 AND app_id = $2`
	tag, err := s.db.Exec(ctx, query, key.UserID, key.AppID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every row ordered by key
func (s *PostgresPreferenceStore) List(ctx context.Context) ([]*models.PreferenceDocument, error) {
	query := `SELECT ` + postgresColumns + ` FROM ` + s.ident() + ` ORDER BY user_id, app_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var docs []*models.PreferenceDocument
	for rows.Next() {
		doc, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Stats counts rows and reports the table's total relation size
func (s *PostgresPreferenceStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{
		Backend:    string(StoreTypePostgres),
		Database:   s.database,
		Collection: s.table,
	}

	query := `SELECT COUNT(*), pg_total_relation_size($1::regclass) FROM ` + s.ident()
	if err := s.db.QueryRow(ctx, query, s.ident()).Scan(&stats.DocumentCount, &stats.SizeBytes); err != nil {
		return nil, fmt.Errorf("failed to read preference stats: %w", err)
	}
	return stats, nil
}

// EnsureSchema creates the table and its unique key
func (s *PostgresPreferenceStore) EnsureSchema(ctx context.Context) error {
	schemaSQL := `
CREATE TABLE IF NOT EXISTS ` + s.ident() + ` (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    app_id TEXT NOT NULL DEFAULT '',
    preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
    settings JSONB,
    created_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ,
    UNIQUE (user_id, app_id)
);`

	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

// Ping checks the pool can reach the server
func (s *PostgresPreferenceStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool
func (s *PostgresPreferenceStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}
