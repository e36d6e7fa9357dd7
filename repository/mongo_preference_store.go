package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"itsamatch-backend/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const mongoKeyIndexName = "user_app_unique"

// mongoPreferenceRecord is the stored shape of a preference document
type mongoPreferenceRecord struct {
	ID          bson.ObjectID          `bson:"_id,omitempty"`
	UserID      string                 `bson:"user_id"`
	AppID       string                 `bson:"app_id,omitempty"`
	Preferences map[string]interface{} `bson:"preferences"`
	Settings    map[string]interface{} `bson:"settings,omitempty"`
	CreatedAt   *time.Time             `bson:"created_at,omitempty"`
	UpdatedAt   *time.Time             `bson:"updated_at,omitempty"`
}

func newMongoRecord(doc *models.PreferenceDocument) *mongoPreferenceRecord {
	prefs := doc.Preferences
	if prefs == nil {
		prefs = map[string]interface{}{}
	}
	return &mongoPreferenceRecord{
		UserID:      doc.UserID,
		AppID:       doc.AppID,
		Preferences: prefs,
		Settings:    doc.Settings,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func (r *mongoPreferenceRecord) document() *models.PreferenceDocument {
	doc := &models.PreferenceDocument{
		UserID:      r.UserID,
		AppID:       r.AppID,
		Preferences: normalizeBSONFields(r.Preferences),
		Settings:    normalizeBSONFields(r.Settings),
	}
	if !r.ID.IsZero() {
		doc.ID = r.ID.Hex()
	}
	if r.CreatedAt != nil {
		t := r.CreatedAt.UTC()
		doc.CreatedAt = &t
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.UTC()
		doc.UpdatedAt = &t
	}
	if doc.Preferences == nil {
		doc.Preferences = map[string]interface{}{}
	}
	return doc
}

// MongoPreferenceStore stores preference documents in a MongoDB collection
type MongoPreferenceStore struct {
	client     *mongo.Client
	database   string
	collection *mongo.Collection
}

// NewMongoPreferenceStore connects to MongoDB and verifies the connection
func NewMongoPreferenceStore(ctx context.Context, cfg StoreConfig) (*MongoPreferenceStore, error) {
	if cfg.MongoURL == "" {
		return nil, errors.New("mongo connection string is required")
	}

	opts := options.Client().ApplyURI(cfg.MongoURL)
	if cfg.ConnectTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return NewMongoPreferenceStoreFromClient(client, cfg.Database, cfg.Collection), nil
}

// NewMongoPreferenceStoreFromClient wraps an already connected client
func NewMongoPreferenceStoreFromClient(client *mongo.Client, database, collection string) *MongoPreferenceStore {
	return &MongoPreferenceStore{
		client:     client,
		database:   database,
		collection: client.Database(database).Collection(collection),
	}
}

func mongoFilter(key models.PreferenceKey) bson.D {
	if key.IsAppScoped() {
		return bson.D{{Key: "user_id", Value: key.UserID}, {Key: "app_id", Value: key.AppID}}
	}
	return bson.D{
		{Key: "user_id", Value: key.UserID},
		{Key: "app_id", Value: bson.D{{Key: "$exists", Value: false}}},
	}
}

// FindOne returns the document stored under key
func (s *MongoPreferenceStore) FindOne(ctx context.Context, key models.PreferenceKey) (*models.PreferenceDocument, error) {
	var rec mongoPreferenceRecord
	err := s.collection.FindOne(ctx, mongoFilter(key)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find preferences: %w", err)
	}
	return rec.document(), nil
}

// InsertIfAbsent upserts with $setOnInsert so an existing document is left untouched
func (s *MongoPreferenceStore) InsertIfAbsent(ctx context.Context, doc *models.PreferenceDocument) (*models.PreferenceDocument, bool, error) {
	rec := newMongoRecord(doc)
	update := bson.D{{Key: "$setOnInsert", Value: rec}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var existing mongoPreferenceRecord
	err := s.collection.FindOneAndUpdate(ctx, mongoFilter(doc.Key()), update, opts).Decode(&existing)
	switch {
	case err == nil:
		return existing.document(), false, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		// Nothing matched before the upsert, so this call inserted the document.
		stored, err := s.FindOne(ctx, doc.Key())
		if err != nil {
			return nil, false, err
		}
		return stored, true, nil
	case mongo.IsDuplicateKeyError(err):
		// A concurrent upsert won the unique index.
		stored, err := s.FindOne(ctx, doc.Key())
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	default:
		return nil, false, fmt.Errorf("failed to insert preferences: %w", err)
	}
}

// Replace rewrites the whole stored document
func (s *MongoPreferenceStore) Replace(ctx context.Context, doc *models.PreferenceDocument) error {
	result, err := s.collection.ReplaceOne(ctx, mongoFilter(doc.Key()), newMongoRecord(doc))
	if err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields applies a $set of the named fields
func (s *MongoPreferenceStore) UpdateFields(ctx context.Context, key models.PreferenceKey, fields map[string]interface{}) error {
	if err := checkUpdateFields(fields); err != nil {
		return err
	}

	set := bson.D{}
	for _, name := range []string{FieldPreferences, FieldSettings} {
		if v, ok := fields[name]; ok {
			set = append(set, bson.E{Key: name, Value: v})
		}
	}

	result, err := s.collection.UpdateOne(ctx, mongoFilter(key), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document stored under key
func (s *MongoPreferenceStore) Delete(ctx context.Context, key models.PreferenceKey) error {
	result, err := s.collection.DeleteOne(ctx, mongoFilter(key))
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every document in the collection
func (s *MongoPreferenceStore) List(ctx context.Context) ([]*models.PreferenceDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "app_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	var recs []mongoPreferenceRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}

	docs := make([]*models.PreferenceDocument, 0, len(recs))
	for i := range recs {
		docs = append(docs, recs[i].document())
	}
	return docs, nil
}

// Stats counts documents and reads the collection size from collStats
func (s *MongoPreferenceStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	count, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to count preferences: %w", err)
	}

	stats := &models.StoreStats{
		Backend:       string(StoreTypeMongo),
		Database:      s.database,
		Collection:    s.collection.Name(),
		DocumentCount: count,
	}

	var raw bson.M
	cmd := bson.D{{Key: "collStats", Value: s.collection.Name()}}
	if err := s.client.Database(s.database).RunCommand(ctx, cmd).Decode(&raw); err == nil {
		stats.SizeBytes = bsonNumber(raw["size"])
	}
	return stats, nil
}

// EnsureSchema creates the unique compound key index
func (s *MongoPreferenceStore) EnsureSchema(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "app_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(mongoKeyIndexName),
	}
	if _, err := s.collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create %s index: %w", mongoKeyIndexName, err)
	}
	return nil
}

// Ping checks the primary is reachable
func (s *MongoPreferenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (s *MongoPreferenceStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// normalizeBSONFields turns decoded BSON containers into plain JSON-compatible values
func normalizeBSONFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = normalizeBSONValue(v)
	}
	return out
}

func normalizeBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSONValue(e.Value)
		}
		return out
	case map[string]interface{}:
		return normalizeBSONFields(val)
	case bson.A:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = normalizeBSONValue(val[i])
		}
		return out
	case bson.DateTime:
		return val.Time().UTC()
	case bson.ObjectID:
		return val.Hex()
	default:
		return val
	}
}

func bsonNumber(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
