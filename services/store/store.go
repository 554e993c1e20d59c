package store

import (
	"context"
	"fmt"
	"time"

	"sjsage522/catalogworker/config"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

// Key is the composite lookup key of a product. Empty fields are not used as predicates.
type Key struct {
	Brand      string
	ExternalID string
	Model      string
}

// KeyOf returns the composite key of a record
func KeyOf(rec models.ProductRecord) Key {
	return Key{Brand: rec.Brand, ExternalID: rec.ExternalID, Model: rec.Model}
}

// Empty reports whether no predicate would be applied
func (k Key) Empty() bool {
	return k.Brand == "" && k.ExternalID == "" && k.Model == ""
}

// Matches reports whether rec satisfies every non-empty predicate of k
func (k Key) Matches(rec models.ProductRecord) bool {
	if k.Brand != "" && rec.Brand != k.Brand {
		return false
	}
	if k.ExternalID != "" && rec.ExternalID != k.ExternalID {
		return false
	}
	if k.Model != "" && rec.Model != k.Model {
		return false
	}
	return true
}

func (k Key) String() string {
	return fmt.Sprintf("brand=%q id=%q model=%q", k.Brand, k.ExternalID, k.Model)
}

// ExistingRecord is a persisted product with its store identifier
type ExistingRecord struct {
	ID        string
	Record    models.ProductRecord
	UpdatedAt *time.Time
}

// Store is the persisted product catalog. Every write is its own atomic operation.
type Store interface {
	// Find returns the rows matching key, oldest first
	Find(ctx context.Context, key Key) ([]ExistingRecord, error)
	// Insert adds one record
	Insert(ctx context.Context, rec models.ProductRecord) error
	// Update overwrites every field of the row id and stamps updatedAt
	Update(ctx context.Context, id string, rec models.ProductRecord, updatedAt time.Time) error
	// Close releases the connection
	Close() error
}

// BulkInserter is implemented by stores that can insert many records in one round trip
type BulkInserter interface {
	InsertMany(ctx context.Context, recs []models.ProductRecord) error
}

// Open connects the store selected by cfg.StoreDriver. A connection failure is a persistence error.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	log := logger.ForStore(cfg.StoreDriver)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.StoreTable)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		log.Info().Str("table", cfg.StoreTable).Msg("connected to postgres")
		return s, nil
	case config.StoreDriverMongo:
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.StoreTable)
		if err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.MongoDatabase).Str("collection", cfg.StoreTable).Msg("connected to mongo")
		return s, nil
	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory store, nothing survives the process")
		return NewMemoryStore(), nil
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown store driver %q", cfg.StoreDriver), nil)
	}
}
