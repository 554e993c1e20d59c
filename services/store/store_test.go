package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/catalogworker/config"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/pkg/errors"
)

func sampleRecord(brand, id, model string) models.ProductRecord {
	return models.ProductRecord{
		URL:            "https://shop.example/p/" + id,
		Title:          "Grill " + id,
		Price:          models.NumberPrice(199.99),
		Brand:          brand,
		PrimaryImage:   "https://img.example/" + id + ".jpg",
		OtherImages:    []string{"https://img.example/" + id + "-2.jpg"},
		ExternalID:     id,
		Model:          model,
		CategoryPath:   []string{"Grills", "Gas Grills"},
		Description:    "A grill",
		Specifications: []models.Spec{{Name: "Fuel", Value: "Propane"}},
	}
}

func TestKeyMatches(t *testing.T) {
	rec := sampleRecord("Weber", "123", "S-435")

	tests := []struct {
		name string
		key  Key
		want bool
	}{
		{"full key", Key{Brand: "Weber", ExternalID: "123", Model: "S-435"}, true},
		{"missing model widens", Key{Brand: "Weber", ExternalID: "123"}, true},
		{"brand only", Key{Brand: "Weber"}, true},
		{"different id", Key{Brand: "Weber", ExternalID: "999"}, false},
		{"different brand", Key{Brand: "Napoleon", ExternalID: "123"}, false},
		{"empty key matches all", Key{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.Matches(rec))
		})
	}

	assert.True(t, Key{}.Empty())
	assert.False(t, KeyOf(rec).Empty())
	assert.Equal(t, `brand="Weber" id="123" model="S-435"`, KeyOf(rec).String())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Insert(ctx, sampleRecord("Weber", "1", "A")))
	require.NoError(t, s.InsertMany(ctx, []models.ProductRecord{
		sampleRecord("Weber", "2", "B"),
		sampleRecord("Napoleon", "3", "C"),
	}))
	assert.Equal(t, 3, s.Inserts)
	assert.Equal(t, []int{2}, s.Bulk)

	found, err := s.Find(ctx, Key{Brand: "Weber"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "1", found[0].ID)
	assert.Equal(t, "2", found[1].ID)
	assert.Nil(t, found[0].UpdatedAt)

	updated := sampleRecord("Weber", "1", "A")
	updated.Title = "Renamed"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Update(ctx, "1", updated, at))

	found, err = s.Find(ctx, Key{Brand: "Weber", ExternalID: "1"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Renamed", found[0].Record.Title)
	require.NotNil(t, found[0].UpdatedAt)
	assert.True(t, at.Equal(*found[0].UpdatedAt))
	assert.Equal(t, 4, s.Writes())

	err = s.Update(ctx, "42", updated, at)
	assert.True(t, errors.Is(err, errors.ErrorTypePersistence))
	assert.NoError(t, s.Close())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "sqlite"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreDriverMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestPartialInsertError(t *testing.T) {
	cause := errors.NewPersistence("mongo", "duplicate", nil)
	err := errors.NewPersistence("mongo", "bulk insert failed", &PartialInsertError{Inserted: 3, Err: cause})

	var partial *PartialInsertError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 3, partial.Inserted)
	assert.Contains(t, partial.Error(), "after 3 records")
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	table := "catalogworker_test_products"

	s, err := NewPostgresStore(ctx, dsn, table)
	require.NoError(t, err)
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+s.table)
	require.NoError(t, s.EnsureSchema(ctx))
	defer s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+s.table)

	exerciseStore(t, s)
}

func TestPostgresRejectsBadTableName(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "postgres://localhost/none", "products; drop table x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()

	s, err := NewMongoStore(ctx, uri, "catalogworker_test", "products")
	require.NoError(t, err)
	defer s.Close()
	_ = s.collection.Drop(ctx)
	defer s.collection.Drop(ctx)

	exerciseStore(t, s)
}

type bulkStore interface {
	Store
	BulkInserter
}

func exerciseStore(t *testing.T, s bulkStore) {
	t.Helper()
	ctx := context.Background()

	first := sampleRecord("Weber", "1", "A")
	first.Price = models.TextPrice("Call for price")
	require.NoError(t, s.Insert(ctx, first))
	require.NoError(t, s.InsertMany(ctx, []models.ProductRecord{
		sampleRecord("Weber", "2", "B"),
		sampleRecord("Weber", "3", ""),
	}))

	found, err := s.Find(ctx, Key{Brand: "Weber", ExternalID: "1", Model: "A"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	got := found[0].Record
	assert.Equal(t, first.Title, got.Title)
	assert.True(t, first.Price.Equal(got.Price))
	assert.Equal(t, first.OtherImages, got.OtherImages)
	assert.Equal(t, first.CategoryPath, got.CategoryPath)
	assert.Equal(t, first.Specifications, got.Specifications)

	found, err = s.Find(ctx, Key{Brand: "Weber"})
	require.NoError(t, err)
	assert.Len(t, found, 3)

	changed := sampleRecord("Weber", "2", "B")
	changed.Price = models.NumberPrice(149)
	require.NoError(t, s.Update(ctx, found[1].ID, changed, time.Now().UTC()))

	found, err = s.Find(ctx, Key{Brand: "Weber", ExternalID: "2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, models.NumberPrice(149).Equal(found[0].Record.Price))
	assert.NotNil(t, found[0].UpdatedAt)
}
