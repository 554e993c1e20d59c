package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/pkg/errors"
)

// MemoryStore keeps rows in insertion order. It counts writes so callers can
// check that a run issued none.
type MemoryStore struct {
	mu      sync.Mutex
	rows    []ExistingRecord
	nextID  int
	Inserts int
	Updates int
	Bulk    []int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Find returns matching rows, oldest first
func (m *MemoryStore) Find(ctx context.Context, key Key) ([]ExistingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ExistingRecord
	for _, row := range m.rows {
		if key.Matches(row.Record) {
			out = append(out, row)
		}
	}
	return out, nil
}

// Insert adds one record
func (m *MemoryStore) Insert(ctx context.Context, rec models.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(rec)
	m.Inserts++
	return nil
}

// InsertMany adds records in order
func (m *MemoryStore) InsertMany(ctx context.Context, recs []models.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.insert(rec)
	}
	m.Inserts += len(recs)
	m.Bulk = append(m.Bulk, len(recs))
	return nil
}

func (m *MemoryStore) insert(rec models.ProductRecord) {
	m.rows = append(m.rows, ExistingRecord{ID: strconv.Itoa(m.nextID), Record: rec})
	m.nextID++
}

// Update overwrites the row with the given id
func (m *MemoryStore) Update(ctx context.Context, id string, rec models.ProductRecord, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.rows {
		if m.rows[i].ID == id {
			at := updatedAt
			m.rows[i].Record = rec
			m.rows[i].UpdatedAt = &at
			m.Updates++
			return nil
		}
	}
	return errors.NewPersistence("memory", "row "+id+" not found", nil)
}

// Rows returns a copy of every row
func (m *MemoryStore) Rows() []ExistingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExistingRecord(nil), m.rows...)
}

// Writes returns the number of inserted and updated rows
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Inserts + m.Updates
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
