package persister

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
	"sjsage522/catalogworker/services/publisher"
	"sjsage522/catalogworker/services/reconciler"
	"sjsage522/catalogworker/services/store"
)

func records(n int) []models.ProductRecord {
	out := make([]models.ProductRecord, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprint(i)
		out = append(out, models.ProductRecord{
			URL:          "https://shop.example/i/" + id,
			Title:        "Item " + id,
			Price:        models.NumberPrice(float64(i)),
			Brand:        "Weber",
			ExternalID:   id,
			Model:        "M" + id,
			CategoryPath: []string{"Grills"},
		})
	}
	return out
}

// singleStore hides InsertMany from the persister
type singleStore struct {
	store.Store
}

// brokenBulkStore writes the first written records of a batch and then fails
type brokenBulkStore struct {
	*store.MemoryStore
	written    int
	partial    bool
	failInsert string
}

func (b *brokenBulkStore) InsertMany(ctx context.Context, recs []models.ProductRecord) error {
	for _, rec := range recs[:b.written] {
		if err := b.MemoryStore.Insert(ctx, rec); err != nil {
			return err
		}
	}
	cause := errors.NewPersistence("bulk", "duplicate key", nil)
	if b.partial {
		return errors.NewPersistence("bulk", "bulk insert failed", &store.PartialInsertError{Inserted: b.written, Err: cause})
	}
	return cause
}

func (b *brokenBulkStore) Insert(ctx context.Context, rec models.ProductRecord) error {
	if rec.ExternalID == b.failInsert {
		return errors.NewPersistence(rec.URL, "insert failed", nil)
	}
	return b.MemoryStore.Insert(ctx, rec)
}

var _ publisher.Publisher = (*capturePublisher)(nil)

type capturePublisher struct {
	events [][]byte
}

func (c *capturePublisher) Publish(key string, message []byte) error {
	c.events = append(c.events, message)
	return nil
}
func (c *capturePublisher) TrimStreams() error { return nil }
func (c *capturePublisher) Close() error       { return nil }

func TestSnapshotWrittenWithoutStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "products.json")
	p := NewPersister(nil, Options{SnapshotPath: path})

	sum := p.Persist(context.Background(), records(3))
	assert.False(t, sum.StoreAvailable)
	assert.Equal(t, 3, sum.Total)
	assert.Zero(t, sum.New+sum.Updated+sum.Skipped+sum.Failed)

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "Item 1", got[0].Title)
}

func TestSnapshotSurvivesUnreadablePrices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	recs := records(2)
	recs[0].Price = models.ParsePrice("$1,299.00")
	recs[1].Price = models.ParsePrice("$NaN")

	NewPersister(nil, Options{SnapshotPath: path}).Persist(context.Background(), recs)

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1299", got[0].Price.String())
	assert.Equal(t, "NaN", got[1].Price.String())
}

func TestSnapshotOfEmptyRunIsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, WriteSnapshot(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSnapshotShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	rec := models.ProductRecord{
		URL:            "https://shop.example/i/1",
		Price:          models.NullPrice(),
		Specifications: []models.Spec{{Name: "Fuel", Value: "Gas"}, {Name: "Fuel", Value: "Charcoal"}},
	}
	require.NoError(t, WriteSnapshot(path, []models.ProductRecord{rec}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"url": "https://shop.example/i/1",
		"Title": "",
		"Price": null,
		"brand": "",
		"Image": "",
		"Other_image": [],
		"Id": "",
		"Model": "",
		"category": [],
		"Description": "",
		"Specifications": [{"Fuel": "Gas"}, {"Fuel": "Charcoal"}]
	}]`, string(data))
}

func TestBatchesRespectSize(t *testing.T) {
	mem := store.NewMemoryStore()
	p := NewPersister(mem, Options{BatchSize: 4})

	sum := p.Persist(context.Background(), records(10))
	assert.Equal(t, 10, sum.New)
	assert.Equal(t, []int{4, 4, 2}, mem.Bulk)
	assert.Len(t, mem.Rows(), 10)
	for i, d := range sum.Decisions {
		assert.Equal(t, fmt.Sprint(i+1), d.Record.ExternalID, "decisions keep input order")
	}
}

func TestUpdateFlushesPendingInserts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	existing := records(3)[2]
	require.NoError(t, mem.Insert(ctx, existing))

	changed := existing
	changed.Title = "Renamed"
	input := append(records(2), changed)

	sum := NewPersister(mem, Options{BatchSize: 10}).Persist(ctx, input)
	assert.Equal(t, 2, sum.New)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, []int{2}, mem.Bulk)
	assert.Equal(t, []string{reconciler.FieldTitle}, sum.Decisions[2].Changed)

	rows := mem.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "Renamed", rows[0].Record.Title)
}

func TestRepeatedKeyInOneRunIsNotInsertedTwice(t *testing.T) {
	recs := records(1)
	dup := recs[0]
	dup.URL = "https://shop.example/i/1-relisted"

	mem := store.NewMemoryStore()
	sum := NewPersister(mem, Options{BatchSize: 10}).Persist(context.Background(), append(recs, dup))
	assert.Equal(t, 1, sum.New)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, mem.Rows(), 1)
}

func TestStoreWithoutBulkInsertsSingly(t *testing.T) {
	mem := store.NewMemoryStore()
	sum := NewPersister(singleStore{mem}, Options{BatchSize: 2}).Persist(context.Background(), records(3))
	assert.Equal(t, 3, sum.New)
	assert.Empty(t, mem.Bulk)
	assert.Equal(t, 3, mem.Inserts)
}

func TestFailedBulkDegradesToSingleInserts(t *testing.T) {
	bs := &brokenBulkStore{MemoryStore: store.NewMemoryStore(), failInsert: "2"}
	sum := NewPersister(bs, Options{BatchSize: 5}).Persist(context.Background(), records(4))

	assert.Equal(t, 3, sum.New)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, reconciler.KindFailed, sum.Decisions[1].Kind)
	assert.True(t, errors.Is(sum.Decisions[1].Err, errors.ErrorTypePersistence))
	assert.Len(t, bs.Rows(), 3)
}

func TestPartialBulkSkipsWrittenRows(t *testing.T) {
	bs := &brokenBulkStore{MemoryStore: store.NewMemoryStore(), written: 2, partial: true}
	sum := NewPersister(bs, Options{BatchSize: 5}).Persist(context.Background(), records(4))

	assert.Equal(t, 4, sum.New)
	assert.Zero(t, sum.Failed)
	assert.Len(t, bs.Rows(), 4, "no row inserted twice")
}

func TestFaultIsolationInPersist(t *testing.T) {
	recs := records(4)
	recs[1].Brand, recs[1].ExternalID, recs[1].Model = "", "", ""

	sum := NewPersister(store.NewMemoryStore(), Options{}).Persist(context.Background(), recs)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 3, sum.New+sum.Updated+sum.Skipped)
	assert.Equal(t, 4, sum.Total)
}

func TestSecondRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	NewPersister(mem, Options{}).Persist(ctx, records(5))
	writes := mem.Writes()

	sum := NewPersister(mem, Options{}).Persist(ctx, records(5))
	assert.Equal(t, 5, sum.Skipped)
	assert.Equal(t, writes, mem.Writes())
}

func TestWritesArePublished(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Insert(ctx, records(1)[0]))

	input := records(2)
	input[0].Title = "Changed"
	pub := &capturePublisher{}
	NewPersister(mem, Options{Publisher: pub}).Persist(ctx, input)

	require.Len(t, pub.events, 2)
	assert.Contains(t, string(pub.events[0]), `"action":"updated"`)
	assert.Contains(t, string(pub.events[1]), `"action":"new"`)
}

// reconciledURLs returns the url of every "reconciled" log line in order
func reconciledURLs(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var urls []string
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var line struct {
			Message string `json:"message"`
			URL     string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line.Message == "reconciled" {
			urls = append(urls, line.URL)
		}
	}
	return urls
}

func TestDecisionsAnnouncedInInputOrder(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	t.Cleanup(logger.Init)

	ctx := context.Background()
	mem := store.NewMemoryStore()
	input := records(4)
	require.NoError(t, mem.Insert(ctx, input[1]))

	pub := &capturePublisher{}
	sum := NewPersister(mem, Options{BatchSize: 10, Publisher: pub}).Persist(ctx, input)
	assert.Equal(t, 3, sum.New)
	assert.Equal(t, 1, sum.Skipped)

	assert.Equal(t, []string{input[0].URL, input[1].URL, input[2].URL, input[3].URL}, reconciledURLs(t, &buf))

	require.Len(t, pub.events, 3)
	for i, id := range []string{"1", "3", "4"} {
		var ev publisher.ChangeEvent
		require.NoError(t, json.Unmarshal(pub.events[i], &ev))
		assert.Equal(t, id, ev.ID)
	}
}

type stubUploader struct {
	paths []string
	err   error
}

func (s *stubUploader) Upload(ctx context.Context, localPath string) error {
	s.paths = append(s.paths, localPath)
	return s.err
}

func TestUploadFailureDoesNotStopStorePass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	up := &stubUploader{err: assert.AnError}
	mem := store.NewMemoryStore()

	sum := NewPersister(mem, Options{SnapshotPath: path, Uploader: up}).Persist(context.Background(), records(2))
	assert.Equal(t, []string{path}, up.paths)
	assert.Equal(t, 2, sum.New)
}

func TestBucketObjectName(t *testing.T) {
	u := NewBucketUploader("bucket", "catalog")
	u.now = func() time.Time { return time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC) }
	assert.Equal(t, "catalog/2026-05-04/products.json", u.ObjectName("/tmp/out/products.json"))
}

func TestDetectContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, WriteSnapshot(path, records(1)))
	assert.Contains(t, detectContentType(path), "json")
	assert.Equal(t, "application/octet-stream", detectContentType(filepath.Join(t.TempDir(), "missing")))
}
