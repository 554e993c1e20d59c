package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const productColumns = `url, "Title", "Price", brand, "Image", "Other_image", "Id", "Model", category, "Description", "Specifications"`

// selectColumns tolerates NULL text columns in tables created outside EnsureSchema
const selectColumns = `id::text, COALESCE(url, ''), COALESCE("Title", ''), "Price", COALESCE(brand, ''), COALESCE("Image", ''),
	"Other_image", COALESCE("Id", ''), COALESCE("Model", ''), category, COALESCE("Description", ''), "Specifications", updated_at`

// PostgresStore persists products in one table whose columns mirror the snapshot keys
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
	log   *logger.Logger
}

// NewPostgresStore connects a pool and pings the server
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, errors.NewConfiguration(fmt.Sprintf("invalid table name %q", table), nil)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewPersistence("postgres", "failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewPersistence("postgres", "failed to reach database", err)
	}

	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		log:   logger.ForStore("postgres"),
	}, nil
}

// EnsureSchema creates the products table and its key index if they do not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	index := pgx.Identifier{strings.Trim(s.table, `"`) + "_key_idx"}.Sanitize()
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id               bigserial PRIMARY KEY,
		url              text NOT NULL,
		"Title"          text NOT NULL DEFAULT '',
		"Price"          jsonb,
		brand            text NOT NULL DEFAULT '',
		"Image"          text NOT NULL DEFAULT '',
		"Other_image"    jsonb NOT NULL DEFAULT '[]',
		"Id"             text NOT NULL DEFAULT '',
		"Model"          text NOT NULL DEFAULT '',
		category         jsonb NOT NULL DEFAULT '[]',
		"Description"    text NOT NULL DEFAULT '',
		"Specifications" jsonb NOT NULL DEFAULT '[]',
		created_at       timestamptz NOT NULL DEFAULT now(),
		updated_at       timestamptz
	);
	CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + s.table + ` (brand, "Id", "Model");`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return errors.NewPersistence("postgres", "failed to ensure schema", err)
	}
	return nil
}

// Find returns matching rows ordered by id
func (s *PostgresStore) Find(ctx context.Context, key Key) ([]ExistingRecord, error) {
	where, args := keyPredicates(key)
	q := `SELECT ` + selectColumns + ` FROM ` + s.table + where + ` ORDER BY id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.NewReconciliation(key.String(), "query failed", err)
	}
	defer rows.Close()

	var out []ExistingRecord
	for rows.Next() {
		var row ExistingRecord
		var price, images, category, specs []byte
		r := &row.Record
		if err := rows.Scan(&row.ID, &r.URL, &r.Title, &price, &r.Brand, &r.PrimaryImage, &images,
			&r.ExternalID, &r.Model, &category, &r.Description, &specs, &row.UpdatedAt); err != nil {
			return nil, errors.NewReconciliation(key.String(), "scan failed", err)
		}
		if err := decodeJSONColumns(r, price, images, category, specs); err != nil {
			return nil, errors.NewReconciliation(key.String(), "row "+row.ID+" has malformed json", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewReconciliation(key.String(), "query failed", err)
	}
	return out, nil
}

// keyPredicates builds a WHERE clause from the non-empty key fields
func keyPredicates(key Key) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("brand", key.Brand)
	add(`"Id"`, key.ExternalID)
	add(`"Model"`, key.Model)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) insertSQL() string {
	return `INSERT INTO ` + s.table + ` (` + productColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
}

// Insert adds one record
func (s *PostgresStore) Insert(ctx context.Context, rec models.ProductRecord) error {
	args, err := recordArgs(rec)
	if err != nil {
		return errors.NewPersistence(rec.URL, "failed to encode record", err)
	}
	if _, err := s.pool.Exec(ctx, s.insertSQL(), args...); err != nil {
		return errors.NewPersistence(rec.URL, "insert failed", err)
	}
	return nil
}

// InsertMany queues every record on one pgx.Batch. The batch runs as a single
// implicit transaction, so a failure leaves none of its rows behind.
func (s *PostgresStore) InsertMany(ctx context.Context, recs []models.ProductRecord) error {
	if len(recs) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, rec := range recs {
		args, err := recordArgs(rec)
		if err != nil {
			return errors.NewPersistence(rec.URL, "failed to encode record", err)
		}
		b.Queue(s.insertSQL(), args...)
	}

	br := s.pool.SendBatch(ctx, b)
	for i := range recs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.NewPersistence(recs[i].URL, fmt.Sprintf("bulk insert failed at record %d of %d", i+1, len(recs)), err)
		}
	}
	if err := br.Close(); err != nil {
		return errors.NewPersistence("postgres", "bulk insert failed", err)
	}
	s.log.Debug().Int("rows", len(recs)).Msg("bulk insert")
	return nil
}

// Update overwrites every product column of row id
func (s *PostgresStore) Update(ctx context.Context, id string, rec models.ProductRecord, updatedAt time.Time) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return errors.NewPersistence(id, "invalid row id", err)
	}
	args, err := recordArgs(rec)
	if err != nil {
		return errors.NewPersistence(rec.URL, "failed to encode record", err)
	}
	args = append(args, updatedAt, rowID)

	q := `UPDATE ` + s.table + ` SET url=$1, "Title"=$2, "Price"=$3, brand=$4, "Image"=$5, "Other_image"=$6,
		"Id"=$7, "Model"=$8, category=$9, "Description"=$10, "Specifications"=$11, updated_at=$12 WHERE id=$13`
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return errors.NewPersistence(rec.URL, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewPersistence(id, "row not found", nil)
	}
	return nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func recordArgs(rec models.ProductRecord) ([]interface{}, error) {
	price, err := json.Marshal(rec.Price)
	if err != nil {
		return nil, err
	}
	images, err := json.Marshal(nonNil(rec.OtherImages))
	if err != nil {
		return nil, err
	}
	category, err := json.Marshal(nonNil(rec.CategoryPath))
	if err != nil {
		return nil, err
	}
	specs := rec.Specifications
	if specs == nil {
		specs = []models.Spec{}
	}
	specJSON, err := json.Marshal(specs)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		rec.URL, rec.Title, price, rec.Brand, rec.PrimaryImage, images,
		rec.ExternalID, rec.Model, category, rec.Description, specJSON,
	}, nil
}

func decodeJSONColumns(r *models.ProductRecord, price, images, category, specs []byte) error {
	if len(price) > 0 {
		if err := json.Unmarshal(price, &r.Price); err != nil {
			return fmt.Errorf("Price: %w", err)
		}
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &r.OtherImages); err != nil {
			return fmt.Errorf("Other_image: %w", err)
		}
	}
	if len(category) > 0 {
		if err := json.Unmarshal(category, &r.CategoryPath); err != nil {
			return fmt.Errorf("category: %w", err)
		}
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &r.Specifications); err != nil {
			return fmt.Errorf("Specifications: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
