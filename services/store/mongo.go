package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

// PartialInsertError reports that the first Inserted records of a bulk insert
// were written before Err stopped it
type PartialInsertError struct {
	Inserted int
	Err      error
}

func (e *PartialInsertError) Error() string {
	return fmt.Sprintf("bulk insert stopped after %d records: %v", e.Inserted, e.Err)
}

func (e *PartialInsertError) Unwrap() error {
	return e.Err
}

// MongoStore persists products as documents shaped like the snapshot objects
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *logger.Logger
}

type mongoProduct struct {
	ID             primitive.ObjectID `bson:"_id"`
	URL            string             `bson:"url"`
	Title          string             `bson:"Title"`
	Price          interface{}        `bson:"Price"`
	Brand          string             `bson:"brand"`
	Image          string             `bson:"Image"`
	OtherImages    []string           `bson:"Other_image"`
	ExternalID     string             `bson:"Id"`
	Model          string             `bson:"Model"`
	Category       []string           `bson:"category"`
	Description    string             `bson:"Description"`
	Specifications []bson.M           `bson:"Specifications"`
	UpdatedAt      *time.Time         `bson:"updated_at,omitempty"`
}

// NewMongoStore connects, pings and makes sure the key index exists
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.NewPersistence("mongo", "failed to connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.NewPersistence("mongo", "failed to reach database", err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		log:        logger.ForStore("mongo"),
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "brand", Value: 1}, {Key: "Id", Value: 1}, {Key: "Model", Value: 1}},
	}
	if _, err := s.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		s.log.Warn().Err(err).Msg("failed to create key index")
	}
	return s, nil
}

// Find returns matching documents in insertion order
func (s *MongoStore) Find(ctx context.Context, key Key) ([]ExistingRecord, error) {
	cursor, err := s.collection.Find(ctx, keyFilter(key), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.NewReconciliation(key.String(), "query failed", err)
	}

	var docs []mongoProduct
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.NewReconciliation(key.String(), "decode failed", err)
	}

	out := make([]ExistingRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, ExistingRecord{ID: d.ID.Hex(), Record: d.record(), UpdatedAt: d.UpdatedAt})
	}
	return out, nil
}

func keyFilter(key Key) bson.D {
	filter := bson.D{}
	if key.Brand != "" {
		filter = append(filter, bson.E{Key: "brand", Value: key.Brand})
	}
	if key.ExternalID != "" {
		filter = append(filter, bson.E{Key: "Id", Value: key.ExternalID})
	}
	if key.Model != "" {
		filter = append(filter, bson.E{Key: "Model", Value: key.Model})
	}
	return filter
}

// Insert adds one document
func (s *MongoStore) Insert(ctx context.Context, rec models.ProductRecord) error {
	if _, err := s.collection.InsertOne(ctx, productDocument(rec)); err != nil {
		return errors.NewPersistence(rec.URL, "insert failed", err)
	}
	return nil
}

// InsertMany inserts in order and stops at the first failure. Documents before
// the failure stay written and are reported through PartialInsertError.
func (s *MongoStore) InsertMany(ctx context.Context, recs []models.ProductRecord) error {
	if len(recs) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, productDocument(rec))
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	var bulkErr mongo.BulkWriteException
	if stderrors.As(err, &bulkErr) && len(bulkErr.WriteErrors) > 0 {
		return errors.NewPersistence("mongo", "bulk insert failed",
			&PartialInsertError{Inserted: bulkErr.WriteErrors[0].Index, Err: err})
	}
	return errors.NewPersistence("mongo", "bulk insert failed", err)
}

// Update overwrites every product field of the document id
func (s *MongoStore) Update(ctx context.Context, id string, rec models.ProductRecord, updatedAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.NewPersistence(id, "invalid document id", err)
	}

	set := append(productDocument(rec), bson.E{Key: "updated_at", Value: updatedAt})
	res, err := s.collection.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return errors.NewPersistence(rec.URL, "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errors.NewPersistence(id, "document not found", nil)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func productDocument(rec models.ProductRecord) bson.D {
	specs := make(bson.A, 0, len(rec.Specifications))
	for _, sp := range rec.Specifications {
		specs = append(specs, bson.D{{Key: sp.Name, Value: sp.Value}})
	}
	return bson.D{
		{Key: "url", Value: rec.URL},
		{Key: "Title", Value: rec.Title},
		{Key: "Price", Value: rec.Price.Value()},
		{Key: "brand", Value: rec.Brand},
		{Key: "Image", Value: rec.PrimaryImage},
		{Key: "Other_image", Value: nonNil(rec.OtherImages)},
		{Key: "Id", Value: rec.ExternalID},
		{Key: "Model", Value: rec.Model},
		{Key: "category", Value: nonNil(rec.CategoryPath)},
		{Key: "Description", Value: rec.Description},
		{Key: "Specifications", Value: specs},
	}
}

func (d mongoProduct) record() models.ProductRecord {
	rec := models.ProductRecord{
		URL:          d.URL,
		Title:        d.Title,
		Price:        models.PriceFromValue(d.Price),
		Brand:        d.Brand,
		PrimaryImage: d.Image,
		OtherImages:  d.OtherImages,
		ExternalID:   d.ExternalID,
		Model:        d.Model,
		CategoryPath: d.Category,
		Description:  d.Description,
	}
	for _, m := range d.Specifications {
		for name, value := range m {
			rec.Specifications = append(rec.Specifications, models.Spec{Name: name, Value: fmt.Sprint(value)})
		}
	}
	return rec
}
