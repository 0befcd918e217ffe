// Package mongo implements the document store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/stocksavvy/stocksavvy/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store maps each collection name onto a MongoDB collection of the same name.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	clock  *store.Clock
}

// Connect dials MongoDB and verifies connectivity.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store/mongo: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		clock:  store.NewClock(nil),
	}
}

// Migrate creates the indexes used by ledger queries.
func (s *Store) Migrate(ctx context.Context, uniqueProductIDs bool) error {
	for col, models := range migrationIndexes(uniqueProductIDs) {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context, collection string) ([]store.Document, error) {
	return s.find(ctx, collection, bson.M{})
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("store/mongo: get %s: %w", collection, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Put(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = bson.NewObjectID().Hex()
	}
	body := bson.M(s.clock.Resolve(doc))
	body["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, body); err != nil {
		return "", fmt.Errorf("store/mongo: put %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Document) error {
	set := bson.M(s.clock.Resolve(fields))
	if len(set) == 0 {
		return nil
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("store/mongo: update %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListWhere(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	return s.find(ctx, collection, toFilter(filters))
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) find(ctx context.Context, collection string, filter bson.M) ([]store.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("store/mongo: find %s: %w", collection, err)
	}
	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store/mongo: decode %s: %w", collection, err)
	}
	out := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromBSON(row))
	}
	return out, nil
}

var operators = map[store.Op]string{
	store.OpEq:  "$eq",
	store.OpLte: "$lte",
	store.OpGte: "$gte",
}

func toFilter(filters []store.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		cond, ok := out[f.Field].(bson.M)
		if !ok {
			cond = bson.M{}
			out[f.Field] = cond
		}
		cond[operators[f.Op]] = f.Value
	}
	return out
}

func fromBSON(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case string:
				doc["id"] = id
			case bson.ObjectID:
				doc["id"] = id.Hex()
			}
			continue
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch val := v.(type) {
	case bson.DateTime:
		return val.Time().UTC()
	case int32:
		return int64(val)
	case bson.ObjectID:
		return val.Hex()
	default:
		return v
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions per collection.
func migrationIndexes(uniqueProductIDs bool) map[string][]mongo.IndexModel {
	productID := mongo.IndexModel{Keys: bson.D{{Key: "productId", Value: 1}}}
	if uniqueProductIDs {
		productID.Options = options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"archived": bson.M{"$eq": false}})
	}
	return map[string][]mongo.IndexModel{
		store.CollectionProducts: {
			productID,
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "saleDate", Value: 1}}},
		},
		store.CollectionHistory: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		store.CollectionUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
