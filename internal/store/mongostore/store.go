// internal/store/mongostore/store.go
//
// MongoDB document store.
//
// Context
// -------
// Each store collection maps to a native MongoDB collection.  Documents
// are stored with an ObjectID `_id`; the hex form is surfaced to callers as
// "id" so handlers never see driver types.  A malformed hex id can never
// exist in the collection, so it is reported as store.ErrNotFound rather
// than as a client error.
//
// Workflow
// --------
//   1. Connect(ctx, uri, db) dials and pings.
//   2. Collection(name) returns a store.Collection backed by the driver.
//   3. GroupBy pushes the match/group/sort pipeline to the server.
//
// Notes
// -----
// • Timestamps are RFC 3339 strings, same as the SQL and memory backends.
// • Oxford commas, two spaces after periods.

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yanizio/relay/internal/store"
)

// Store implements store.Store and store.Aggregator.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Aggregator = (*Store)(nil)
	_ store.Indexer    = (*Store)(nil)
)

// Connect dials uri and selects database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName), now: time.Now}, nil
}

// Collection returns a handle for name.
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, c: s.db.Collection(name)}
}

// Ping checks the primary.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

// Close disconnects the client.
func (s *Store) Close() error { return s.client.Disconnect(context.Background()) }

// EnsureIndex creates an ascending index on field in collection.
func (s *Store) EnsureIndex(ctx context.Context, collection, field string) (string, error) {
	return s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
	})
}

// GroupBy runs spec as an aggregation pipeline.
func (s *Store) GroupBy(ctx context.Context, collection string, spec store.GroupSpec) ([]store.Group, error) {
	cur, err := s.db.Collection(collection).Aggregate(ctx, groupPipeline(spec))
	if err != nil {
		return nil, fmt.Errorf("mongostore: aggregate: %w", err)
	}
	out := []store.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: aggregate: %w", err)
	}
	return out, nil
}

func groupPipeline(spec store.GroupSpec) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: spec.MatchField, Value: bson.D{{Key: "$gt", Value: spec.MatchAbove}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + spec.GroupField},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$" + spec.AvgField}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

type collection struct {
	s *Store
	c *mongo.Collection
}

func (c *collection) Create(ctx context.Context, doc store.Document) (store.Document, error) {
	oid := bson.NewObjectID()
	d := store.Stamp(doc, oid.Hex(), c.s.now())
	if _, err := c.c.InsertOne(ctx, toBSON(d, oid)); err != nil {
		return nil, fmt.Errorf("mongostore: insert: %w", err)
	}
	return d, nil
}

func (c *collection) InsertMany(ctx context.Context, docs []store.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	now := c.s.now()
	batch := make([]any, 0, len(docs))
	for _, doc := range docs {
		oid := bson.NewObjectID()
		batch = append(batch, toBSON(store.Stamp(doc, oid.Hex(), now), oid))
	}
	res, err := c.c.InsertMany(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("mongostore: insert many: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (c *collection) Find(ctx context.Context, f store.Filter) ([]store.Document, error) {
	q, ok := toFilter(f)
	if !ok {
		return []store.Document{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: store.KeyCreatedAt, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := c.c.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	out := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, fromBSON(m))
	}
	return out, nil
}

func (c *collection) FindByID(ctx context.Context, id string) (store.Document, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var m bson.M
	if err := c.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		return nil, mapErr("find", err)
	}
	return fromBSON(m), nil
}

func (c *collection) Update(ctx context.Context, id string, patch store.Document) (store.Document, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m bson.M
	err = c.c.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": setFor(patch, c.s.now())}, opts).Decode(&m)
	if err != nil {
		return nil, mapErr("update", err)
	}
	return fromBSON(m), nil
}

func (c *collection) Delete(ctx context.Context, id string) (store.Document, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var m bson.M
	if err := c.c.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		return nil, mapErr("delete", err)
	}
	return fromBSON(m), nil
}

func (c *collection) DeleteMany(ctx context.Context, f store.Filter) (int, error) {
	q, ok := toFilter(f)
	if !ok {
		return 0, nil
	}
	res, err := c.c.DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete many: %w", err)
	}
	return int(res.DeletedCount), nil
}

func mapErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return fmt.Errorf("mongostore: %s: %w", op, err)
}

// toBSON swaps the string id for the ObjectID key.
func toBSON(d store.Document, oid bson.ObjectID) bson.M {
	m := make(bson.M, len(d))
	for k, v := range d {
		if k == store.KeyID {
			continue
		}
		m[k] = v
	}
	m["_id"] = oid
	return m
}

// fromBSON converts a decoded document back to plain Go values.
func fromBSON(m bson.M) store.Document {
	d := make(store.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			if oid, ok := v.(bson.ObjectID); ok {
				d[store.KeyID] = oid.Hex()
			} else {
				d[store.KeyID] = fmt.Sprint(v)
			}
			continue
		}
		d[k] = plain(v)
	}
	return d
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = plain(x)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case bson.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	}
	return v
}

// toFilter rewrites an "id" key into an ObjectID match.  ok is false when
// the id is malformed, meaning nothing can match.
func toFilter(f store.Filter) (bson.M, bool) {
	q := bson.M{}
	for k, v := range f {
		if k != store.KeyID {
			q[k] = v
			continue
		}
		s, _ := v.(string)
		oid, err := bson.ObjectIDFromHex(s)
		if err != nil {
			return nil, false
		}
		q["_id"] = oid
	}
	return q, true
}

// setFor builds the $set body for a patch, skipping reserved keys.
func setFor(patch store.Document, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range patch {
		if k == store.KeyID || k == store.KeyCreatedAt || k == store.KeyUpdatedAt || k == "_id" {
			continue
		}
		set[k] = v
	}
	set[store.KeyUpdatedAt] = now.UTC().Format(time.RFC3339Nano)
	return set
}
