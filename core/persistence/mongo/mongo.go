// Package mongo is the MongoDB backend
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Backend is the registry id of this backend
const Backend = "mongodb"

// KeyField is the key field of every mongo collection
const KeyField = "_id"

// Register adds the mongo backend to reg
func Register(reg *persistence.Registry) {
	reg.Register(Backend, func(ctx context.Context, conn persistence.Connection) (persistence.Repository, error) {
		return Open(ctx, conn)
	})
}

// URI returns the mongo connection string of conn. Server may be a full
// connection string or host[:port].
func URI(conn persistence.Connection) string {
	if strings.HasPrefix(conn.Server, "mongodb://") || strings.HasPrefix(conn.Server, "mongodb+srv://") {
		return conn.Server
	}
	server := conn.Server
	if server == "" {
		server = "localhost:27017"
	}
	return "mongodb://" + server
}

// Repository is a mongo database
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to the database of conn and pings it
func Open(ctx context.Context, conn persistence.Connection) (*Repository, error) {
	clientOptions := options.Client().ApplyURI(URI(conn)).SetConnectTimeout(10 * time.Second)
	if conn.Username != "" {
		credential := options.Credential{Username: conn.Username, Password: conn.Password}
		if source, ok := conn.Options["authSource"]; ok {
			credential.AuthSource = source
		}
		clientOptions.SetAuth(credential)
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Default().Infof("connected to mongodb database %s", conn.Database)
	return &Repository{client: client, db: client.Database(conn.Database)}, nil
}

// Collection returns the mongo collection name
func (r *Repository) Collection(name string) persistence.Collection {
	return &Collection{coll: r.db.Collection(name)}
}

func (r *Repository) exists(ctx context.Context, name string) (bool, error) {
	names, err := r.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// Create creates the collection name
func (r *Repository) Create(ctx context.Context, name string, opts ...persistence.Option) error {
	exists, err := r.exists(ctx, name)
	if err == nil && exists {
		err = fmt.Errorf("collection %s: %w", name, persistence.ErrExists)
	}
	if err == nil {
		err = r.db.CreateCollection(ctx, name)
	}
	return persistence.Lifecycle(err, opts...)
}

// Destroy drops the collection name
func (r *Repository) Destroy(ctx context.Context, name string, opts ...persistence.Option) error {
	exists, err := r.exists(ctx, name)
	if err == nil && !exists {
		err = fmt.Errorf("collection %s: %w", name, persistence.ErrNotFound)
	}
	if err == nil {
		err = r.db.Collection(name).Drop(ctx)
	}
	return persistence.Lifecycle(err, opts...)
}

// Close disconnects the client
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Collection is a mongo collection
type Collection struct {
	coll *mongo.Collection
}

// Name returns the collection name
func (c *Collection) Name() string { return c.coll.Name() }

// KeyField returns "_id"
func (c *Collection) KeyField() string { return KeyField }

// InsertRecord implements persistence.Persister
func (c *Collection) InsertRecord(ctx context.Context, r *persistence.Record) (bool, error) {
	return persistence.InsertRecord(ctx, c, r)
}

// PatchRecord implements persistence.Persister
func (c *Collection) PatchRecord(ctx context.Context, r *persistence.Record) (bool, error) {
	return persistence.PatchRecord(ctx, c, r)
}

// Query returns a new query
func (c *Collection) Query() persistence.Query {
	return &Query{}
}

// Count counts matching documents
func (c *Collection) Count(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, q.document())
}

// Find returns all matching documents
func (c *Collection) Find(ctx context.Context, criteria any, fields ...string) ([]map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	cursor, err := c.coll.Find(ctx, q.document(), q.findOptions(fields))
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]map[string]any, len(docs))
	for i, d := range docs {
		result[i] = map[string]any(d)
	}
	return result, nil
}

// FindOne returns the first matching document
func (c *Collection) FindOne(ctx context.Context, criteria any, fields ...string) (map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	opts := options.FindOne().SetSort(q.sortDocument())
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if len(fields) > 0 {
		opts.SetProjection(projection(fields))
	}
	var doc bson.M
	err = c.coll.FindOne(ctx, q.document(), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return map[string]any(doc), nil
}

// Insert stores doc and returns the generated ObjectID
func (c *Collection) Insert(ctx context.Context, doc map[string]any) (any, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

// Update sets changes on all matching documents
func (c *Collection) Update(ctx context.Context, criteria any, changes map[string]any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	set := bson.M{}
	for k, v := range changes {
		if k != KeyField {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return c.coll.CountDocuments(ctx, q.document())
	}
	res, err := c.coll.UpdateMany(ctx, q.document(), bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Remove deletes all matching documents
func (c *Collection) Remove(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	res, err := c.coll.DeleteMany(ctx, q.document())
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Cast converts ObjectIDs to their hex form, dates to TimeFormat strings and
// bson containers to plain maps and slices
func (c *Collection) Cast(value any) any {
	return persistence.Cast(value, native)
}

func native(value any) (any, bool) {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex(), true
	case primitive.DateTime:
		return persistence.FormatTime(v.Time()), true
	case primitive.Timestamp:
		return persistence.FormatTime(time.Unix(int64(v.T), 0)), true
	case primitive.M:
		return persistence.Cast(map[string]any(v), native), true
	case primitive.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = e.Value
		}
		return persistence.Cast(m, native), true
	case primitive.A:
		return persistence.Cast([]any(v), native), true
	}
	return nil, false
}
