package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoCollection is the collection sessions are stored in.
const DefaultMongoCollection = "sessions"

// MongoStore keeps sessions in a MongoDB collection with a TTL index on
// expiresAt. The server-side TTL monitor runs about once a minute, so Find
// may still return an expired record; Manager checks expiry itself.
type MongoStore struct {
	coll *mongo.Collection
}

type mongoRecord struct {
	ID        string           `bson:"_id"`
	Identity  *models.Identity `bson:"identity,omitempty"`
	ExpiresAt time.Time        `bson:"expiresAt"`
}

// NewMongoStore uses the sessions collection of db and makes sure the TTL
// index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	coll := db.Collection(DefaultMongoCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create ttl index: %w", common.ErrSessionStoreUnavailable, err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Create(ctx context.Context, sess *models.Session) error {
	rec := mongoRecord{ID: sess.ID, Identity: sess.Identity, ExpiresAt: sess.ExpiresAt.UTC()}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("%w: mongo insert: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, id string) (*models.Session, error) {
	var rec mongoRecord
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: mongo find: %w", common.ErrSessionStoreUnavailable, err)
	}
	return &models.Session{ID: rec.ID, Identity: rec.Identity, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: mongo delete: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("%w: mongo sweep: %w", common.ErrSessionStoreUnavailable, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: mongo ping: %w", common.ErrSessionStoreUnavailable, err)
	}
	return nil
}

// Connect dials MongoDB at uri and returns the database named in the URI
// path, or "gqlauth" when the URI names none.
func Connect(ctx context.Context, uri string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mongo connect: %w", common.ErrSessionStoreUnavailable, err)
	}
	return client, client.Database(databaseName(uri)), nil
}

func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "gqlauth"
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return "gqlauth"
}
