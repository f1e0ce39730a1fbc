package bundlerepo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/anyproto/any-sync/app"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/otakit/ota-server/db"
	"github.com/otakit/ota-server/domain"
)

const CName = "bundle.repo"

var ErrNotFound = errors.New("bundle not found")

func New() BundleRepo {
	return new(bundleRepo)
}

// Filter narrows a bundle listing. Empty fields match everything.
type Filter struct {
	Channel  string
	Platform domain.Platform
}

// Fields is a partial update, field name to new value.
type Fields map[string]any

type BundleRepo interface {
	GetBundles(ctx context.Context, filter Filter, limit, offset int64) ([]domain.Bundle, error)
	GetBundleById(ctx context.Context, id primitive.ObjectID) (domain.Bundle, error)
	CreateBundle(ctx context.Context, bundle domain.Bundle) error
	// UpdateBundle stages a partial mutation. Nothing is persisted until
	// CommitBundle.
	UpdateBundle(id primitive.ObjectID, fields Fields)
	// CommitBundle flushes every staged mutation. On failure the staged
	// mutations are discarded, they are considered not to have happened
	// and callers restage before retrying.
	CommitBundle(ctx context.Context) error
	GetChannels(ctx context.Context) ([]string, error)
	// HardDeleteBundle removes the row entirely. The soft paths never call
	// it, row removal is always a deliberate act.
	HardDeleteBundle(ctx context.Context, id primitive.ObjectID) error
	app.ComponentRunnable
}

var bundleIndexes = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "channel", Value: 1},
			{Key: "platform", Value: 1},
		},
	},
}

type bundleRepo struct {
	db          db.Database
	bundlesColl *mongo.Collection

	mu     sync.Mutex
	staged map[primitive.ObjectID]Fields
}

func (r *bundleRepo) Name() (name string) {
	return CName
}

func (r *bundleRepo) Init(a *app.App) (err error) {
	r.db = a.MustComponent(db.CName).(db.Database)
	r.staged = make(map[primitive.ObjectID]Fields)
	return
}

func (r *bundleRepo) Run(ctx context.Context) (err error) {
	r.bundlesColl = r.db.Db().Collection("bundles")
	return ensureIndexes(ctx, r.bundlesColl, bundleIndexes...)
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection, indexes ...mongo.IndexModel) (err error) {
	existingIndexes, err := coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return
	}
	if len(existingIndexes) <= 1 {
		_, err = coll.Indexes().CreateMany(ctx, indexes)
	}
	return
}

func (r *bundleRepo) GetBundles(ctx context.Context, filter Filter, limit, offset int64) (bundles []domain.Bundle, err error) {
	query := bson.D{}
	if filter.Channel != "" {
		query = append(query, bson.E{Key: "channel", Value: filter.Channel})
	}
	if filter.Platform != "" {
		query = append(query, bson.E{Key: "platform", Value: filter.Platform})
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	if offset > 0 {
		opts = opts.SetSkip(offset)
	}
	cur, err := r.bundlesColl.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	for cur.Next(ctx) {
		var bundle domain.Bundle
		if err = cur.Decode(&bundle); err != nil {
			return nil, err
		}
		bundles = append(bundles, bundle)
	}
	return bundles, cur.Err()
}

func (r *bundleRepo) GetBundleById(ctx context.Context, id primitive.ObjectID) (bundle domain.Bundle, err error) {
	if err = r.bundlesColl.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&bundle); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Bundle{}, ErrNotFound
		}
		return
	}
	return
}

func (r *bundleRepo) CreateBundle(ctx context.Context, bundle domain.Bundle) (err error) {
	if bundle.Id.IsZero() {
		bundle.Id = primitive.NewObjectID()
	}
	_, err = r.bundlesColl.InsertOne(ctx, bundle)
	return
}

func (r *bundleRepo) UpdateBundle(id primitive.ObjectID, fields Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged, ok := r.staged[id]
	if !ok {
		staged = make(Fields, len(fields))
		r.staged[id] = staged
	}
	for k, v := range fields {
		staged[k] = v
	}
}

func (r *bundleRepo) CommitBundle(ctx context.Context) (err error) {
	// detach the whole buffer under the lock so concurrent staging never
	// touches the snapshot the commit iterates; a failed commit discards
	// the snapshot instead of leaking it into a later unrelated commit
	r.mu.Lock()
	staged := r.staged
	r.staged = make(map[primitive.ObjectID]Fields)
	r.mu.Unlock()
	if len(staged) == 0 {
		return nil
	}
	return r.db.Tx(ctx, func(ctx mongo.SessionContext) (err error) {
		for id, fields := range staged {
			set := bson.D{}
			for k, v := range fields {
				set = append(set, bson.E{Key: k, Value: v})
			}
			if _, err = r.bundlesColl.UpdateOne(
				ctx,
				bson.D{{Key: "_id", Value: id}},
				bson.D{{Key: "$set", Value: set}},
			); err != nil {
				return
			}
		}
		return
	})
}

func (r *bundleRepo) GetChannels(ctx context.Context) (channels []string, err error) {
	values, err := r.bundlesColl.Distinct(ctx, "channel", bson.D{})
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if name, ok := v.(string); ok {
			channels = append(channels, name)
		}
	}
	sort.Strings(channels)
	return channels, nil
}

func (r *bundleRepo) HardDeleteBundle(ctx context.Context, id primitive.ObjectID) (err error) {
	_, err = r.bundlesColl.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return
}

func (r *bundleRepo) Close(ctx context.Context) (err error) {
	return
}
