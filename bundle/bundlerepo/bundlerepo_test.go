package bundlerepo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/otakit/ota-server/db"
	"github.com/otakit/ota-server/domain"
)

var ctx = context.Background()

func newTestBundle(channel string, platform domain.Platform) domain.Bundle {
	return domain.Bundle{
		Id:               primitive.NewObjectID(),
		Channel:          channel,
		Platform:         platform,
		TargetAppVersion: "1.0.0",
		Enabled:          true,
	}
}

func TestBundleRepo_GetBundleById(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		fx := newFixture(t)
		bundle := newTestBundle("production", domain.PlatformIos)
		require.NoError(t, fx.CreateBundle(ctx, bundle))
		got, err := fx.GetBundleById(ctx, bundle.Id)
		require.NoError(t, err)
		assert.Equal(t, bundle, got)
	})
	t.Run("absent", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.GetBundleById(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBundleRepo_GetBundles(t *testing.T) {
	fx := newFixture(t)
	b1 := newTestBundle("production", domain.PlatformIos)
	b2 := newTestBundle("production", domain.PlatformAndroid)
	b3 := newTestBundle("staging", domain.PlatformIos)
	for _, b := range []domain.Bundle{b1, b2, b3} {
		require.NoError(t, fx.CreateBundle(ctx, b))
	}

	t.Run("all, newest first", func(t *testing.T) {
		bundles, err := fx.GetBundles(ctx, Filter{}, 0, 0)
		require.NoError(t, err)
		require.Len(t, bundles, 3)
		assert.Equal(t, b3.Id, bundles[0].Id)
		assert.Equal(t, b1.Id, bundles[2].Id)
	})
	t.Run("by channel", func(t *testing.T) {
		bundles, err := fx.GetBundles(ctx, Filter{Channel: "production"}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, bundles, 2)
	})
	t.Run("by channel and platform", func(t *testing.T) {
		bundles, err := fx.GetBundles(ctx, Filter{Channel: "production", Platform: domain.PlatformIos}, 0, 0)
		require.NoError(t, err)
		require.Len(t, bundles, 1)
		assert.Equal(t, b1.Id, bundles[0].Id)
	})
	t.Run("limit and offset", func(t *testing.T) {
		bundles, err := fx.GetBundles(ctx, Filter{}, 1, 1)
		require.NoError(t, err)
		require.Len(t, bundles, 1)
		assert.Equal(t, b2.Id, bundles[0].Id)
	})
}

func TestBundleRepo_CommitBundle(t *testing.T) {
	t.Run("staged update is invisible until commit", func(t *testing.T) {
		fx := newFixture(t)
		bundle := newTestBundle("production", domain.PlatformIos)
		require.NoError(t, fx.CreateBundle(ctx, bundle))

		fx.UpdateBundle(bundle.Id, Fields{"enabled": false})
		got, err := fx.GetBundleById(ctx, bundle.Id)
		require.NoError(t, err)
		assert.True(t, got.Enabled)

		require.NoError(t, fx.CommitBundle(ctx))
		got, err = fx.GetBundleById(ctx, bundle.Id)
		require.NoError(t, err)
		assert.False(t, got.Enabled)
	})
	t.Run("staged updates merge per bundle", func(t *testing.T) {
		fx := newFixture(t)
		bundle := newTestBundle("production", domain.PlatformIos)
		require.NoError(t, fx.CreateBundle(ctx, bundle))

		fx.UpdateBundle(bundle.Id, Fields{"enabled": false})
		fx.UpdateBundle(bundle.Id, Fields{"message": "rolled back"})
		require.NoError(t, fx.CommitBundle(ctx))

		got, err := fx.GetBundleById(ctx, bundle.Id)
		require.NoError(t, err)
		assert.False(t, got.Enabled)
		assert.Equal(t, "rolled back", got.Message)
	})
	t.Run("empty commit is a no-op", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.CommitBundle(ctx))
	})
	t.Run("staging stays safe while a commit runs", func(t *testing.T) {
		fx := newFixture(t)
		bundle := newTestBundle("production", domain.PlatformIos)
		require.NoError(t, fx.CreateBundle(ctx, bundle))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					fx.UpdateBundle(bundle.Id, Fields{"enabled": j%2 == 0})
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, fx.CommitBundle(ctx))
			}
		}()
		wg.Wait()
		require.NoError(t, fx.CommitBundle(ctx))
	})
	t.Run("failed commit discards the staged buffer", func(t *testing.T) {
		fdb := &failingDb{txErr: errors.New("no backend")}
		repo := &bundleRepo{db: fdb, staged: map[primitive.ObjectID]Fields{}}
		repo.UpdateBundle(primitive.NewObjectID(), Fields{"enabled": false})
		require.Error(t, repo.CommitBundle(ctx))
		assert.Empty(t, repo.staged)

		// nothing left to flush, the next commit never reaches the backend
		require.NoError(t, repo.CommitBundle(ctx))
		assert.Equal(t, 1, fdb.txCalls)
	})
}

type failingDb struct {
	txErr   error
	txCalls int
}

func (f *failingDb) Db() *mongo.Database { return nil }

func (f *failingDb) Tx(context.Context, func(ctx mongo.SessionContext) error) error {
	f.txCalls++
	return f.txErr
}

func (f *failingDb) Init(*app.App) error         { return nil }
func (f *failingDb) Name() string                { return db.CName }
func (f *failingDb) Run(context.Context) error   { return nil }
func (f *failingDb) Close(context.Context) error { return nil }

func TestBundleRepo_GetChannels(t *testing.T) {
	fx := newFixture(t)
	for _, channel := range []string{"staging", "production", "staging"} {
		require.NoError(t, fx.CreateBundle(ctx, newTestBundle(channel, domain.PlatformIos)))
	}
	channels, err := fx.GetChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"production", "staging"}, channels)
}

func TestBundleRepo_HardDeleteBundle(t *testing.T) {
	fx := newFixture(t)
	bundle := newTestBundle("production", domain.PlatformIos)
	require.NoError(t, fx.CreateBundle(ctx, bundle))
	require.NoError(t, fx.HardDeleteBundle(ctx, bundle.Id))
	_, err := fx.GetBundleById(ctx, bundle.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newFixture(t testing.TB) *fixture {
	fx := &fixture{
		BundleRepo: New(),
		a:          new(app.App),
	}
	fx.a.Register(&testConfig{
		Mongo: db.Mongo{
			Connect:  "mongodb://localhost:27017",
			Database: "ota_unittest",
		},
	}).
		Register(db.New()).
		Register(fx.BundleRepo)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		fx.finish(t)
	})
	return fx
}

type fixture struct {
	BundleRepo
	a *app.App
}

func (fx *fixture) finish(t testing.TB) {
	_ = fx.BundleRepo.(*bundleRepo).bundlesColl.Drop(ctx)
	require.NoError(t, fx.a.Close(ctx))
}

type testConfig struct {
	Mongo db.Mongo
}

func (t testConfig) Init(a *app.App) (err error) {
	return
}

func (t testConfig) Name() (name string) {
	return "config"
}

func (t testConfig) GetMongo() db.Mongo {
	return t.Mongo
}
