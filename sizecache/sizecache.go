package sizecache

import (
	"context"
	"sync"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/otakit/ota-server/store"
)

const CName = "sizecache"

var log = logger.NewNamed(CName)

func New() SizeCache {
	return new(sizeCache)
}

// SizeCache memoizes bundle payload sizes for the lifetime of the process.
// There is no TTL and no invalidation: once a size is recorded it is never
// refetched, even if the underlying objects change. Ids without any stored
// object resolve to 0 and are cached as such.
type SizeCache interface {
	app.Component

	GetFileSizes(ctx context.Context, bundleIds []string) (map[string]int64, error)
}

// objectLister is the slice of the object store the cache needs.
type objectLister interface {
	Configured() bool
	ListPrefix(ctx context.Context, prefix string) ([]store.ObjectInfo, error)
}

type sizeCache struct {
	store objectLister

	mu    sync.Mutex
	sizes map[string]int64
}

func (c *sizeCache) Init(a *app.App) (err error) {
	c.store = a.MustComponent(store.CName).(store.Store)
	c.sizes = make(map[string]int64)
	return
}

func (c *sizeCache) Name() (name string) {
	return CName
}

// GetFileSizes answers cached ids from memory and resolves the remaining
// ones in a single lookup pass, one prefix listing per missing id, so a
// lookup never scans objects outside the requested bundles. Concurrent
// calls may fetch the same id twice, which is harmless because the
// fetched value is deterministic.
func (c *sizeCache) GetFileSizes(ctx context.Context, bundleIds []string) (map[string]int64, error) {
	result := make(map[string]int64, len(bundleIds))
	var missing []string
	c.mu.Lock()
	for _, id := range bundleIds {
		if size, ok := c.sizes[id]; ok {
			result[id] = size
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()
	if len(missing) == 0 {
		return result, nil
	}
	if !c.store.Configured() {
		return nil, store.ErrNotConfigured
	}

	// every bundle object lives under "{bundleId}/", an id with no
	// objects resolves to 0 and is cached as resolved
	fetched := make(map[string]int64, len(missing))
	for _, id := range missing {
		objects, err := c.store.ListPrefix(ctx, id+"/")
		if err != nil {
			return nil, err
		}
		var total int64
		for _, object := range objects {
			total += object.Size
		}
		fetched[id] = total
	}
	c.mu.Lock()
	for id, size := range fetched {
		c.sizes[id] = size
		result[id] = size
	}
	c.mu.Unlock()
	log.Debug("resolved bundle sizes", zap.Int("requested", len(bundleIds)), zap.Int("fetched", len(missing)))
	return result, nil
}
