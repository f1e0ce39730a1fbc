package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/otakit/ota-server/bundle/bundlerepo"
	"github.com/otakit/ota-server/domain"
	"github.com/otakit/ota-server/store"
)

const CName = "bundle.service"

var log = logger.NewNamed(CName)

func New() Service {
	return new(bundleService)
}

// objectStore is the capability slice of the object store the orchestrator
// needs.
type objectStore interface {
	Configured() bool
	DeleteObject(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]store.ObjectInfo, error)
	BulkDelete(ctx context.Context, keys []string) (store.BulkDeleteResult, error)
}

// metadataStore is the capability slice of the bundle repo the orchestrator
// needs.
type metadataStore interface {
	GetBundles(ctx context.Context, filter bundlerepo.Filter, limit, offset int64) ([]domain.Bundle, error)
	GetBundleById(ctx context.Context, id primitive.ObjectID) (domain.Bundle, error)
	UpdateBundle(id primitive.ObjectID, fields bundlerepo.Fields)
	CommitBundle(ctx context.Context) error
	GetChannels(ctx context.Context) ([]string, error)
}

// Service orchestrates bundle lifecycle transitions across the metadata
// store and the object store. The two backends share no transaction, so
// every operation reports a structured outcome instead of pretending to be
// atomic; no method returns an error for a backend failure.
type Service interface {
	app.Component

	DisableBundle(ctx context.Context, bundleId string) domain.DeleteResult
	DeleteBundle(ctx context.Context, bundleId string) domain.DeleteResult
	CompleteDeleteBundle(ctx context.Context, bundleId string) domain.CompleteDeleteResult
	BulkDeleteBundles(ctx context.Context, bundleIds []string) domain.BulkDeleteResult

	ListBundles(ctx context.Context, filter bundlerepo.Filter, limit, offset int64) ([]domain.Bundle, error)
	GetBundle(ctx context.Context, bundleId string) (domain.Bundle, error)
	Channels(ctx context.Context) ([]string, error)
}

type bundleService struct {
	repo  metadataStore
	store objectStore
}

func (s *bundleService) Init(a *app.App) (err error) {
	s.repo = a.MustComponent(bundlerepo.CName).(bundlerepo.BundleRepo)
	s.store = a.MustComponent(store.CName).(store.Store)
	return
}

func (s *bundleService) Name() (name string) {
	return CName
}

// DisableBundle is a metadata-only transition to enabled=false. The object
// store is not touched.
func (s *bundleService) DisableBundle(ctx context.Context, bundleId string) (result domain.DeleteResult) {
	result.BundleId = bundleId
	id, err := primitive.ObjectIDFromHex(bundleId)
	if err != nil {
		result.Message = fmt.Sprintf("invalid bundle id: %s", bundleId)
		return
	}
	if _, err = s.repo.GetBundleById(ctx, id); err != nil {
		result.Message = err.Error()
		return
	}
	if err = s.disable(ctx, id); err != nil {
		result.Message = fmt.Sprintf("failed to disable bundle: %v", err)
		return
	}
	result.Success = true
	result.MetadataDeleted = true
	result.Message = "bundle disabled"
	return
}

// DeleteBundle is the soft delete exposed to the admin surface: best-effort
// payload removal, then an unconditional disable in metadata. A storage
// failure downgrades the outcome to a partial success, only a metadata
// commit failure makes the operation fail.
func (s *bundleService) DeleteBundle(ctx context.Context, bundleId string) (result domain.DeleteResult) {
	result.BundleId = bundleId
	id, err := primitive.ObjectIDFromHex(bundleId)
	if err != nil {
		result.Message = fmt.Sprintf("invalid bundle id: %s", bundleId)
		return
	}
	if _, err = s.repo.GetBundleById(ctx, id); err != nil {
		result.Message = err.Error()
		return
	}

	var storageErr error
	if s.store.Configured() {
		storageErr = s.store.DeleteObject(ctx, domain.BundleObjectKey(bundleId, domain.DefaultBundleFile))
	} else {
		storageErr = store.ErrNotConfigured
	}
	if storageErr != nil {
		log.Warn("storage delete failed, proceeding with metadata disable",
			zap.String("bundleId", bundleId), zap.Error(storageErr))
	}

	// the metadata disable runs unconditionally, a storage failure must
	// never block it
	if err = s.disable(ctx, id); err != nil {
		result.Message = fmt.Sprintf("failed to delete bundle metadata: %v", err)
		return
	}
	result.MetadataDeleted = true
	result.Success = true
	if storageErr != nil {
		result.PartialSuccess = true
		result.StorageError = storageErr.Error()
		result.Message = "bundle disabled, storage cleanup failed"
		return
	}
	result.StorageDeleted = true
	result.Message = "bundle deleted"
	return
}

// CompleteDeleteBundle disables the record first, then purges every object
// under the bundle prefix. With no storage configured the metadata disable
// still succeeds and the cleanup is reported as skipped.
func (s *bundleService) CompleteDeleteBundle(ctx context.Context, bundleId string) (result domain.CompleteDeleteResult) {
	result.BundleId = bundleId
	id, err := primitive.ObjectIDFromHex(bundleId)
	if err != nil {
		result.Message = fmt.Sprintf("invalid bundle id: %s", bundleId)
		return
	}
	if _, err = s.repo.GetBundleById(ctx, id); err != nil {
		result.Message = err.Error()
		return
	}
	if err = s.disable(ctx, id); err != nil {
		result.Message = fmt.Sprintf("failed to delete bundle metadata: %v", err)
		return
	}
	result.Success = true

	if !s.store.Configured() {
		result.StorageResult.Skipped = true
		result.Message = "bundle disabled, storage cleanup skipped: object store is not configured"
		return
	}
	objects, err := s.store.ListPrefix(ctx, domain.BundlePrefix(bundleId))
	if err != nil {
		log.Warn("listing bundle objects failed", zap.String("bundleId", bundleId), zap.Error(err))
		result.Message = fmt.Sprintf("bundle disabled, storage cleanup failed: %v", err)
		return
	}
	if len(objects) == 0 {
		result.Message = "bundle deleted, no stored objects"
		return
	}
	keys := make([]string, len(objects))
	for i, object := range objects {
		keys[i] = object.Key
	}
	deleted, err := s.store.BulkDelete(ctx, keys)
	if err != nil {
		result.Message = fmt.Sprintf("bundle disabled, storage cleanup failed: %v", err)
		result.StorageResult.TotalObjects = len(keys)
		return
	}
	result.StorageResult.TotalObjects = deleted.TotalObjects
	result.StorageResult.DeletedObjects = deleted.DeletedObjects
	result.Message = fmt.Sprintf("bundle deleted, %d/%d objects removed", deleted.DeletedObjects, deleted.TotalObjects)
	return
}

// BulkDeleteBundles processes the ids sequentially to keep the result list
// ordered and the backend load bounded, then issues a single batched
// object-store delete for the whole set. The overall success flag keeps the
// historical lenient policy: true when either backend succeeded for at
// least one id. Callers wanting stricter semantics should inspect the
// per-backend counts.
func (s *bundleService) BulkDeleteBundles(ctx context.Context, bundleIds []string) (result domain.BulkDeleteResult) {
	result.OperationId = uuid.New().String()
	if len(bundleIds) == 0 {
		result.Message = "no bundle ids given"
		return
	}
	ids := make([]primitive.ObjectID, len(bundleIds))
	for i, bundleId := range bundleIds {
		id, err := primitive.ObjectIDFromHex(bundleId)
		if err != nil {
			result.Message = fmt.Sprintf("invalid bundle id: %s", bundleId)
			return
		}
		ids[i] = id
	}

	result.Items = make([]domain.DeleteResult, len(bundleIds))
	for i, id := range ids {
		item := domain.DeleteResult{BundleId: bundleIds[i]}
		if _, err := s.repo.GetBundleById(ctx, id); err != nil {
			item.Message = err.Error()
		} else if err = s.disable(ctx, id); err != nil {
			item.Message = fmt.Sprintf("failed to delete bundle metadata: %v", err)
		} else {
			item.Success = true
			item.MetadataDeleted = true
			item.Message = "bundle disabled"
			result.MetadataSuccessCount++
		}
		result.Items[i] = item
	}

	keys := make([]string, len(bundleIds))
	for i, bundleId := range bundleIds {
		keys[i] = domain.BundleObjectKey(bundleId, domain.DefaultBundleFile)
	}
	if s.store.Configured() {
		deleted, err := s.store.BulkDelete(ctx, keys)
		if err != nil {
			s.markStorageFailed(result.Items, err.Error())
		} else {
			for i, keyResult := range deleted.Results {
				if keyResult.Success {
					result.Items[i].StorageDeleted = true
					result.StorageSuccessCount++
				} else {
					result.Items[i].StorageError = keyResult.Error
					if result.Items[i].MetadataDeleted {
						result.Items[i].PartialSuccess = true
					}
				}
			}
		}
	} else {
		s.markStorageFailed(result.Items, store.ErrNotConfigured.Error())
	}

	result.Success = result.MetadataSuccessCount > 0 || result.StorageSuccessCount > 0
	result.Message = fmt.Sprintf("%d/%d bundles disabled, %d/%d payloads removed",
		result.MetadataSuccessCount, len(bundleIds), result.StorageSuccessCount, len(bundleIds))
	log.Info("bulk delete finished",
		zap.String("operationId", result.OperationId),
		zap.Int("bundles", len(bundleIds)),
		zap.Int("metadataDeleted", result.MetadataSuccessCount),
		zap.Int("storageDeleted", result.StorageSuccessCount))
	return
}

func (s *bundleService) markStorageFailed(items []domain.DeleteResult, message string) {
	for i := range items {
		items[i].StorageError = message
		if items[i].MetadataDeleted {
			items[i].PartialSuccess = true
		}
	}
}

func (s *bundleService) disable(ctx context.Context, id primitive.ObjectID) error {
	s.repo.UpdateBundle(id, bundlerepo.Fields{"enabled": false})
	return s.repo.CommitBundle(ctx)
}

func (s *bundleService) ListBundles(ctx context.Context, filter bundlerepo.Filter, limit, offset int64) ([]domain.Bundle, error) {
	if filter.Platform != "" && !filter.Platform.Valid() {
		return nil, fmt.Errorf("invalid platform: %s", filter.Platform)
	}
	return s.repo.GetBundles(ctx, filter, limit, offset)
}

func (s *bundleService) GetBundle(ctx context.Context, bundleId string) (domain.Bundle, error) {
	id, err := primitive.ObjectIDFromHex(bundleId)
	if err != nil {
		return domain.Bundle{}, errors.New("invalid bundle id")
	}
	return s.repo.GetBundleById(ctx, id)
}

func (s *bundleService) Channels(ctx context.Context) ([]string, error) {
	return s.repo.GetChannels(ctx)
}
