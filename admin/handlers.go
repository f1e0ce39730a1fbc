package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/otakit/ota-server/bundle/bundlerepo"
	"github.com/otakit/ota-server/domain"
	"github.com/otakit/ota-server/store"
)

type bundleService interface {
	DisableBundle(ctx context.Context, bundleId string) domain.DeleteResult
	DeleteBundle(ctx context.Context, bundleId string) domain.DeleteResult
	CompleteDeleteBundle(ctx context.Context, bundleId string) domain.CompleteDeleteResult
	BulkDeleteBundles(ctx context.Context, bundleIds []string) domain.BulkDeleteResult
	ListBundles(ctx context.Context, filter bundlerepo.Filter, limit, offset int64) ([]domain.Bundle, error)
	GetBundle(ctx context.Context, bundleId string) (domain.Bundle, error)
	Channels(ctx context.Context) ([]string, error)
}

type objectStore interface {
	Configured() bool
	ListPrefix(ctx context.Context, prefix string) ([]store.ObjectInfo, error)
	BulkDelete(ctx context.Context, keys []string) (store.BulkDeleteResult, error)
}

type sizeLookup interface {
	GetFileSizes(ctx context.Context, bundleIds []string) (map[string]int64, error)
}

type handlers struct {
	bundles bundleService
	store   objectStore
	sizes   sizeLookup
}

func (h *handlers) init(m *http.ServeMux) {
	m.HandleFunc("GET /api/bundles", h.ListBundles)
	m.HandleFunc("GET /api/bundles/{id}", h.GetBundle)
	m.HandleFunc("GET /api/channels", h.Channels)
	m.HandleFunc("POST /api/bundles/{id}/disable", h.Disable)
	m.HandleFunc("DELETE /api/bundles/{id}", h.Delete)
	m.HandleFunc("DELETE /api/bundles/{id}/complete", h.CompleteDelete)
	m.HandleFunc("POST /api/bundles/bulk-delete", h.BulkDelete)
	m.HandleFunc("GET /api/objects", h.ListObjects)
	m.HandleFunc("POST /api/objects/bulk-delete", h.BulkObjectDelete)
	m.HandleFunc("POST /api/files/sizes", h.FileSizes)
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, errors.New("not found"))
	})
}

func (h *handlers) ListBundles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := bundlerepo.Filter{
		Channel:  query.Get("channel"),
		Platform: domain.Platform(query.Get("platform")),
	}
	limit, _ := strconv.ParseInt(query.Get("limit"), 10, 64)
	offset, _ := strconv.ParseInt(query.Get("offset"), 10, 64)
	bundles, err := h.bundles.ListBundles(r.Context(), filter, limit, offset)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if bundles == nil {
		bundles = []domain.Bundle{}
	}
	writeJson(w, http.StatusOK, bundles)
}

func (h *handlers) GetBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.bundles.GetBundle(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, bundlerepo.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
		} else {
			writeErr(w, http.StatusBadRequest, err)
		}
		return
	}
	writeJson(w, http.StatusOK, bundle)
}

func (h *handlers) Channels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.bundles.Channels(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if channels == nil {
		channels = []string{}
	}
	writeJson(w, http.StatusOK, channels)
}

func (h *handlers) Disable(w http.ResponseWriter, r *http.Request) {
	id, ok := bundleId(w, r)
	if !ok {
		return
	}
	writeJson(w, http.StatusOK, h.bundles.DisableBundle(r.Context(), id))
}

func (h *handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bundleId(w, r)
	if !ok {
		return
	}
	writeJson(w, http.StatusOK, h.bundles.DeleteBundle(r.Context(), id))
}

func (h *handlers) CompleteDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := bundleId(w, r)
	if !ok {
		return
	}
	writeJson(w, http.StatusOK, h.bundles.CompleteDeleteBundle(r.Context(), id))
}

func (h *handlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ids []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Ids) == 0 {
		writeErr(w, http.StatusBadRequest, errors.New("ids are required"))
		return
	}
	for _, id := range req.Ids {
		if !primitive.IsValidObjectID(id) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid bundle id: %s", id))
			return
		}
	}
	writeJson(w, http.StatusOK, h.bundles.BulkDeleteBundles(r.Context(), req.Ids))
}

// bundleId validates the id path value, malformed ids are rejected before
// any backend call.
func bundleId(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !primitive.IsValidObjectID(id) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid bundle id: %s", id))
		return "", false
	}
	return id, true
}

func (h *handlers) ListObjects(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeErr(w, http.StatusBadRequest, errors.New("prefix is required"))
		return
	}
	objects, err := h.store.ListPrefix(r.Context(), prefix)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if objects == nil {
		objects = []store.ObjectInfo{}
	}
	writeJson(w, http.StatusOK, objects)
}

func (h *handlers) BulkObjectDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Keys) == 0 {
		writeErr(w, http.StatusBadRequest, errors.New("keys are required"))
		return
	}
	result, err := h.store.BulkDelete(r.Context(), req.Keys)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	var resp = struct {
		Success bool `json:"success"`
		store.BulkDeleteResult
	}{
		Success:          result.AllDeleted(),
		BulkDeleteResult: result,
	}
	writeJson(w, http.StatusOK, resp)
}

func (h *handlers) FileSizes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ids []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Ids) == 0 {
		writeErr(w, http.StatusBadRequest, errors.New("ids are required"))
		return
	}
	sizes, err := h.sizes.GetFileSizes(r.Context(), req.Ids)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, http.StatusOK, sizes)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(body)
	_, _ = w.Write(data)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJson(w, status, errResp{Error: err.Error()})
}
