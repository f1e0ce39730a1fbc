package adminclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otakit/ota-server/domain"
)

func TestClient_DeleteBundle(t *testing.T) {
	t.Run("successful delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/bundles/b1", r.URL.Path)
			writeJson(t, w, http.StatusOK, domain.DeleteResult{
				BundleId:        "b1",
				Success:         true,
				MetadataDeleted: true,
				StorageDeleted:  true,
				Message:         "bundle deleted",
			})
		}))
		defer server.Close()

		client := newTestClient(server)
		result, err := client.DeleteBundle(context.Background(), "b1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.StorageDeleted)
	})
	t.Run("server responds with error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJson(t, w, http.StatusBadRequest, map[string]string{"error": "invalid bundle id"})
		}))
		defer server.Close()

		client := newTestClient(server)
		_, err := client.DeleteBundle(context.Background(), "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid bundle id")
	})
	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		client := newTestClient(server)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.DeleteBundle(ctx, "b1")
		assert.Error(t, err)
	})
}

func TestClient_BulkDeleteBundles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bundles/bulk-delete", r.URL.Path)
		var req struct {
			Ids []string `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"b1", "b2"}, req.Ids)
		writeJson(t, w, http.StatusOK, domain.BulkDeleteResult{
			Success:              true,
			MetadataSuccessCount: 2,
			StorageSuccessCount:  1,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	result, err := client.BulkDeleteBundles(context.Background(), []string{"b1", "b2"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.MetadataSuccessCount)
	assert.Equal(t, 1, result.StorageSuccessCount)
}

func TestClient_ListBundles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "production", r.URL.Query().Get("channel"))
		assert.Equal(t, "ios", r.URL.Query().Get("platform"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJson(t, w, http.StatusOK, []domain.Bundle{{Channel: "production", Platform: domain.PlatformIos}})
	}))
	defer server.Close()

	client := newTestClient(server)
	bundles, err := client.ListBundles(context.Background(), "production", domain.PlatformIos, 5, 0)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "production", bundles[0].Channel)
}

func TestClient_GetFileSizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files/sizes", r.URL.Path)
		writeJson(t, w, http.StatusOK, map[string]int64{"b1": 1000, "missing-id": 0})
	}))
	defer server.Close()

	client := newTestClient(server)
	sizes, err := client.GetFileSizes(context.Background(), []string{"b1", "missing-id"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"b1": 1000, "missing-id": 0}, sizes)
}

func newTestClient(server *httptest.Server) *adminClient {
	return &adminClient{baseUrl: server.URL, client: server.Client()}
}

func writeJson(t *testing.T, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}
