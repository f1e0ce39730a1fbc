// Package adminclient is a Go client for the admin API, used by operator
// tooling to drive bundle lifecycle operations remotely.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/anyproto/any-sync/app"

	"github.com/otakit/ota-server/domain"
	"github.com/otakit/ota-server/store"
)

func New() Client {
	return &adminClient{client: &http.Client{}}
}

const CName = "admin.client"

type Client interface {
	app.Component

	ListBundles(ctx context.Context, channel string, platform domain.Platform, limit, offset int64) ([]domain.Bundle, error)
	GetBundle(ctx context.Context, bundleId string) (domain.Bundle, error)
	Channels(ctx context.Context) ([]string, error)
	DisableBundle(ctx context.Context, bundleId string) (domain.DeleteResult, error)
	DeleteBundle(ctx context.Context, bundleId string) (domain.DeleteResult, error)
	CompleteDeleteBundle(ctx context.Context, bundleId string) (domain.CompleteDeleteResult, error)
	BulkDeleteBundles(ctx context.Context, bundleIds []string) (domain.BulkDeleteResult, error)
	ListObjects(ctx context.Context, prefix string) ([]store.ObjectInfo, error)
	GetFileSizes(ctx context.Context, bundleIds []string) (map[string]int64, error)
}

type adminClient struct {
	baseUrl string
	client  *http.Client
}

func (c *adminClient) Init(a *app.App) (err error) {
	c.baseUrl = a.MustComponent("config").(configGetter).GetAdminClient().BaseUrl
	return
}

func (c *adminClient) Name() (name string) {
	return CName
}

func (c *adminClient) ListBundles(ctx context.Context, channel string, platform domain.Platform, limit, offset int64) (bundles []domain.Bundle, err error) {
	query := url.Values{}
	if channel != "" {
		query.Set("channel", channel)
	}
	if platform != "" {
		query.Set("platform", string(platform))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprint(offset))
	}
	path := "/api/bundles"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	err = c.doJson(ctx, http.MethodGet, path, nil, &bundles)
	return
}

func (c *adminClient) GetBundle(ctx context.Context, bundleId string) (bundle domain.Bundle, err error) {
	err = c.doJson(ctx, http.MethodGet, "/api/bundles/"+bundleId, nil, &bundle)
	return
}

func (c *adminClient) Channels(ctx context.Context) (channels []string, err error) {
	err = c.doJson(ctx, http.MethodGet, "/api/channels", nil, &channels)
	return
}

func (c *adminClient) DisableBundle(ctx context.Context, bundleId string) (result domain.DeleteResult, err error) {
	err = c.doJson(ctx, http.MethodPost, "/api/bundles/"+bundleId+"/disable", nil, &result)
	return
}

func (c *adminClient) DeleteBundle(ctx context.Context, bundleId string) (result domain.DeleteResult, err error) {
	err = c.doJson(ctx, http.MethodDelete, "/api/bundles/"+bundleId, nil, &result)
	return
}

func (c *adminClient) CompleteDeleteBundle(ctx context.Context, bundleId string) (result domain.CompleteDeleteResult, err error) {
	err = c.doJson(ctx, http.MethodDelete, "/api/bundles/"+bundleId+"/complete", nil, &result)
	return
}

func (c *adminClient) BulkDeleteBundles(ctx context.Context, bundleIds []string) (result domain.BulkDeleteResult, err error) {
	req := struct {
		Ids []string `json:"ids"`
	}{Ids: bundleIds}
	err = c.doJson(ctx, http.MethodPost, "/api/bundles/bulk-delete", req, &result)
	return
}

func (c *adminClient) ListObjects(ctx context.Context, prefix string) (objects []store.ObjectInfo, err error) {
	err = c.doJson(ctx, http.MethodGet, "/api/objects?prefix="+url.QueryEscape(prefix), nil, &objects)
	return
}

func (c *adminClient) GetFileSizes(ctx context.Context, bundleIds []string) (sizes map[string]int64, err error) {
	req := struct {
		Ids []string `json:"ids"`
	}{Ids: bundleIds}
	err = c.doJson(ctx, http.MethodPost, "/api/files/sizes", req, &sizes)
	return
}

func (c *adminClient) doJson(ctx context.Context, method, path string, body, into any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if err = json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("admin api: %s", errResp.Error)
		}
		return fmt.Errorf("admin api: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
