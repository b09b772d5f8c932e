package management

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Client talks to a management Handler over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a Client for the handler mounted at endpoint,
// for example http://localhost:8080.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
	}
}

func (c *Client) Caches(ctx context.Context) (map[string]map[string]any, error) {
	var resp CachesResponse
	if err := c.do(ctx, http.MethodGet, "/caches", &resp); err != nil {
		return nil, err
	}
	return resp.Caches, nil
}

func (c *Client) Cache(ctx context.Context, name string) (map[string]any, error) {
	var resp CacheResponse
	if err := c.do(ctx, http.MethodGet, "/caches/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return resp.Info, nil
}

func (c *Client) InvalidateAll(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/caches", nil)
}

func (c *Client) Invalidate(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/caches/"+url.PathEscape(name), nil)
}

func (c *Client) InvalidateKey(ctx context.Context, name, key string) error {
	return c.do(ctx, http.MethodDelete, "/caches/"+url.PathEscape(name)+"/"+url.PathEscape(key), nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "management request failed").
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "invalid management response")
	}
	return nil
}

func responseError(resp *http.Response) error {
	var body ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	category := errors.CategoryExternal
	switch resp.StatusCode {
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusBadRequest:
		category = errors.CategoryBadInput
	}

	err := errors.New(body.Error, category).WithCode(resp.StatusCode)
	if body.TextCode != "" {
		err = err.WithTextCode(body.TextCode)
	}
	return err
}
