// Package ncapi is the client for the signage management backend.
package ncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"player-watch/internal/httpclient"
	"player-watch/internal/store"
	"player-watch/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	tokenCacheKey = "ncapi:token"
	tokenCacheTTL = 12 * time.Hour

	maxResponseBodySize = 8 << 20 // 8 MB
)

// Client talks to the signage management API. It owns login, token caching
// and the single re-login retry on 401; all responses are normalized before
// they leave this package.
type Client struct {
	baseURL  string
	username string
	password string
	pageSize int

	client      *http.Client
	imageClient *http.Client
	store       store.Store
}

// NewClient creates a backend API client using pooled HTTP clients from the manager.
func NewClient(configManager types.ConfigManager, clientManager *httpclient.HTTPClientManager, s store.Store) *Client {
	backend := configManager.GetBackendConfig()
	monitor := configManager.GetMonitorConfig()

	apiClient := clientManager.GetClient(&httpclient.Config{
		ConnectTimeout:        10 * time.Second,
		RequestTimeout:        time.Duration(backend.RequestTimeout) * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: time.Duration(backend.RequestTimeout) * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	})
	imageClient := clientManager.GetClient(&httpclient.Config{
		ConnectTimeout:      10 * time.Second,
		RequestTimeout:      time.Duration(monitor.ImageDownloadTimeout) * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Client{
		baseURL:     strings.TrimRight(backend.BaseURL, "/"),
		username:    backend.Username,
		password:    backend.Password,
		pageSize:    backend.PageSize,
		client:      apiClient,
		imageClient: imageClient,
		store:       s,
	}
}

// PageSize returns the configured listing page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Login authenticates against the backend and caches the bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return fmt.Errorf("backend credentials are not configured")
	}

	payload, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/account/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return fmt.Errorf("login response contained no token")
	}

	if err := c.store.Set(tokenCacheKey, []byte(token), tokenCacheTTL); err != nil {
		logrus.WithError(err).Warn("Failed to cache auth token")
	}
	logrus.Debug("Backend login successful")
	return nil
}

// token returns the cached bearer token, logging in when the cache is empty.
func (c *Client) token(ctx context.Context) (string, error) {
	if cached, err := c.store.Get(tokenCacheKey); err == nil && len(cached) > 0 {
		return string(cached), nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	cached, err := c.store.Get(tokenCacheKey)
	if err != nil {
		return "", fmt.Errorf("token missing after login: %w", err)
	}
	return string(cached), nil
}

// request performs an authenticated GET and returns the raw body.
// A 401 triggers exactly one re-login and retry.
func (c *Client) request(ctx context.Context, path string, query string) ([]byte, error) {
	return c.requestWithRetry(ctx, path, query, true)
}

func (c *Client) requestWithRetry(ctx context.Context, path, query string, retryOn401 bool) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && retryOn401 {
		logrus.WithField("path", path).Warn("Received 401, retrying after re-login")
		if err := c.store.Delete(tokenCacheKey); err != nil {
			logrus.WithError(err).Warn("Failed to evict stale auth token")
		}
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("re-login failed: %w", err)
		}
		return c.requestWithRetry(ctx, path, query, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, fmt.Errorf("request to %s failed: %d - %s", path, resp.StatusCode, snippet)
	}
	return body, nil
}

// GetLicenses fetches one page of the license listing. The backend sometimes
// nests the listing under a "message" key; both shapes decode to the same
// LicensePage here. Transient failures return an empty page with the error.
func (c *Client) GetLicenses(ctx context.Context, filters ListFilters, page int) (*LicensePage, error) {
	body, err := c.request(ctx, "/api/license/getall", filters.query(page, c.pageSize).Encode())
	if err != nil {
		return &LicensePage{Page: page}, err
	}
	return normalizeLicensePage(body, page)
}

// GetDeviceFiles fetches the screenshot file URLs for one device. A missing
// "files" key and an empty list both yield an empty slice.
func (c *Client) GetDeviceFiles(ctx context.Context, licenseID string) ([]string, error) {
	if licenseID == "" {
		return nil, fmt.Errorf("licenseID is required")
	}
	body, err := c.request(ctx, "/api/pi/getfiles", "licenseid="+licenseID)
	if err != nil {
		return nil, err
	}

	files := gjson.GetBytes(body, "files")
	if !files.Exists() {
		files = gjson.GetBytes(body, "message.files")
	}
	urls := make([]string, 0, len(files.Array()))
	for _, f := range files.Array() {
		if s := f.String(); s != "" {
			urls = append(urls, s)
		}
	}
	return urls, nil
}

// DownloadImage fetches the raw bytes of one screenshot.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.imageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
}

// normalizeLicensePage decodes either payload shape into a LicensePage.
func normalizeLicensePage(body []byte, page int) (*LicensePage, error) {
	raw := gjson.GetBytes(body, "licenses")
	if !raw.Exists() {
		raw = gjson.GetBytes(body, "message.licenses")
	}

	result := &LicensePage{Page: page}
	if !raw.Exists() || !raw.IsArray() {
		return result, nil
	}

	var licenses []License
	if err := json.Unmarshal([]byte(raw.Raw), &licenses); err != nil {
		return result, fmt.Errorf("failed to decode license listing: %w", err)
	}
	result.Licenses = licenses
	return result, nil
}
