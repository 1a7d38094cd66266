// Package jellyfin is a small REST client for the parts of the Jellyfin API
// the mixer needs: listing library items and creating playlists.
package jellyfin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

const (
	clientName      = "mood-mixer"
	clientVersion   = "1.0.0"
	defaultPageSize = 200
	defaultTimeout  = 30 * time.Second
	defaultRate     = 10
)

// Sentinel errors.
var (
	// ErrMissingURL is returned by NewClient when no server URL is configured.
	ErrMissingURL = errors.New("jellyfin url is required")

	// ErrMissingAPIKey is returned by NewClient when no API key is configured.
	ErrMissingAPIKey = errors.New("jellyfin api key is required")

	// ErrUnauthorized is returned on 401 and 403 responses.
	ErrUnauthorized = errors.New("jellyfin rejected the api key")

	// ErrNotFound is returned on 404 responses.
	ErrNotFound = errors.New("jellyfin resource not found")
)

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jellyfin %s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Config holds connection settings.
type Config struct {
	URL              string
	APIKey           string
	UserID           string   // Optional; scopes item listing and owns created playlists
	IncludeItemTypes []string // Defaults to Movie, Episode, Audio
	PageSize         int
	Timeout          time.Duration
	RequestsPerSec   float64
}

// Client talks to a Jellyfin server.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	itemTypes  []string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Jellyfin client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = defaultRate
	}
	if len(cfg.IncludeItemTypes) == 0 {
		cfg.IncludeItemTypes = []string{"Movie", "Episode", "Audio"}
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		userID:     cfg.UserID,
		itemTypes:  cfg.IncludeItemTypes,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/System/Ping", nil, nil)
	if err != nil {
		return fmt.Errorf("jellyfin ping: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// GetSystemInfo returns server name and version.
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.getJSON(ctx, "/System/Info", nil, &info); err != nil {
		return nil, fmt.Errorf("jellyfin system info: %w", err)
	}
	return &info, nil
}

// GetItems fetches a single page of library items.
func (c *Client) GetItems(ctx context.Context, q ItemQuery) (*ItemsPage, error) {
	params := url.Values{
		"Recursive":              {"true"},
		"Fields":                 {"Genres,ProductionYear"},
		"EnableTotalRecordCount": {"true"},
		"StartIndex":             {strconv.Itoa(q.StartIndex)},
	}
	if q.Limit > 0 {
		params.Set("Limit", strconv.Itoa(q.Limit))
	}
	if len(q.IncludeItemTypes) > 0 {
		params.Set("IncludeItemTypes", strings.Join(q.IncludeItemTypes, ","))
	}
	if q.ParentID != "" {
		params.Set("ParentId", q.ParentID)
	}

	endpoint := "/Items"
	if c.userID != "" {
		endpoint = "/Users/" + url.PathEscape(c.userID) + "/Items"
	}

	var page ItemsPage
	if err := c.getJSON(ctx, endpoint, params, &page); err != nil {
		return nil, fmt.Errorf("jellyfin items: %w", err)
	}
	return &page, nil
}

// FetchAllItems pages through the library and returns every configured
// item type as ranking items, in server order.
func (c *Client) FetchAllItems(ctx context.Context) ([]ranking.Item, error) {
	var items []ranking.Item

	for start := 0; ; {
		page, err := c.GetItems(ctx, ItemQuery{
			StartIndex:       start,
			Limit:            c.pageSize,
			IncludeItemTypes: c.itemTypes,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			items = append(items, item.ToRankingItem())
		}

		c.log.Debug().
			Int("start", start).
			Int("page_items", len(page.Items)).
			Int("total", page.TotalRecordCount).
			Msg("fetched jellyfin page")

		start += len(page.Items)
		if len(page.Items) == 0 || start >= page.TotalRecordCount {
			break
		}
	}

	return items, nil
}

// CreatePlaylist creates a playlist holding ids in order and returns its ID.
func (c *Client) CreatePlaylist(ctx context.Context, name string, ids []string) (string, error) {
	body, err := json.Marshal(createPlaylistRequest{
		Name:   name,
		Ids:    ids,
		UserID: c.userID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding playlist request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/Playlists", nil, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("jellyfin create playlist: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var created createPlaylistResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding playlist response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// do sends a request and maps non-2xx responses to errors. The caller
// closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", clientName)
	req.Header.Set("X-Emby-Device-Name", clientName)
	req.Header.Set("X-Emby-Device-Id", clientName)
	req.Header.Set("X-Emby-Client-Version", clientVersion)
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
