package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownPlant is returned when the catalog has no record for an ID
var ErrUnknownPlant = errors.New("unknown plant")

// UpstreamError is returned when the catalog call fails or answers with an
// unexpected shape
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Lookup is the catalog surface used by handlers
type Lookup interface {
	Search(ctx context.Context, query string) ([]Summary, error)
	Detail(ctx context.Context, id string) (*Item, error)
}

// Observer is told about every upstream call and cache lookup
type Observer interface {
	ObserveCatalogRequest(op string, elapsed time.Duration, err error)
	ObserveCatalogCache(op string, hit bool)
}

// Config configures the HTTP client
type Config struct {
	BaseURL    string
	APIKey     string
	SearchPath string
	DetailPath string
	Timeout    time.Duration
	MaxResults int
	Observer   Observer
}

// Client calls the catalog over HTTP with a bearer API key
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

var _ Lookup = (*Client)(nil)

// NewClient creates a catalog client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Search returns at most MaxResults plants matching query
func (c *Client) Search(ctx context.Context, query string) ([]Summary, error) {
	var hits []searchHit
	if err := c.get(ctx, "search", c.cfg.SearchPath, url.Values{"query": {query}}, &hits); err != nil {
		return nil, err
	}

	results := make([]Summary, 0, len(hits))
	for _, h := range hits {
		if h.Item == nil {
			continue
		}
		results = append(results, summarize(h.Item))
		if len(results) == c.cfg.MaxResults {
			break
		}
	}

	c.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Catalog search")
	return results, nil
}

// Detail fetches one plant record
func (c *Client) Detail(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := c.get(ctx, "detail", c.cfg.DetailPath, url.Values{"plant_id": {id}}, &item); err != nil {
		return nil, err
	}
	if item.ID == "" && item.LatinName == "" && len(item.CommonName) == 0 {
		return nil, ErrUnknownPlant
	}
	if item.ID == "" {
		item.ID = FlexString(id)
	}
	return &item, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.cfg.Observer != nil {
			c.cfg.Observer.ObserveCatalogRequest(op, time.Since(start), err)
		}
	}()

	endpoint := c.cfg.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownPlant
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Catalog request failed")
		return &UpstreamError{Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response shape: %w", err)}
	}
	return nil
}
