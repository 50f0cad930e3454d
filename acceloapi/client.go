package acceloapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// APIPath is the versioned prefix of every endpoint.
	APIPath = "/api/v0/"
	// DefaultPageSize is the largest page the API returns.
	DefaultPageSize = 100
	// DefaultMaxPages bounds a single query to DefaultMaxPages*PageSize rows.
	DefaultMaxPages = 100
)

// Client fetches collections from the API. It holds no cache.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	pageSize int
	maxPages int
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, typically one carrying OAuth
// credentials. Defaults to a client with a 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPageSize sets the `_limit` sent with every page.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// WithMaxPages sets how many pages a query may span before it fails.
func WithMaxPages(n int) Option {
	return func(c *Client) { c.maxPages = n }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the deployment at baseURL, for example
// https://example.api.accelo.com.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	err := validation.Errors{
		"baseURL":  validation.Validate(baseURL, validation.Required, is.URL),
		"pageSize": validation.Validate(c.pageSize, validation.Required, validation.Min(1)),
		"maxPages": validation.Validate(c.maxPages, validation.Required, validation.Min(1)),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("acceloapi: invalid client options: %w", err)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("acceloapi: parse base url: %w", err)
	}
	c.baseURL = u
	return c, nil
}

// FetchAll runs the query described by key and returns every row, decoded
// as *RowType, across all pages.
func (c *Client) FetchAll(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	if key.IsZero() {
		return nil, cache.ErrInvalidKey
	}

	var all []cache.Entity
	for page := 0; ; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("%w: %s exceeded %d pages", ErrTooManyPages, key.Collection(), c.maxPages)
		}

		rows, err := c.fetchPage(ctx, key, page)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)

		if len(rows) < c.pageSize {
			return all, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, key cache.QueryKey, page int) ([]cache.Entity, error) {
	endpoint := c.endpoint(key, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("acceloapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acceloapi: execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("acceloapi: read response: %w", err)
	}

	c.logger.Debug("accelo request",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	return decodePage(endpoint, resp.StatusCode, body, key.RowType())
}

func (c *Client) endpoint(key cache.QueryKey, page int) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + APIPath + strings.Trim(key.Collection(), "/")

	q := url.Values{}
	if f := key.Filter().String(); f != "" {
		q.Set("_filters", f)
	}
	if fields := key.Fields(); fields.IsAll() {
		q.Set("_fields", cache.AllFieldsToken)
	} else if s := fields.String(); s != "" {
		q.Set("_fields", s)
	}
	q.Set("_limit", strconv.Itoa(c.pageSize))
	q.Set("_page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String()
}

// decodePage validates the envelope and decodes response into rowType rows.
func decodePage(endpoint string, statusCode int, body []byte, rowType reflect.Type) ([]cache.Entity, error) {
	if !gjson.ValidBytes(body) {
		if statusCode < 200 || statusCode > 299 {
			return nil, &APIError{StatusCode: statusCode, URL: endpoint, Message: http.StatusText(statusCode)}
		}
		return nil, fmt.Errorf("acceloapi: invalid JSON from %s", endpoint)
	}

	doc := gjson.ParseBytes(body)
	meta := doc.Get("meta")
	status := meta.Get("status").String()

	if statusCode < 200 || statusCode > 299 || (meta.Exists() && status != "ok") {
		return nil, &APIError{
			StatusCode: statusCode,
			Status:     status,
			Message:    meta.Get("message").String(),
			MoreInfo:   meta.Get("more_info").String(),
			URL:        endpoint,
		}
	}

	response := doc.Get("response")
	if !response.Exists() || response.Type == gjson.Null {
		return nil, nil
	}
	if !response.IsArray() {
		// single object endpoints
		row, err := decodeRow(response, rowType)
		if err != nil {
			return nil, fmt.Errorf("acceloapi: decode %s: %w", endpoint, err)
		}
		return []cache.Entity{row}, nil
	}

	items := response.Array()
	rows := make([]cache.Entity, 0, len(items))
	for i, item := range items {
		row, err := decodeRow(item, rowType)
		if err != nil {
			return nil, fmt.Errorf("acceloapi: decode %s row %d: %w", endpoint, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(item gjson.Result, rowType reflect.Type) (cache.Entity, error) {
	ptr := reflect.New(rowType)
	if err := json.Unmarshal([]byte(item.Raw), ptr.Interface()); err != nil {
		return nil, err
	}
	entity, ok := ptr.Interface().(cache.Entity)
	if !ok {
		return nil, fmt.Errorf("%s does not implement cache.Entity", ptr.Type())
	}
	return entity, nil
}
