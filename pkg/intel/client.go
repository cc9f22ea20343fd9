// Package intel wraps the supplier-intelligence API: portfolio summaries,
// supplier listings, recent risk changes, and category report metadata.
// Outbound calls share a rate limiter so bursts of chat traffic cannot
// exhaust the upstream quota.
package intel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/beroe-labs/abi/internal/model"
)

const defaultBaseURL = "https://intel.beroe.example/api/v2"

// Client reads from the supplier-intelligence source.
type Client interface {
	Portfolio(ctx context.Context) (*model.Portfolio, error)
	Suppliers(ctx context.Context) ([]model.Supplier, error)
	RiskChanges(ctx context.Context, since time.Duration) ([]model.RiskChange, error)
	CategoryReport(ctx context.Context, category string) (*CategoryReport, error)
}

// CategoryReport is the report metadata for one managed category.
type CategoryReport struct {
	CategoryID string    `json:"categoryId"`
	Name       string    `json:"name"`
	Summary    string    `json:"summary"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default outbound limiter.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a supplier-intelligence client. The default limiter
// allows 10 req/s with a burst of 10, matching the upstream quota.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Portfolio(ctx context.Context) (*model.Portfolio, error) {
	var out model.Portfolio
	if err := c.get(ctx, "/portfolio", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Suppliers(ctx context.Context) ([]model.Supplier, error) {
	var out struct {
		Suppliers []model.Supplier `json:"suppliers"`
	}
	if err := c.get(ctx, "/suppliers", nil, &out); err != nil {
		return nil, err
	}
	return out.Suppliers, nil
}

func (c *httpClient) RiskChanges(ctx context.Context, since time.Duration) ([]model.RiskChange, error) {
	q := url.Values{"since": {since.String()}}
	var out struct {
		Changes []model.RiskChange `json:"changes"`
	}
	if err := c.get(ctx, "/risk-changes", q, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}

func (c *httpClient) CategoryReport(ctx context.Context, category string) (*CategoryReport, error) {
	q := url.Values{"category": {category}}
	var out CategoryReport
	if err := c.get(ctx, "/category-report", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "intel: rate limit wait")
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "intel: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "intel: get %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "intel: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("intel: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "intel: unmarshal %s", path)
	}
	return nil
}
