// Package shopify provides a minimal Shopify Admin REST client for customer
// lookup and creation.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultAPIVersion = "2024-10"

	// AccessTokenHeader carries the Admin API access token.
	AccessTokenHeader = "X-Shopify-Access-Token"
)

// Client defines the Shopify customer operations.
type Client interface {
	SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
}

// Customer is a Shopify customer record.
type Customer struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Tags      string    `json:"tags"`
	Note      string    `json:"note"`
	CreatedAt string    `json:"created_at"`
	Addresses []Address `json:"addresses,omitempty"`
}

// Address is a customer address.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	Zip         string `json:"zip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// CustomerInput is the payload for creating a customer.
type CustomerInput struct {
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Tags          string    `json:"tags,omitempty"`
	Note          string    `json:"note,omitempty"`
	VerifiedEmail bool      `json:"verified_email"`
	Addresses     []Address `json:"addresses,omitempty"`
}

// APIError is a non-2xx Admin API response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the Shopify client.
type Option func(*httpClient)

// WithBaseURL overrides the shop URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAPIVersion sets the Admin API version segment, e.g. "2024-10".
func WithAPIVersion(v string) Option {
	return func(c *httpClient) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithRateLimit sets a per-second request limit. Shopify's REST bucket leaks
// at 2 requests per second on standard plans.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL     string
	accessToken string
	apiVersion  string
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a Shopify client for shopDomain (e.g. "acme.myshopify.com").
func NewClient(shopDomain, accessToken string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     "https://" + strings.TrimRight(shopDomain, "/"),
		accessToken: accessToken,
		apiVersion:  defaultAPIVersion,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	q := url.Values{}
	q.Set("query", "email:"+email)

	var out struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers/search.json?"+q.Encode(), nil, &out); err != nil {
		return nil, eris.Wrap(err, "shopify: search customers")
	}
	return out.Customers, nil
}

func (c *httpClient) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	payload := struct {
		Customer CustomerInput `json:"customer"`
	}{Customer: in}

	var out struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers.json", payload, &out); err != nil {
		return nil, eris.Wrap(err, "shopify: create customer")
	}
	return &out.Customer, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(buf)
	}

	endpoint := fmt.Sprintf("%s/admin/api/%s%s", c.baseURL, c.apiVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set(AccessTokenHeader, c.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: snippet(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
