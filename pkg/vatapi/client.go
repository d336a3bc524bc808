// Package vatapi provides a client for a commercial VAT validation API that
// exposes a current (header-authenticated) and a legacy (query-authenticated)
// endpoint.
package vatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL       = "https://vat.abstractapi.com/v2"
	defaultLegacyBaseURL = "https://vat.abstractapi.com/v1"

	// APIKeyHeader carries the credential on the current endpoint.
	APIKeyHeader = "X-Api-Key"
)

// ErrUnavailable is returned when no endpoint produced a usable answer or no
// API key is configured.
var ErrUnavailable = eris.New("secondary_unavailable")

// Endpoint names which API generation answered.
type Endpoint string

const (
	EndpointCurrent Endpoint = "current"
	EndpointLegacy  Endpoint = "legacy"
)

// Client defines the VAT API operations.
type Client interface {
	// Validate checks a full VAT identifier (country prefix included). The
	// current endpoint is tried first, then the legacy one, each once.
	Validate(ctx context.Context, vatNumber string) (*Validation, error)
}

// Validation is the normalized answer from whichever endpoint responded.
type Validation struct {
	VATNumber      string
	Valid          bool
	CompanyName    string
	CompanyAddress string
	Endpoint       Endpoint
}

// StatusError is returned for a non-2xx answer from one endpoint.
type StatusError struct {
	Endpoint   Endpoint
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vatapi: %s endpoint: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Option configures the VAT API client.
type Option func(*httpClient)

// WithBaseURL sets the current endpoint base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLegacyBaseURL sets the legacy endpoint base URL.
func WithLegacyBaseURL(u string) Option {
	return func(c *httpClient) {
		c.legacyBaseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	legacyBaseURL string
	http          *http.Client
}

// NewClient creates a new VAT API client. An empty apiKey yields a client
// whose Validate always fails with ErrUnavailable.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		legacyBaseURL: defaultLegacyBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response covers the field variants of both API generations.
type response struct {
	VATNumber        string `json:"vat_number"`
	Valid            *bool  `json:"valid"`
	ValidationStatus string `json:"validation_status"`
	FormatValid      *bool  `json:"format_valid"`
	Company          *struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"company"`
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
}

func (r *response) valid() bool {
	if r.Valid != nil && *r.Valid {
		return true
	}
	if strings.EqualFold(r.ValidationStatus, "valid") {
		return true
	}
	return r.FormatValid != nil && *r.FormatValid
}

func (c *httpClient) Validate(ctx context.Context, vatNumber string) (*Validation, error) {
	if c.apiKey == "" {
		return nil, eris.Wrap(ErrUnavailable, "vatapi: no api key configured")
	}

	v, currentErr := c.call(ctx, EndpointCurrent, vatNumber)
	if currentErr == nil {
		return v, nil
	}

	v, legacyErr := c.call(ctx, EndpointLegacy, vatNumber)
	if legacyErr == nil {
		return v, nil
	}

	return nil, eris.Wrapf(ErrUnavailable, "vatapi: current: %v; legacy: %v", currentErr, legacyErr)
}

func (c *httpClient) call(ctx context.Context, ep Endpoint, vatNumber string) (*Validation, error) {
	req, err := c.newRequest(ctx, ep, vatNumber)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "vatapi: %s request failed", ep)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrapf(err, "vatapi: %s read body", ep)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: ep, StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, eris.Wrapf(err, "vatapi: %s decode response", ep)
	}

	out := &Validation{
		VATNumber:      r.VATNumber,
		Valid:          r.valid(),
		CompanyName:    strings.TrimSpace(r.CompanyName),
		CompanyAddress: strings.TrimSpace(r.CompanyAddress),
		Endpoint:       ep,
	}
	if r.Company != nil {
		if out.CompanyName == "" {
			out.CompanyName = strings.TrimSpace(r.Company.Name)
		}
		if out.CompanyAddress == "" {
			out.CompanyAddress = strings.TrimSpace(r.Company.Address)
		}
	}
	return out, nil
}

func (c *httpClient) newRequest(ctx context.Context, ep Endpoint, vatNumber string) (*http.Request, error) {
	q := url.Values{}
	q.Set("vat_number", vatNumber)

	var target string
	switch ep {
	case EndpointLegacy:
		q.Set("api_key", c.apiKey)
		target = c.legacyBaseURL + "/validate/?" + q.Encode()
	default:
		target = c.baseURL + "/validate?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "vatapi: create %s request", ep)
	}
	req.Header.Set("Accept", "application/json")
	if ep == EndpointCurrent {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
