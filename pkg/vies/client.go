// Package vies provides a client for the EU VIES VAT number validation SOAP service.
package vies

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultWSDLURL is the public VIES service description.
const DefaultWSDLURL = "https://ec.europa.eu/taxation_customs/vies/checkVatService.wsdl"

const maxBodyBytes = 1 << 20

// Client defines the VIES operations.
type Client interface {
	// CheckVAT fetches the service description, then calls checkVat for the
	// given country code and number. Both steps run under ctx.
	CheckVAT(ctx context.Context, countryCode, vatNumber string) (*CheckResult, error)
}

// CheckResult is the parsed checkVat answer. Name and Address are empty
// when the member state does not disclose them.
type CheckResult struct {
	CountryCode string
	VATNumber   string
	RequestDate string
	Valid       bool
	Name        string
	Address     string
}

// Fault is a SOAP fault returned by the service, e.g. MS_UNAVAILABLE.
type Fault struct {
	Code   string
	String string
	Detail string
}

func (f *Fault) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("vies: soap fault %s: %s (%s)", f.Code, f.String, f.Detail)
	}
	return fmt.Sprintf("vies: soap fault %s: %s", f.Code, f.String)
}

// StatusError is returned when the service answers with a non-success HTTP
// status and no SOAP fault.
type StatusError struct {
	Step       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vies: %s: unexpected status %d: %s", e.Step, e.StatusCode, e.Body)
}

// Option configures the VIES client.
type Option func(*httpClient)

// WithWSDLURL sets the service description URL (for testing or mirrors).
func WithWSDLURL(u string) Option {
	return func(c *httpClient) {
		c.wsdlURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	wsdlURL string
	http    *http.Client
}

// NewClient creates a new VIES client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		wsdlURL: DefaultWSDLURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CheckVAT(ctx context.Context, countryCode, vatNumber string) (*CheckResult, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(checkVatRequest(countryCode, vatNumber)))
	if err != nil {
		return nil, eris.Wrap(err, "vies: create request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vies: checkVat request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "vies: read response body")
	}

	var env responseEnvelope
	decodeErr := decodeXML(body, &env)

	// Faults arrive with HTTP 500, so look for one before judging the status.
	if decodeErr == nil && env.Body.Fault != nil {
		return nil, env.Body.Fault.toFault()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Step: "checkVat", StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	if decodeErr != nil {
		return nil, eris.Wrap(decodeErr, "vies: malformed checkVat response")
	}
	if env.Body.Response == nil {
		return nil, eris.New("vies: malformed checkVat response: missing checkVatResponse")
	}

	r := env.Body.Response
	return &CheckResult{
		CountryCode: r.CountryCode,
		VATNumber:   r.VATNumber,
		RequestDate: r.RequestDate,
		Valid:       r.Valid,
		Name:        disclosed(r.Name),
		Address:     disclosed(r.Address),
	}, nil
}

// endpoint fetches the service description and returns the SOAP address it
// advertises.
func (c *httpClient) endpoint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.wsdlURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "vies: create wsdl request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "vies: fetch wsdl")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "vies: read wsdl")
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Step: "wsdl", StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var defs wsdlDefinitions
	if err := decodeXML(body, &defs); err != nil {
		return "", eris.Wrap(err, "vies: malformed wsdl")
	}
	for _, svc := range defs.Services {
		for _, port := range svc.Ports {
			if loc := strings.TrimSpace(port.Address.Location); loc != "" {
				return loc, nil
			}
		}
	}
	return "", eris.New("vies: malformed wsdl: no soap address")
}

func decodeXML(body []byte, v any) error {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "vies: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder.Decode(v)
}

// disclosed maps the "---" placeholder VIES uses for withheld data to "".
func disclosed(s string) string {
	s = strings.TrimSpace(s)
	if s == "---" {
		return ""
	}
	return s
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
