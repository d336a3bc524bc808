// Package registration creates customer accounts in the commerce platform,
// reusing an existing account when the email is already registered.
package registration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vat-gateway/internal/country"
	"github.com/sells-group/vat-gateway/internal/resilience"
	"github.com/sells-group/vat-gateway/internal/vat"
	"github.com/sells-group/vat-gateway/pkg/shopify"
)

// ErrInvalidRequest is matched by every input validation failure.
var ErrInvalidRequest = eris.New("invalid_request")

// ValidationError describes one rejected input field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "registration: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PlatformError is a commerce platform failure during registration.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("registration: %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// EmailCheck is the answer to an email existence precheck. Checked is false
// when the platform could not be asked in time; Exists is then false too.
type EmailCheck struct {
	Exists  bool `json:"exists"`
	Checked bool `json:"checked"`
}

// Request is a customer registration.
type Request struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	VATNumber string `json:"vat_number"`
	Address1  string `json:"address1"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// Outcome reports the account a registration resolved to.
type Outcome struct {
	Customer *shopify.Customer
	Created  bool
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	emailTimeout time.Duration
	retry        resilience.RetryConfig
	breaker      resilience.CircuitBreakerConfig
}

// WithEmailCheckTimeout bounds EmailExists. Default: 5s.
func WithEmailCheckTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		if d > 0 {
			o.emailTimeout = d
		}
	}
}

// WithRetry sets the retry policy for platform reads.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *serviceOptions) {
		o.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker guarding every platform call.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *serviceOptions) {
		o.breaker = cfg
	}
}

// Service registers customers.
type Service struct {
	directory    shopify.Client
	countries    *country.Resolver
	emailTimeout time.Duration
}

// NewService creates a registration service over client.
func NewService(client shopify.Client, countries *country.Resolver, opts ...Option) *Service {
	o := serviceOptions{
		emailTimeout: 5 * time.Second,
		retry:        resilience.DefaultRetryConfig(),
		breaker:      resilience.DefaultCircuitBreakerConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		directory:    newGuardedDirectory(client, o.retry, o.breaker),
		countries:    countries,
		emailTimeout: o.emailTimeout,
	}
}

// EmailExists reports whether a customer with email is registered. Platform
// failures and timeouts degrade to {Exists: false, Checked: false}; only a
// malformed address is an error.
func (s *Service) EmailExists(ctx context.Context, email string) (EmailCheck, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return EmailCheck{}, err
	}

	customers, err := resilience.Bounded(ctx, s.emailTimeout, func(ctx context.Context) ([]shopify.Customer, error) {
		return s.directory.SearchCustomersByEmail(ctx, email)
	})
	if err != nil {
		zap.L().Warn("registration: email check degraded",
			zap.Duration("timeout", s.emailTimeout),
			zap.Error(err),
		)
		return EmailCheck{}, nil
	}
	return EmailCheck{Exists: findByEmail(customers, email) != nil, Checked: true}, nil
}

// Register returns the existing customer for req.Email or creates one tagged
// with the VAT number. Input problems are *ValidationError; platform
// failures are *PlatformError.
func (s *Service) Register(ctx context.Context, req Request) (*Outcome, error) {
	req = trimRequest(req)

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.FirstName == "" && req.LastName == "" {
		return nil, invalid("first_name or last_name is required")
	}

	var vatID string
	if req.VATNumber != "" {
		id, err := vat.Normalize(req.VATNumber)
		if err != nil {
			return nil, invalid("vat_number %q is not a VAT identifier", req.VATNumber)
		}
		vatID = id.String()
	}

	log := zap.L().With(zap.String("vat_number", vatID))

	existing, err := s.directory.SearchCustomersByEmail(ctx, email)
	if err != nil {
		return nil, &PlatformError{Op: "search customers", Err: err}
	}
	if c := findByEmail(existing, email); c != nil {
		log.Info("registration: customer already exists", zap.Int64("customer_id", c.ID))
		return &Outcome{Customer: c, Created: false}, nil
	}

	in := s.customerInput(req, email, vatID)
	created, err := s.directory.CreateCustomer(ctx, in)
	if err != nil {
		if isEmailTaken(err) {
			// Registered concurrently; return that account.
			if again, serr := s.directory.SearchCustomersByEmail(ctx, email); serr == nil {
				if c := findByEmail(again, email); c != nil {
					return &Outcome{Customer: c, Created: false}, nil
				}
			}
		}
		return nil, &PlatformError{Op: "create customer", Err: err}
	}

	log.Info("registration: customer created",
		zap.Int64("customer_id", created.ID),
		zap.String("country", in.Addresses[0].CountryCode),
	)
	return &Outcome{Customer: created, Created: true}, nil
}

func (s *Service) customerInput(req Request, email, vatID string) shopify.CustomerInput {
	code := country.DefaultCode
	if s.countries != nil {
		code = s.countries.Resolve(req.Country)
	}

	in := shopify.CustomerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Phone:     req.Phone,
		Addresses: []shopify.Address{{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Company:     req.Company,
			Address1:    req.Address1,
			City:        req.City,
			Zip:         req.Zip,
			CountryCode: code,
			Phone:       req.Phone,
			Default:     true,
		}},
	}
	if vatID != "" {
		in.Tags = "vat:" + vatID
		in.Note = "VAT number: " + vatID
	}
	return in
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email %q is not a valid address", email)
	}
	return email, nil
}

func findByEmail(customers []shopify.Customer, email string) *shopify.Customer {
	for i := range customers {
		if strings.EqualFold(customers[i].Email, email) {
			return &customers[i]
		}
	}
	return nil
}

func isEmailTaken(err error) bool {
	var apiErr *shopify.APIError
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(apiErr.Body, "taken")
}

func trimRequest(r Request) Request {
	return Request{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Phone:     strings.TrimSpace(r.Phone),
		Company:   strings.TrimSpace(r.Company),
		VATNumber: strings.TrimSpace(r.VATNumber),
		Address1:  strings.TrimSpace(r.Address1),
		City:      strings.TrimSpace(r.City),
		Zip:       strings.TrimSpace(r.Zip),
		Country:   strings.TrimSpace(r.Country),
	}
}
