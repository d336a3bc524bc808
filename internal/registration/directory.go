package registration

import (
	"context"
	"errors"

	"github.com/sells-group/vat-gateway/internal/resilience"
	"github.com/sells-group/vat-gateway/pkg/shopify"
)

// guardedDirectory wraps a shopify.Client with a shared circuit breaker.
// Searches are also retried; creates are not, since they are not idempotent.
type guardedDirectory struct {
	next    shopify.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func newGuardedDirectory(next shopify.Client, retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) *guardedDirectory {
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = isTransient
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("shopify", "search_customers")
	}
	if breaker.ShouldTrip == nil {
		breaker.ShouldTrip = isTransient
	}
	if breaker.Name == "" {
		breaker.Name = "shopify"
	}
	return &guardedDirectory{
		next:    next,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breaker),
	}
}

func (g *guardedDirectory) SearchCustomersByEmail(ctx context.Context, email string) ([]shopify.Customer, error) {
	return resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]shopify.Customer, error) {
		return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]shopify.Customer, error) {
			return g.next.SearchCustomersByEmail(ctx, email)
		})
	})
}

func (g *guardedDirectory) CreateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error) {
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*shopify.Customer, error) {
		return g.next.CreateCustomer(ctx, in)
	})
}

// isTransient extends resilience.IsTransient with Shopify's 429 and 5xx
// answers.
func isTransient(err error) bool {
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
