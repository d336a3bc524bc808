package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vat-gateway/internal/api"
	"github.com/sells-group/vat-gateway/internal/config"
	"github.com/sells-group/vat-gateway/internal/country"
	"github.com/sells-group/vat-gateway/internal/registration"
	"github.com/sells-group/vat-gateway/internal/resilience"
	"github.com/sells-group/vat-gateway/internal/vat"
	"github.com/sells-group/vat-gateway/pkg/shopify"
	"github.com/sells-group/vat-gateway/pkg/vatapi"
	"github.com/sells-group/vat-gateway/pkg/vies"
)

// gateway holds the wired components shared by the commands.
type gateway struct {
	verifier  *vat.Orchestrator
	registrar *registration.Service
	registry  *prometheus.Registry
}

// buildGateway wires clients and services from c. The registrar is nil when
// registration is disabled.
func buildGateway(c *config.Config) (*gateway, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	g := &gateway{
		verifier: buildVerifier(c, reg),
		registry: reg,
	}

	if c.Registration.Enabled {
		r, err := buildRegistrar(c)
		if err != nil {
			return nil, err
		}
		g.registrar = r
	}
	return g, nil
}

func buildVerifier(c *config.Config, reg prometheus.Registerer) *vat.Orchestrator {
	primary := vat.NewPrimary(vies.NewClient(
		vies.WithWSDLURL(c.VIES.WSDLURL),
		vies.WithHTTPClient(&http.Client{Timeout: seconds(c.VIES.HTTPTimeoutSecs, 30)}),
	))

	var secondary vat.Provider
	if c.Secondary.Key != "" {
		secondary = vat.NewSecondary(vatapi.NewClient(c.Secondary.Key,
			vatapi.WithBaseURL(c.Secondary.BaseURL),
			vatapi.WithLegacyBaseURL(c.Secondary.LegacyBaseURL),
		))
	} else {
		zap.L().Warn("secondary VAT provider disabled: VATGW_SECONDARY_KEY not set")
	}

	return vat.NewOrchestrator(primary, secondary, vat.PolicyFromConfig(c.VAT),
		vat.WithMetrics(vat.NewMetrics(reg)),
	)
}

func buildRegistrar(c *config.Config) (*registration.Service, error) {
	var aliases map[string]string
	if path := c.Registration.CountryAliasesFile; path != "" {
		a, err := country.LoadAliases(path)
		if err != nil {
			return nil, err
		}
		aliases = a
	}
	countries, err := country.NewResolver(c.Registration.DefaultCountry, aliases)
	if err != nil {
		return nil, eris.Wrap(err, "build country resolver")
	}

	client := shopify.NewClient(c.Shopify.Domain, c.Shopify.AccessToken,
		shopify.WithAPIVersion(c.Shopify.APIVersion),
		shopify.WithRateLimit(c.Shopify.RateLimit),
	)

	return registration.NewService(client, countries,
		registration.WithEmailCheckTimeout(c.Registration.EmailCheckTimeout()),
		registration.WithRetry(resilience.FromRetryConfig(
			c.Shopify.RetryMaxAttempts,
			c.Shopify.RetryInitialBackoffMs,
			c.Shopify.RetryMaxBackoffMs,
		)),
		registration.WithCircuitBreaker(resilience.FromCircuitConfig("shopify",
			c.Shopify.CircuitFailureThreshold,
			c.Shopify.CircuitResetSecs,
		)),
	), nil
}

func (g *gateway) router(c *config.Config) http.Handler {
	deps := api.Deps{
		Verifier:       g.verifier,
		Gatherer:       g.registry,
		AllowedOrigins: c.Server.AllowedOrigins,
	}
	if g.registrar != nil {
		deps.Registrar = g.registrar
	}
	return api.NewRouter(deps)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
