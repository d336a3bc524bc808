package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vat-gateway/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}, ShutdownTimeoutSecs: 10},
		Log:    config.LogConfig{Level: "info", Format: "json"},
		VAT: config.VATConfig{
			BudgetMs:       20000,
			PrimaryCapMs:   8000,
			RetryCapMs:     6000,
			SecondaryCapMs: 8000,
			FailureMode:    config.FailOpen,
		},
		VIES:      config.VIESConfig{WSDLURL: "http://127.0.0.1:1/wsdl", HTTPTimeoutSecs: 5},
		Secondary: config.SecondaryConfig{BaseURL: "http://127.0.0.1:1/v2", LegacyBaseURL: "http://127.0.0.1:1/v1"},
		Shopify: config.ShopifyConfig{
			Domain:                  "acme.myshopify.com",
			AccessToken:             "shpat_test",
			APIVersion:              "2024-10",
			RateLimit:               2,
			RetryMaxAttempts:        3,
			RetryInitialBackoffMs:   200,
			RetryMaxBackoffMs:       2000,
			CircuitFailureThreshold: 5,
			CircuitResetSecs:        30,
		},
		Registration: config.RegistrationConfig{
			Enabled:             true,
			EmailCheckTimeoutMs: 5000,
			DefaultCountry:      "DE",
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBuildGateway_RegistrationEnabled(t *testing.T) {
	c := testConfig()

	g, err := buildGateway(c)
	require.NoError(t, err)
	require.NotNil(t, g.verifier)
	require.NotNil(t, g.registrar)

	h := g.router(c)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-email", nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestBuildGateway_RegistrationDisabled(t *testing.T) {
	c := testConfig()
	c.Registration.Enabled = false

	g, err := buildGateway(c)
	require.NoError(t, err)
	assert.Nil(t, g.registrar)

	rec := httptest.NewRecorder()
	g.router(c).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-email", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildGateway_ExposesMetrics(t *testing.T) {
	c := testConfig()
	g, err := buildGateway(c)
	require.NoError(t, err)

	rec := get(t, g.router(c), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildGateway_CountryAliasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Deutschland: DE\n"), 0o600))

	c := testConfig()
	c.Registration.CountryAliasesFile = path

	g, err := buildGateway(c)
	require.NoError(t, err)
	assert.NotNil(t, g.registrar)
}

func TestBuildGateway_MissingAliasesFile(t *testing.T) {
	c := testConfig()
	c.Registration.CountryAliasesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := buildGateway(c)
	assert.Error(t, err)
}

func TestBuildGateway_InvalidDefaultCountry(t *testing.T) {
	c := testConfig()
	c.Registration.DefaultCountry = "not-a-country"

	_, err := buildGateway(c)
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	c := testConfig()

	srv := newServer(9090, http.NotFoundHandler(), c)

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Greater(t, srv.WriteTimeout, c.VAT.Budget())
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 3*time.Second, seconds(3, 10))
	assert.Equal(t, 10*time.Second, seconds(0, 10))
	assert.Equal(t, 10*time.Second, seconds(-1, 10))
}
