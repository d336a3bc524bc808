package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	VAT          VATConfig          `yaml:"vat" mapstructure:"vat"`
	VIES         VIESConfig         `yaml:"vies" mapstructure:"vies"`
	Secondary    SecondaryConfig    `yaml:"secondary" mapstructure:"secondary"`
	Shopify      ShopifyConfig      `yaml:"shopify" mapstructure:"shopify"`
	Registration RegistrationConfig `yaml:"registration" mapstructure:"registration"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Failure modes for a verification that no provider could answer.
const (
	FailOpen   = "open"
	FailClosed = "closed"
)

// VATConfig configures the verification time budget and caps.
type VATConfig struct {
	BudgetMs       int    `yaml:"budget_ms" mapstructure:"budget_ms"`
	PrimaryCapMs   int    `yaml:"primary_cap_ms" mapstructure:"primary_cap_ms"`
	RetryCapMs     int    `yaml:"retry_cap_ms" mapstructure:"retry_cap_ms"`
	SecondaryCapMs int    `yaml:"secondary_cap_ms" mapstructure:"secondary_cap_ms"`
	FailureMode    string `yaml:"failure_mode" mapstructure:"failure_mode"`
}

// VIESConfig holds the EU VIES SOAP service settings.
type VIESConfig struct {
	WSDLURL         string `yaml:"wsdl_url" mapstructure:"wsdl_url"`
	HTTPTimeoutSecs int    `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
}

// SecondaryConfig holds the commercial VAT API settings. An empty Key
// disables the fallback provider.
type SecondaryConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	LegacyBaseURL string `yaml:"legacy_base_url" mapstructure:"legacy_base_url"`
}

// ShopifyConfig holds commerce platform credentials and client tuning.
type ShopifyConfig struct {
	Domain                  string  `yaml:"domain" mapstructure:"domain"`
	AccessToken             string  `yaml:"access_token" mapstructure:"access_token"`
	APIVersion              string  `yaml:"api_version" mapstructure:"api_version"`
	RateLimit               float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// RegistrationConfig configures customer registration.
type RegistrationConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	EmailCheckTimeoutMs int    `yaml:"email_check_timeout_ms" mapstructure:"email_check_timeout_ms"`
	DefaultCountry      string `yaml:"default_country" mapstructure:"default_country"`
	CountryAliasesFile  string `yaml:"country_aliases_file" mapstructure:"country_aliases_file"`
}

// Budget returns the overall verification deadline length.
func (c VATConfig) Budget() time.Duration { return ms(c.BudgetMs) }

// PrimaryCap returns the first primary attempt cap.
func (c VATConfig) PrimaryCap() time.Duration { return ms(c.PrimaryCapMs) }

// RetryCap returns the primary retry cap.
func (c VATConfig) RetryCap() time.Duration { return ms(c.RetryCapMs) }

// SecondaryCap returns the secondary attempt cap.
func (c VATConfig) SecondaryCap() time.Duration { return ms(c.SecondaryCapMs) }

// EmailCheckTimeout returns the bound on the email existence precheck.
func (c RegistrationConfig) EmailCheckTimeout() time.Duration { return ms(c.EmailCheckTimeoutMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VATGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so env overrides are picked up by
	// Unmarshal; they are never given a usable value here.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("vat.budget_ms", 20000)
	v.SetDefault("vat.primary_cap_ms", 8000)
	v.SetDefault("vat.retry_cap_ms", 6000)
	v.SetDefault("vat.secondary_cap_ms", 8000)
	v.SetDefault("vat.failure_mode", FailOpen)
	v.SetDefault("vies.wsdl_url", "https://ec.europa.eu/taxation_customs/vies/checkVatService.wsdl")
	v.SetDefault("vies.http_timeout_secs", 30)
	v.SetDefault("secondary.key", "")
	v.SetDefault("secondary.base_url", "https://vat.abstractapi.com/v2")
	v.SetDefault("secondary.legacy_base_url", "https://vat.abstractapi.com/v1")
	v.SetDefault("shopify.domain", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.rate_limit", 2.0)
	v.SetDefault("shopify.retry_max_attempts", 3)
	v.SetDefault("shopify.retry_initial_backoff_ms", 200)
	v.SetDefault("shopify.retry_max_backoff_ms", 2000)
	v.SetDefault("shopify.circuit_failure_threshold", 5)
	v.SetDefault("shopify.circuit_reset_secs", 30)
	v.SetDefault("registration.enabled", true)
	v.SetDefault("registration.email_check_timeout_ms", 5000)
	v.SetDefault("registration.default_country", "DE")
	v.SetDefault("registration.country_aliases_file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that settings are usable and that every secret a mandatory
// feature depends on is present.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return eris.Errorf("config: server.port must be positive, got %d", c.Server.Port)
	}

	switch c.VAT.FailureMode {
	case FailOpen, FailClosed:
	default:
		return eris.Errorf("config: vat.failure_mode must be %q or %q, got %q", FailOpen, FailClosed, c.VAT.FailureMode)
	}
	for name, v := range map[string]int{
		"vat.budget_ms":        c.VAT.BudgetMs,
		"vat.primary_cap_ms":   c.VAT.PrimaryCapMs,
		"vat.retry_cap_ms":     c.VAT.RetryCapMs,
		"vat.secondary_cap_ms": c.VAT.SecondaryCapMs,
	} {
		if v <= 0 {
			return eris.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if c.VIES.WSDLURL == "" {
		return eris.New("config: vies.wsdl_url is required")
	}

	if c.Registration.Enabled {
		var missing []string
		if c.Shopify.Domain == "" {
			missing = append(missing, "VATGW_SHOPIFY_DOMAIN")
		}
		if c.Shopify.AccessToken == "" {
			missing = append(missing, "VATGW_SHOPIFY_ACCESS_TOKEN")
		}
		if len(missing) > 0 {
			return eris.Errorf("config: registration enabled but %s not set", strings.Join(missing, ", "))
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
