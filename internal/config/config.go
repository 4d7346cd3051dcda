// Package config defines the global configuration structure for the AirSight
// service. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, optionally seeded from a .env file in development.
//
// A missing required value or invalid format causes startup to fail
// immediately. The Azure credential block is deliberately NOT required:
// its absence is a valid configuration state that selects the local-only
// forecast path.
package config

import (
	"time"

	"airsight/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the AirSight service.
// It is populated once during process initialization and never modified.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"airsight-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Azure    AzureConfig
	Forecast ForecastConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"45s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AzureConfig holds the credentials and workspace identifiers for the hosted
// Azure ML model endpoints. All fields are optional: when the credential
// triple (tenant, client, secret) is incomplete the remote path is disabled
// and every forecast is produced by the local simulator.
type AzureConfig struct {
	TenantID       string       `envconfig:"AZURE_TENANT_ID"`
	ClientID       string       `envconfig:"AZURE_CLIENT_ID"`
	ClientSecret   SecretString `envconfig:"AZURE_CLIENT_SECRET"`
	SubscriptionID string       `envconfig:"AZURE_SUBSCRIPTION_ID"`
	ResourceGroup  string       `envconfig:"AZURE_RESOURCE_GROUP" default:"airsight-rg"`
	Workspace      string       `envconfig:"AZURE_ML_WORKSPACE" default:"airsight-ml"`

	// Override URLs for testing. Empty in production.
	TokenURL    string `envconfig:"AZURE_TOKEN_URL"`
	EndpointURL string `envconfig:"AZURE_ML_ENDPOINT_URL"`

	InvokeTimeout time.Duration `envconfig:"AZURE_ML_INVOKE_TIMEOUT" default:"30s"`
}

// Configured reports whether the credential triple needed for the remote
// model path is present.
func (a AzureConfig) Configured() bool {
	return a.TenantID != "" && a.ClientID != "" && a.ClientSecret.IsSet()
}

// ForecastConfig holds tuning parameters for the forecast engine.
type ForecastConfig struct {
	CacheTTL            time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"20m"`
	MaxHorizonHours     int           `envconfig:"FORECAST_MAX_HORIZON_HOURS" default:"72" validate:"min=1,max=168"`
	DefaultHorizonHours int           `envconfig:"FORECAST_DEFAULT_HORIZON_HOURS" default:"24" validate:"min=1"`
	BatchMaxLocations   int           `envconfig:"FORECAST_BATCH_MAX_LOCATIONS" default:"20" validate:"min=1,max=100"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable
	// values into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)
