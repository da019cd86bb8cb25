package config

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"strings"
	"time"
)

const (
	// SessionStorageInMemory keeps sessions in process memory
	SessionStorageInMemory = "inmem"

	// SessionStoragePostgres keeps sessions in a PostgreSQL database
	SessionStoragePostgres = "postgres"
)

// Config represents the application configuration structure
type Config struct {
	Environment string `default:"dev"`

	ListenAddress    string   `split_words:"true" default:":8080"`
	BaseAddress      string   `split_words:"true" default:"http://localhost:8080"`
	AllowedOrigin    string   `split_words:"true"`
	ProviderName     string   `split_words:"true" default:"Microsoft"`
	IssuerURL        string   `envconfig:"ISSUER_URL"`
	Scopes           []string `default:"User.Read,Mail.Read"`
	ClientID         string   `envconfig:"MICROSOFT_CLIENT_ID" required:"true"`
	ClientSecret     string   `envconfig:"MICROSOFT_CLIENT_SECRET" required:"true"`
	TenantID         string   `envconfig:"MICROSOFT_TENANT_ID" required:"true"`
	MessagesEndpoint string   `split_words:"true" default:"https://graph.microsoft.com/v1.0/me/messages"`

	SessionLifetime time.Duration `split_words:"true" default:"24h"`
	SessionStorage  string        `split_words:"true" default:"inmem"`
	PostgresDSN     string        `envconfig:"POSTGRES_DSN"`
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	// Load a new configuration structure using environment variables
	config := new(Config)
	if err := envconfig.Process("inbox", config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) validate() error {
	switch config.SessionStorage {
	case SessionStorageInMemory:
	case SessionStoragePostgres:
		if config.PostgresDSN == "" {
			return fmt.Errorf("session storage %q requires INBOX_POSTGRES_DSN", config.SessionStorage)
		}
	default:
		return fmt.Errorf("unknown session storage %q", config.SessionStorage)
	}
	if config.SessionLifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive, got %s", config.SessionLifetime)
	}
	config.BaseAddress = strings.TrimSuffix(config.BaseAddress, "/")
	return nil
}

// IsEnvProduction returns whether the application runs in production mode
func (config *Config) IsEnvProduction() bool {
	return strings.EqualFold(config.Environment, "prod")
}

// IsSecure returns whether the application is reachable over HTTPS only, which decides the Secure flag of cookies
func (config *Config) IsSecure() bool {
	return strings.HasPrefix(config.BaseAddress, "https://")
}

// ProviderURL returns the OIDC issuer URL used for metadata discovery.
// Unless overridden it is the Microsoft identity platform v2.0 issuer of the configured tenant.
func (config *Config) ProviderURL() string {
	if config.IssuerURL != "" {
		return strings.TrimSuffix(config.IssuerURL, "/")
	}
	return "https://login.microsoftonline.com/" + config.TenantID + "/v2.0"
}

// RedirectURL returns the OAuth2 callback URL registered at the identity provider
func (config *Config) RedirectURL() string {
	return config.BaseAddress + "/auth"
}

// CORSOrigin returns the origin allowed to call the JSON endpoints from a browser
func (config *Config) CORSOrigin() string {
	if config.AllowedOrigin != "" {
		return config.AllowedOrigin
	}
	return config.BaseAddress
}
