package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// State backend constants
const (
	StateBackendPostgres = "postgres"
	StateBackendRedis    = "redis"
	StateBackendMemory   = "memory"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Port    int    `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
}

// AuthConfig guards the connection API. Callers are trusted backends that
// present the shared key and name the user they act for.
type AuthConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OAuthConfig holds settings shared by every provider flow. Timings are
// configured as whole seconds; applyDefaults fills the Duration fields.
type OAuthConfig struct {
	StateBackend         string `mapstructure:"state_backend"` // "postgres", "redis" or "memory"
	StateTTLSeconds      int    `mapstructure:"state_ttl"`
	RefreshBufferSeconds int    `mapstructure:"refresh_buffer"`
	HTTPTimeoutSeconds   int    `mapstructure:"http_timeout"`

	StateTTL      time.Duration `mapstructure:"-"`
	RefreshBuffer time.Duration `mapstructure:"-"`
	HTTPTimeout   time.Duration `mapstructure:"-"`
}

type ProvidersConfig struct {
	Twitter  ProviderConfig `mapstructure:"twitter"`
	LinkedIn ProviderConfig `mapstructure:"linkedin"`
}

// ProviderConfig stores OAuth2 client credentials and endpoints for one provider
type ProviderConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
	AuthorizeURL string   `mapstructure:"authorize_url"`
	TokenURL     string   `mapstructure:"token_url"`
	IdentityURL  string   `mapstructure:"identity_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func NewConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Enable environment variable override
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults converts second-based settings and fills unset values.
func (c *Config) applyDefaults() {
	c.OAuth.StateTTL = secondsOr(c.OAuth.StateTTLSeconds, 10*time.Minute)
	c.OAuth.RefreshBuffer = secondsOr(c.OAuth.RefreshBufferSeconds, 300*time.Second)
	c.OAuth.HTTPTimeout = secondsOr(c.OAuth.HTTPTimeoutSeconds, 10*time.Second)

	if c.OAuth.StateBackend == "" {
		c.OAuth.StateBackend = StateBackendPostgres
	}
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Validate rejects configurations that would only fail once a user tries to connect.
func (c *Config) Validate() error {
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}

	switch c.OAuth.StateBackend {
	case StateBackendPostgres, StateBackendRedis, StateBackendMemory:
	default:
		return fmt.Errorf("invalid oauth.state_backend %q", c.OAuth.StateBackend)
	}

	providers := map[string]ProviderConfig{
		"twitter":  c.Providers.Twitter,
		"linkedin": c.Providers.LinkedIn,
	}
	for name, p := range providers {
		if !p.Enabled {
			continue
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
	}

	return nil
}

func (p ProviderConfig) validate() error {
	if p.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("redirect_uri is required")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
