package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the finmetrics server.
type Config struct {
	// Server
	ListenAddr        string `mapstructure:"listen_addr"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	CORSOrigins       string `mapstructure:"cors_origins"`
	FrontendURL       string `mapstructure:"frontend_url"`

	// Provider selection
	DefaultProvider string `mapstructure:"default_provider"`
	EnableFallback  bool   `mapstructure:"enable_fallback"`

	// API keys (all optional; a provider without its key is not registered)
	AlphaVantageAPIKey string `mapstructure:"alphavantage_api_key"`
	PolygonAPIKey      string `mapstructure:"polygon_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	AlphaVantageBaseURL string `mapstructure:"alphavantage_base_url"`
	PolygonBaseURL      string `mapstructure:"polygon_base_url"`

	// Schwab OAuth
	SchwabAppKey        string `mapstructure:"schwab_app_key"`
	SchwabAppSecret     string `mapstructure:"schwab_app_secret"`
	SchwabRedirectURI   string `mapstructure:"schwab_redirect_uri"`
	SchwabEncryptionKey string `mapstructure:"schwab_encryption_key"`
	SchwabTokenPath     string `mapstructure:"schwab_token_path"`
	SchwabBaseURL       string `mapstructure:"schwab_base_url"`
	SchwabAuthURL       string `mapstructure:"schwab_auth_url"`
	SchwabTokenURL      string `mapstructure:"schwab_token_url"`
}

// HasAlphaVantageKey reports whether the Alpha Vantage provider is usable.
func (c *Config) HasAlphaVantageKey() bool {
	return strings.TrimSpace(c.AlphaVantageAPIKey) != ""
}

// HasPolygonKey reports whether the Polygon provider is usable.
func (c *Config) HasPolygonKey() bool {
	return strings.TrimSpace(c.PolygonAPIKey) != ""
}

// HasSchwab reports whether the Schwab OAuth integration is fully configured.
func (c *Config) HasSchwab() bool {
	return c.SchwabAppKey != "" && c.SchwabAppSecret != "" &&
		c.SchwabRedirectURI != "" && c.SchwabEncryptionKey != ""
}

// CORSOriginList splits the comma-separated origins setting.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
//
// Expected environment variables:
//   - ALPHAVANTAGE_API_KEY (optional)
//   - POLYGON_API_KEY (optional)
//   - DEFAULT_PROVIDER (optional, defaults to yahoo)
//   - SCHWAB_APP_KEY / SCHWAB_APP_SECRET / SCHWAB_REDIRECT_URI /
//     SCHWAB_ENCRYPTION_KEY (optional, all required to enable Schwab)
//   - *_BASE_URL overrides (optional, default to production endpoints)
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("request_timeout_sec", 10)
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173,http://localhost:5174")
	v.SetDefault("frontend_url", "http://localhost:5173")

	// Provider defaults: yahoo is keyless and has no daily quota, so it is
	// both the default and the fallback target
	v.SetDefault("default_provider", "yahoo")
	v.SetDefault("enable_fallback", true)

	// Base URL defaults
	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("polygon_base_url", "https://api.polygon.io")
	v.SetDefault("schwab_base_url", "https://api.schwabapi.com")
	v.SetDefault("schwab_auth_url", "https://api.schwabapi.com/v1/oauth/authorize")
	v.SetDefault("schwab_token_url", "https://api.schwabapi.com/v1/oauth/token")
	v.SetDefault("schwab_token_path", "tokens/schwab_tokens.enc")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.finmetrics")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	// Bind environment variables
	v.BindEnv("listen_addr", "LISTEN_ADDR")
	v.BindEnv("request_timeout_sec", "REQUEST_TIMEOUT_SEC")
	v.BindEnv("cors_origins", "CORS_ORIGINS")
	v.BindEnv("frontend_url", "FRONTEND_URL")
	v.BindEnv("default_provider", "DEFAULT_PROVIDER")
	v.BindEnv("enable_fallback", "ENABLE_FALLBACK")
	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("polygon_api_key", "POLYGON_API_KEY")
	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("polygon_base_url", "POLYGON_BASE_URL")
	v.BindEnv("schwab_app_key", "SCHWAB_APP_KEY")
	v.BindEnv("schwab_app_secret", "SCHWAB_APP_SECRET")
	v.BindEnv("schwab_redirect_uri", "SCHWAB_REDIRECT_URI")
	v.BindEnv("schwab_encryption_key", "SCHWAB_ENCRYPTION_KEY")
	v.BindEnv("schwab_token_path", "SCHWAB_TOKEN_PATH")
	v.BindEnv("schwab_base_url", "SCHWAB_BASE_URL")
	v.BindEnv("schwab_auth_url", "SCHWAB_AUTH_URL")
	v.BindEnv("schwab_token_url", "SCHWAB_TOKEN_URL")

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.DefaultProvider = strings.ToLower(strings.TrimSpace(config.DefaultProvider))

	if config.RequestTimeoutSec <= 0 {
		return nil, fmt.Errorf("request_timeout_sec must be positive, got %d", config.RequestTimeoutSec)
	}

	return config, nil
}
