package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "SPOONJOY"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabaseDriver = "sqlite"
	defaultDatabaseDSN    = "spoonjoy.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultCookieName     = "spoonjoy_session"
	defaultSessionTTL     = 7 * 24 * 60
	defaultS3Region       = "us-east-1"
	defaultLoginURL       = "/login"
	defaultAppURL         = "/"
	defaultRedirectBase   = "http://localhost:8080"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	HTTPAllowedOrigins []string
	HTTPLoginURL       string
	HTTPAppURL         string
	HTTPSecureCookies  bool
	LogLevel           string
	LogFormat          string

	DatabaseDriver string
	DatabaseDSN    string

	SessionSigningKey string
	SessionCookieName string
	SessionTTLMinutes int

	StorageRegion        string
	StorageBucket        string
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StoragePublicBaseURL string

	OAuthRedirectBaseURL    string
	OAuthFlowSecret         string
	OAuthAutoRegister       bool
	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string
	GitHubOAuthClientID     string
	GitHubOAuthClientSecret string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.login_url", defaultLoginURL)
	configViper.SetDefault("http.app_url", defaultAppURL)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("storage.s3_region", defaultS3Region)
	configViper.SetDefault("oauth.redirect_base_url", defaultRedirectBase)
	configViper.SetDefault("oauth.auto_register", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:             configViper.GetString("http.address"),
		HTTPAllowedOrigins:      configViper.GetStringSlice("http.allowed_origins"),
		HTTPLoginURL:            configViper.GetString("http.login_url"),
		HTTPAppURL:              configViper.GetString("http.app_url"),
		HTTPSecureCookies:       configViper.GetBool("http.secure_cookies"),
		LogLevel:                configViper.GetString("log.level"),
		LogFormat:               configViper.GetString("log.format"),
		DatabaseDriver:          configViper.GetString("database.driver"),
		DatabaseDSN:             configViper.GetString("database.dsn"),
		SessionSigningKey:       configViper.GetString("session.signing_secret"),
		SessionCookieName:       configViper.GetString("session.cookie_name"),
		SessionTTLMinutes:       configViper.GetInt("session.ttl_minutes"),
		StorageRegion:           configViper.GetString("storage.s3_region"),
		StorageBucket:           configViper.GetString("storage.s3_bucket"),
		StorageEndpoint:         configViper.GetString("storage.s3_endpoint"),
		StorageAccessKey:        configViper.GetString("storage.s3_access_key"),
		StorageSecretKey:        configViper.GetString("storage.s3_secret_key"),
		StoragePublicBaseURL:    configViper.GetString("storage.public_base_url"),
		OAuthRedirectBaseURL:    configViper.GetString("oauth.redirect_base_url"),
		OAuthFlowSecret:         configViper.GetString("oauth.flow_secret"),
		OAuthAutoRegister:       configViper.GetBool("oauth.auto_register"),
		GoogleOAuthClientID:     configViper.GetString("oauth.google.client_id"),
		GoogleOAuthClientSecret: configViper.GetString("oauth.google.client_secret"),
		GitHubOAuthClientID:     configViper.GetString("oauth.github.client_id"),
		GitHubOAuthClientSecret: configViper.GetString("oauth.github.client_secret"),
	}

	if strings.TrimSpace(cfg.OAuthFlowSecret) == "" {
		cfg.OAuthFlowSecret = cfg.SessionSigningKey
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	switch strings.TrimSpace(c.DatabaseDriver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}
