package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "INKSTONE"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "inkstone.db"
	defaultLogLevel     = "info"
	defaultJWKSURL      = "https://www.googleapis.com/oauth2/v3/certs"
	defaultTokenTTLMin  = 30
	defaultLLMBaseURL   = "https://openrouter.ai/api/v1"
	defaultLLMModel     = "openai/gpt-4o-mini"
	defaultLLMTimeoutS  = 60
	defaultTimezone     = "UTC"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	SigningSecret     string
	TokenTTL          time.Duration
	GoogleClientID    string
	GoogleJWKSURL     string
	NarrativeBaseURL  string
	NarrativeAPIKey   string
	NarrativeModel    string
	NarrativeTimeout  time.Duration
	Timezone          string
	RetainSourceNotes bool
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("narrative.base_url", defaultLLMBaseURL)
	configViper.SetDefault("narrative.model", defaultLLMModel)
	configViper.SetDefault("narrative.timeout_seconds", defaultLLMTimeoutS)
	configViper.SetDefault("journal.timezone", defaultTimezone)
	configViper.SetDefault("journal.retain_source_notes", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		GoogleClientID:    configViper.GetString("google.client_id"),
		GoogleJWKSURL:     configViper.GetString("google.jwks_url"),
		NarrativeBaseURL:  configViper.GetString("narrative.base_url"),
		NarrativeAPIKey:   configViper.GetString("narrative.api_key"),
		NarrativeModel:    configViper.GetString("narrative.model"),
		NarrativeTimeout:  time.Duration(configViper.GetInt("narrative.timeout_seconds")) * time.Second,
		Timezone:          configViper.GetString("journal.timezone"),
		RetainSourceNotes: configViper.GetBool("journal.retain_source_notes"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.NarrativeAPIKey) == "" {
		return fmt.Errorf("narrative.api_key is required")
	}
	if strings.TrimSpace(c.Timezone) == "" {
		return fmt.Errorf("journal.timezone is required")
	}
	return nil
}
