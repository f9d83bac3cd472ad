// Package config loads the agent's runtime configuration from flags, environment and an optional file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SOLACE"

	defaultHTTPAddress     = "127.0.0.1:8787"
	defaultRecordStorePath = "solace-records.db"
	defaultLocalStorePath  = "solace-local.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "app_session"
	defaultIssuer          = "tauth"
	defaultFreeEntryLimit  = 5
	defaultCooldownDays    = 7
	defaultWriteTimeout    = 10 * time.Second
	defaultQueueOnTimeout  = true
	defaultProbeInterval   = 15 * time.Second
	defaultProbeTimeout    = 3 * time.Second
	defaultTimezone        = "Local"
	defaultAllowedUIOrigin = "http://localhost:5173"
)

// AppConfig captures runtime configuration for the agent.
type AppConfig struct {
	HTTPAddress      string
	AllowedOrigins   []string
	RecordStoreURL   string
	RecordStoreToken string
	RecordStorePath  string
	LocalStorePath   string
	LogLevel         string

	TAuthSigningKey string
	TAuthCookieName string
	TAuthIssuer     string

	FreeEntryLimit int64
	CooldownDays   int
	WriteTimeout   time.Duration
	QueueOnTimeout bool

	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	Timezone string
	Location *time.Location
}

// SessionsEnabled reports whether signed-in sessions are accepted.
func (c AppConfig) SessionsEnabled() bool {
	return strings.TrimSpace(c.TAuthSigningKey) != ""
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
	configViper.SetDefault("http.allowed_origins", []string{defaultAllowedUIOrigin})
	configViper.SetDefault("record_store.url", "")
	configViper.SetDefault("record_store.auth_token", "")
	configViper.SetDefault("record_store.path", defaultRecordStorePath)
	configViper.SetDefault("local_store.path", defaultLocalStorePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.signing_secret", "")
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("quota.free_entry_limit", defaultFreeEntryLimit)
	configViper.SetDefault("escalation.cooldown_days", defaultCooldownDays)
	configViper.SetDefault("submission.write_timeout", defaultWriteTimeout)
	configViper.SetDefault("submission.queue_on_timeout", defaultQueueOnTimeout)
	configViper.SetDefault("connectivity.probe_interval", defaultProbeInterval)
	configViper.SetDefault("connectivity.probe_timeout", defaultProbeTimeout)
	configViper.SetDefault("clock.timezone", defaultTimezone)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		AllowedOrigins:   configViper.GetStringSlice("http.allowed_origins"),
		RecordStoreURL:   strings.TrimSpace(configViper.GetString("record_store.url")),
		RecordStoreToken: configViper.GetString("record_store.auth_token"),
		RecordStorePath:  configViper.GetString("record_store.path"),
		LocalStorePath:   configViper.GetString("local_store.path"),
		LogLevel:         configViper.GetString("log.level"),
		TAuthSigningKey:  configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:  configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:      configViper.GetString("tauth.issuer"),
		FreeEntryLimit:   configViper.GetInt64("quota.free_entry_limit"),
		CooldownDays:     configViper.GetInt("escalation.cooldown_days"),
		WriteTimeout:     configViper.GetDuration("submission.write_timeout"),
		QueueOnTimeout:   configViper.GetBool("submission.queue_on_timeout"),
		ProbeInterval:    configViper.GetDuration("connectivity.probe_interval"),
		ProbeTimeout:     configViper.GetDuration("connectivity.probe_timeout"),
		Timezone:         strings.TrimSpace(configViper.GetString("clock.timezone")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("clock.timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = location

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.RecordStoreURL == "" && strings.TrimSpace(c.RecordStorePath) == "" {
		return fmt.Errorf("record_store.url or record_store.path is required")
	}
	if strings.TrimSpace(c.LocalStorePath) == "" {
		return fmt.Errorf("local_store.path is required")
	}
	if c.SessionsEnabled() {
		if strings.TrimSpace(c.TAuthCookieName) == "" {
			return fmt.Errorf("tauth.cookie_name is required when tauth.signing_secret is set")
		}
		if strings.TrimSpace(c.TAuthIssuer) == "" {
			return fmt.Errorf("tauth.issuer is required when tauth.signing_secret is set")
		}
	}
	if c.FreeEntryLimit <= 0 {
		return fmt.Errorf("quota.free_entry_limit must be positive")
	}
	if c.CooldownDays <= 0 {
		return fmt.Errorf("escalation.cooldown_days must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("submission.write_timeout must be positive")
	}
	if c.ProbeInterval <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("connectivity.probe_interval and connectivity.probe_timeout must be positive")
	}
	if c.Timezone == "" {
		return fmt.Errorf("clock.timezone is required")
	}
	return nil
}
