package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for optional settings.
const (
	DefaultTokenFile        = ".tokens.json"
	DefaultRefreshThreshold = 5 * time.Minute
	DefaultMaxRetries       = 3
	DefaultRetryDelay       = 1000 * time.Millisecond
	DefaultRecycleBinPath   = "/.recycle_bin"
	DefaultMaxDeletesPerDay = 100
	DefaultRetentionDays    = 30
	DefaultAllowedPaths     = "/"
	DefaultBlockedPaths     = "/.recycle_bin,/.system"
	DefaultRedirectURI      = "http://localhost:53682/callback"
)

// Config holds all environment-provided settings.
type Config struct {
	// Provider OAuth application credentials.
	AppKey      string
	AppSecret   string
	RedirectURI string

	// Encryption key for the token store (base64 or raw, >= 32 bytes).
	EncryptionKey string

	// Token lifecycle settings.
	TokenFile        string
	RefreshThreshold time.Duration
	MaxRetries       int
	RetryDelay       time.Duration

	// Deletion policy settings.
	RecycleBinPath   string
	MaxDeletesPerDay int
	RetentionDays    int
	AllowedPaths     []string
	BlockedPaths     []string
}

// Load reads configuration from BOXKITE_-prefixed environment variables and
// applies defaults. It does not validate; call Validate before serving.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("BOXKITE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("redirect-uri", DefaultRedirectURI)
	v.SetDefault("token-file", DefaultTokenFile)
	v.SetDefault("refresh-threshold-minutes", int(DefaultRefreshThreshold.Minutes()))
	v.SetDefault("max-retries", DefaultMaxRetries)
	v.SetDefault("retry-delay-ms", int(DefaultRetryDelay.Milliseconds()))
	v.SetDefault("recycle-bin-path", DefaultRecycleBinPath)
	v.SetDefault("max-deletes-per-day", DefaultMaxDeletesPerDay)
	v.SetDefault("retention-days", DefaultRetentionDays)
	v.SetDefault("allowed-paths", DefaultAllowedPaths)
	v.SetDefault("blocked-paths", DefaultBlockedPaths)

	return &Config{
		AppKey:           v.GetString("app-key"),
		AppSecret:        v.GetString("app-secret"),
		RedirectURI:      v.GetString("redirect-uri"),
		EncryptionKey:    v.GetString("encryption-key"),
		TokenFile:        v.GetString("token-file"),
		RefreshThreshold: time.Duration(v.GetInt("refresh-threshold-minutes")) * time.Minute,
		MaxRetries:       v.GetInt("max-retries"),
		RetryDelay:       time.Duration(v.GetInt("retry-delay-ms")) * time.Millisecond,
		RecycleBinPath:   v.GetString("recycle-bin-path"),
		MaxDeletesPerDay: v.GetInt("max-deletes-per-day"),
		RetentionDays:    v.GetInt("retention-days"),
		AllowedPaths:     SplitPathList(v.GetString("allowed-paths")),
		BlockedPaths:     SplitPathList(v.GetString("blocked-paths")),
	}
}

// Validate checks for the settings the server cannot run without.
// Failures here are fatal startup conditions, never retried.
func (c *Config) Validate() error {
	if c.AppKey == "" {
		return fmt.Errorf("BOXKITE_APP_KEY is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("BOXKITE_ENCRYPTION_KEY is required (generate with: openssl rand -base64 32)")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1, got %d", c.RetentionDays)
	}
	if c.MaxDeletesPerDay < 1 {
		return fmt.Errorf("max deletes per day must be at least 1, got %d", c.MaxDeletesPerDay)
	}
	if !strings.HasPrefix(c.RecycleBinPath, "/") {
		return fmt.Errorf("recycle bin path must be absolute, got %q", c.RecycleBinPath)
	}
	return nil
}

// SplitPathList splits a comma-separated path list, trimming whitespace and
// dropping empty entries.
func SplitPathList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
