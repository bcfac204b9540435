// Package config provides configuration management for hcplog.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Defaults.
const (
	DefaultBackendURL       = "http://127.0.0.1:8000/api/v1"
	DefaultUserID           = 1
	DefaultTimeoutMS        = 20000
	DefaultUpdatedDisplayMS = 3000
	DefaultSSEAddr          = "127.0.0.1:8090"
	DefaultDevAddr          = "127.0.0.1:8000"
	DefaultLogLevel         = "info"
)

// Setting keys, used both in settings.json and as environment variables.
const (
	KeyBackendURL       = "HCPLOG_BACKEND_URL"
	KeyUserID           = "HCPLOG_USER_ID"
	KeyTimeoutMS        = "HCPLOG_TIMEOUT_MS"
	KeyUpdatedDisplayMS = "HCPLOG_UPDATED_DISPLAY_MS"
	KeySSEAddr          = "HCPLOG_SSE_ADDR"
	KeyDevAddr          = "HCPLOG_DEV_ADDR"
	KeyDevDBPath        = "HCPLOG_DEV_DB_PATH"
	KeyLexiconPath      = "HCPLOG_LEXICON_PATH"
	KeyLogLevel         = "HCPLOG_LOG_LEVEL"
	KeyRedactContacts   = "HCPLOG_REDACT_CONTACTS"
)

// Config holds hcplog configuration.
type Config struct {
	BackendURL       string `json:"HCPLOG_BACKEND_URL"`
	SSEAddr          string `json:"HCPLOG_SSE_ADDR"`
	DevAddr          string `json:"HCPLOG_DEV_ADDR"`
	DevDBPath        string `json:"HCPLOG_DEV_DB_PATH"`
	LexiconPath      string `json:"HCPLOG_LEXICON_PATH"`
	LogLevel         string `json:"HCPLOG_LOG_LEVEL"`
	UserID           int64  `json:"HCPLOG_USER_ID"`
	TimeoutMS        int    `json:"HCPLOG_TIMEOUT_MS"`
	UpdatedDisplayMS int    `json:"HCPLOG_UPDATED_DISPLAY_MS"`
	RedactContacts   bool   `json:"HCPLOG_REDACT_CONTACTS"`
}

var (
	global     *Config
	globalOnce sync.Once
	globalMu   sync.RWMutex
)

// DataDir returns the data directory path.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hcplog")
}

// DBPath returns the default dev backend database path.
func DBPath() string {
	return filepath.Join(DataDir(), "devbackend.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and the default settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BackendURL:       DefaultBackendURL,
		UserID:           DefaultUserID,
		TimeoutMS:        DefaultTimeoutMS,
		UpdatedDisplayMS: DefaultUpdatedDisplayMS,
		SSEAddr:          DefaultSSEAddr,
		DevAddr:          DefaultDevAddr,
		DevDBPath:        DBPath(),
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads the settings file over the defaults and applies environment overrides.
// A missing or malformed settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", SettingsPath()).Msg("Ignoring malformed settings file")
			cfg = Default()
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			*dst = v
		}
	}

	setString(KeyBackendURL, &c.BackendURL)
	setString(KeySSEAddr, &c.SSEAddr)
	setString(KeyDevAddr, &c.DevAddr)
	setString(KeyDevDBPath, &c.DevDBPath)
	setString(KeyLexiconPath, &c.LexiconPath)
	setString(KeyLogLevel, &c.LogLevel)
	setInt(KeyTimeoutMS, &c.TimeoutMS)
	setInt(KeyUpdatedDisplayMS, &c.UpdatedDisplayMS)
	if v, err := strconv.ParseInt(os.Getenv(KeyUserID), 10, 64); err == nil && v > 0 {
		c.UserID = v
	}
	if v, err := strconv.ParseBool(os.Getenv(KeyRedactContacts)); err == nil {
		c.RedactContacts = v
	}
}

// normalize restores defaults for values that cannot be used.
func (c *Config) normalize() {
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	if c.UserID <= 0 {
		c.UserID = DefaultUserID
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	if c.UpdatedDisplayMS <= 0 {
		c.UpdatedDisplayMS = DefaultUpdatedDisplayMS
	}
	if c.DevDBPath == "" {
		c.DevDBPath = DBPath()
	}
}

// Timeout returns the backend request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// UpdatedDisplay returns how long the updated status is shown.
func (c *Config) UpdatedDisplay() time.Duration {
	return time.Duration(c.UpdatedDisplayMS) * time.Millisecond
}

// Get returns the global configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load settings, using defaults")
			cfg = Default()
		}
		globalMu.Lock()
		global = cfg
		globalMu.Unlock()
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Reload re-reads the settings and replaces the global configuration.
// On error the previous configuration stays in place.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	Get()

	globalMu.Lock()
	global = cfg
	globalMu.Unlock()
	return cfg, nil
}
