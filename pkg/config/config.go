package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "apimages/pkg/errors"
)

// EnvPrefix prefixes every environment variable the fetcher reads
const EnvPrefix = "APIMAGES_"

// Config holds all configuration options for the image fetcher
type Config struct {
	// Remote API access
	API APIConfig `yaml:"api" json:"api"`

	// Where images and the checkpoint go
	Output OutputConfig `yaml:"output" json:"output"`

	// Run shaping
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Desktop notifications
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
}

// APIConfig holds the remote API settings
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Token        string        `yaml:"token" json:"token" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	SettingsFile string        `yaml:"settings_file" json:"settings_file"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory" validate:"required"`
	CheckpointFile string `yaml:"checkpoint_file" json:"checkpoint_file" validate:"required"`
}

// FetchConfig holds per-run limits
type FetchConfig struct {
	// ItemLimit caps both the site list and every device list; 0 means unlimited
	ItemLimit           int `yaml:"item_limit" json:"item_limit" validate:"gte=0"`
	ConcurrentDownloads int `yaml:"concurrent_downloads" json:"concurrent_downloads" validate:"min=1,max=10"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error disabled"`
	File  string `yaml:"file" json:"file"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// legacySettings is the settings.json shape used by earlier versions of the tool
type legacySettings struct {
	Token   string `json:"token"`
	BaseURL string `json:"base_url"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "apimages/1.0",
			SettingsFile: "settings.json",
		},
		Output: OutputConfig{
			BaseDirectory:  ".output",
			CheckpointFile: "site_status.json",
		},
		Fetch: FetchConfig{
			ItemLimit:           0,
			ConcurrentDownloads: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Notifications: NotificationConfig{
			Enabled: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv(EnvPrefix + "TOKEN"); token != "" {
		c.API.Token = token
	}
	if baseURL := os.Getenv(EnvPrefix + "BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if timeout := os.Getenv(EnvPrefix + "TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT: %w", EnvPrefix, err)
		}
		c.API.Timeout = d
	}

	if outputDir := os.Getenv(EnvPrefix + "OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if checkpoint := os.Getenv(EnvPrefix + "CHECKPOINT_FILE"); checkpoint != "" {
		c.Output.CheckpointFile = checkpoint
	}

	if limit := os.Getenv(EnvPrefix + "ITEM_LIMIT"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			return fmt.Errorf("invalid %sITEM_LIMIT: %w", EnvPrefix, err)
		}
		c.Fetch.ItemLimit = val
	}
	if concurrent := os.Getenv(EnvPrefix + "CONCURRENT_DOWNLOADS"); concurrent != "" {
		val, err := strconv.Atoi(concurrent)
		if err != nil {
			return fmt.Errorf("invalid %sCONCURRENT_DOWNLOADS: %w", EnvPrefix, err)
		}
		c.Fetch.ConcurrentDownloads = val
	}

	if notify := os.Getenv(EnvPrefix + "NOTIFICATIONS_ENABLED"); notify != "" {
		c.Notifications.Enabled = strings.ToLower(notify) == "true"
	}

	if logLevel := os.Getenv(EnvPrefix + "LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv(EnvPrefix + "LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadSettingsFile reads the legacy settings.json ({"token", "base_url"}).
// A missing file is not an error.
func (c *Config) LoadSettingsFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings legacySettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if settings.Token != "" {
		c.API.Token = settings.Token
	}
	if settings.BaseURL != "" {
		c.API.BaseURL = settings.BaseURL
	}
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".apimages.yaml",
		".apimages.yml",
		filepath.Join(home, ".config", "apimages", "config.yaml"),
		filepath.Join(home, ".config", "apimages", "config.yml"),
		filepath.Join(home, ".apimages.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. A missing token or base URL
// is reported as a configuration_missing error.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}

	var errs []error
	missing := false
	for _, fe := range fieldErrs {
		errs = append(errs, describeFieldError(fe))
		if fe.Tag() == "required" {
			missing = true
		}
	}

	joined := errors.Join(errs...)
	if missing {
		return apperrors.New(apperrors.KindConfigurationMissing, "validate configuration", joined)
	}
	return joined
}

// describeFieldError turns a validator failure into a readable message
func describeFieldError(fe validator.FieldError) error {
	field := fieldName(fe.StructNamespace())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "url":
		return fmt.Errorf("%s must be an absolute URL, got %q", field, fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must not exceed %s", field, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be positive", field)
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}

var fieldNames = map[string]string{
	"Config.API.BaseURL":               "api.base_url",
	"Config.API.Token":                 "api.token",
	"Config.API.Timeout":               "api.timeout",
	"Config.Output.BaseDirectory":      "output.base_directory",
	"Config.Output.CheckpointFile":     "output.checkpoint_file",
	"Config.Fetch.ItemLimit":           "fetch.item_limit",
	"Config.Fetch.ConcurrentDownloads": "fetch.concurrent_downloads",
	"Config.Logging.Level":             "logging.level",
}

func fieldName(namespace string) string {
	if name, ok := fieldNames[namespace]; ok {
		return name
	}
	return namespace
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy safe for display, with the token hidden
func (c *Config) Masked() *Config {
	masked := *c
	masked.API.Token = MaskSecret(c.API.Token)
	return &masked
}

// MaskSecret keeps the first and last four characters of long secrets
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.API.Token = token
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.API.Timeout = timeout
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if checkpoint, ok := flags["checkpoint"].(string); ok && checkpoint != "" {
		c.Output.CheckpointFile = checkpoint
	}
	if limit, ok := flags["limit"].(int); ok && limit >= 0 {
		c.Fetch.ItemLimit = limit
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Fetch.ConcurrentDownloads = concurrent
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if notify, ok := flags["notify"].(bool); ok {
		c.Notifications.Enabled = notify
	}
}

// LoadUnvalidated assembles configuration from every source without
// validating it. Commands that never call the API use it directly.
//
// Precedence: flags > environment (.env included) > settings.json > config file > defaults
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".apimages.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	settingsPath := config.API.SettingsFile
	if path, ok := flags["settings"].(string); ok && path != "" {
		settingsPath = path
	}
	if err := config.LoadSettingsFile(settingsPath); err != nil {
		return nil, err
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	return config, nil
}

// Load loads configuration from all sources and validates the result
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
