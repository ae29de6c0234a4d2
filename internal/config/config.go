package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// EnvPrefix namespaces every environment override, e.g. STOREFRONT_API_URL.
const EnvPrefix = "STOREFRONT"

// Config holds all CLI configuration
type Config struct {
	API           APIConfig           `mapstructure:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
	Reconnect     ReconnectConfig     `mapstructure:"reconnect"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Keyring       KeyringConfig       `mapstructure:"keyring"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	App           AppConfig           `mapstructure:"app"`
}

// APIConfig points at the REST and SSE backend
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig points at the WebSocket service
type RealtimeConfig struct {
	URL    string `mapstructure:"url"`
	WSPath string `mapstructure:"ws_path"`
}

type ReconnectConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type NotificationsConfig struct {
	Limit int `mapstructure:"limit"`
}

// AdminConfig holds the back-office key. It is never written back to disk.
type AdminConfig struct {
	Key string `mapstructure:"key"`
}

// KeyringConfig selects where user tokens are kept
type KeyringConfig struct {
	Service string `mapstructure:"service"`
	FileDir string `mapstructure:"file_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`   // used by the TUI; empty means stderr
}

type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// DefaultPath returns ~/.config/storefront-realtime/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "storefront-realtime", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:9997")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("realtime.url", "http://localhost:9998")
	v.SetDefault("realtime.ws_path", "/api/ws")
	v.SetDefault("reconnect.delay", 3*time.Second)
	v.SetDefault("reconnect.max_attempts", 5)
	v.SetDefault("notifications.limit", realtime.DefaultNotificationLimit)
	v.SetDefault("admin.key", "")
	v.SetDefault("keyring.service", "storefront-realtime")
	v.SetDefault("keyring.file_dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("app.environment", "development")
}

// Load reads a .env file from the working directory when present, then the
// YAML file at path (missing files are fine), then STOREFRONT_* variables.
// Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := checkHTTPURL(c.API.URL); err != nil {
		errs = append(errs, "api.url "+err.Error())
	}
	if err := checkHTTPURL(c.Realtime.URL); err != nil {
		errs = append(errs, "realtime.url "+err.Error())
	}
	if !strings.HasPrefix(c.Realtime.WSPath, "/") {
		errs = append(errs, "realtime.ws_path must start with /")
	}
	if c.Reconnect.Delay <= 0 {
		errs = append(errs, "reconnect.delay must be positive")
	}
	if c.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "reconnect.max_attempts must be at least 1")
	}
	if c.Notifications.Limit < 1 {
		errs = append(errs, "notifications.limit must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not json or text", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("has no host: %q", raw)
	}
	return nil
}

// SDK converts the CLI configuration into a realtime.Config.
func (c *Config) SDK() realtime.Config {
	cfg := realtime.DefaultConfig()
	cfg.APIBaseURL = c.API.URL
	cfg.RealtimeBaseURL = c.Realtime.URL
	cfg.WebSocketPath = c.Realtime.WSPath
	cfg.ReconnectDelay = c.Reconnect.Delay
	cfg.MaxReconnectAttempts = c.Reconnect.MaxAttempts
	cfg.NotificationLimit = c.Notifications.Limit
	return cfg
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	admin := ""
	if c.Admin.Key != "" {
		admin = "[REDACTED]"
	}
	return fmt.Sprintf(
		"Config{API: %s, Realtime: %s%s, Reconnect: %s x%d, AdminKey: %s, Log: %s/%s, Environment: %s}",
		c.API.URL,
		c.Realtime.URL,
		c.Realtime.WSPath,
		c.Reconnect.Delay,
		c.Reconnect.MaxAttempts,
		admin,
		c.Logging.Level,
		c.Logging.Format,
		c.App.Environment,
	)
}
