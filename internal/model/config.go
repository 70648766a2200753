package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// APIConfig holds the backend connection settings.
type APIConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"gte=0"`
	AuthScheme  string `mapstructure:"auth_scheme" yaml:"auth_scheme" validate:"required"`
	RefreshPath string `mapstructure:"refresh_path" yaml:"refresh_path" validate:"required,startswith=/"`
}

// Timeout returns the request timeout; zero means the transport default.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// NotificationConfig holds feed and persistence behaviour.
type NotificationConfig struct {
	// CriticalScores are match scores whose notifications need an explicit
	// confirmation before removal.
	CriticalScores []int `mapstructure:"critical_scores" yaml:"critical_scores" validate:"dive,gte=0,lte=100"`

	BellAnimationMs int `mapstructure:"bell_animation_ms" yaml:"bell_animation_ms" validate:"gte=0"`
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"gte=0"`
}

// BellAnimation returns how long the bell animates on new unread records.
func (c NotificationConfig) BellAnimation() time.Duration {
	return time.Duration(c.BellAnimationMs) * time.Millisecond
}

// PollInterval returns the match poll interval.
func (c NotificationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// StorageConfig locates the local durable state.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	File  string `mapstructure:"file" yaml:"file"`
}

// UserConfig supplies identity fields the access token may lack.
type UserConfig struct {
	Email string `mapstructure:"email" yaml:"email" validate:"omitempty,email"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme" validate:"omitempty,oneof=default mono"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig          `mapstructure:"api" yaml:"api"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	User          UserConfig         `mapstructure:"user" yaml:"user"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/lostfound, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lostfound")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/lostfound/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:     "http://localhost:3000",
			TimeoutSec:  30,
			AuthScheme:  "JWT",
			RefreshPath: "/auth/refresh",
		},
		Notifications: NotificationConfig{
			CriticalScores:  []int{81, 91},
			BellAnimationMs: 1000,
			PollIntervalSec: 120,
		},
		Storage: StorageConfig{Path: filepath.Join(dir, "state.db")},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "lostfound.log"),
		},
		Display: DisplayConfig{Theme: "default"},
	}
}

var configValidator = validator.New()

// Validate checks field constraints after defaults have been applied.
func (c *AppConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with LOSTFOUND_ override file values
// (LOSTFOUND_API_BASE_URL overrides api.base_url). A missing file yields
// the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOSTFOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys and env lookups resolve.
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout_sec", defaults.API.TimeoutSec)
	v.SetDefault("api.auth_scheme", defaults.API.AuthScheme)
	v.SetDefault("api.refresh_path", defaults.API.RefreshPath)
	v.SetDefault("notifications.critical_scores", defaults.Notifications.CriticalScores)
	v.SetDefault("notifications.bell_animation_ms", defaults.Notifications.BellAnimationMs)
	v.SetDefault("notifications.poll_interval_sec", defaults.Notifications.PollIntervalSec)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("user.email", "")
	v.SetDefault("display.theme", defaults.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("notifications", cfg.Notifications)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("user", cfg.User)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
