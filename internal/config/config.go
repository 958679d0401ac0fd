package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds blob storage and housekeeping configuration
type StorageConfig struct {
	BaseDir         string        `mapstructure:"base_dir"`
	MediaURL        string        `mapstructure:"media_url"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SweepGrace      time.Duration `mapstructure:"sweep_grace"`
	ExportRetention time.Duration `mapstructure:"export_retention"`
	ReportFont      string        `mapstructure:"report_font"`
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// LifecycleConfig holds request lifecycle rules
type LifecycleConfig struct {
	EditPolicy             string `mapstructure:"edit_policy"`
	RequireInvoiceOnCreate bool   `mapstructure:"require_invoice_on_create"`
	RequirePositiveAmount  bool   `mapstructure:"require_positive_amount"`
	// TimeZone dates invoice file names; empty uses the server's zone
	TimeZone               string `mapstructure:"time_zone"`
}

// LedgerConfig holds account book settings
type LedgerConfig struct {
	AutoRecordApproved bool `mapstructure:"auto_record_approved"`
}

// LarkConfig holds Lark API configuration. Notifications are off when
// app_id is empty.
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	ReviewChatID string `mapstructure:"review_chat_id"`
	AdminURL     string `mapstructure:"admin_url"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from a .env file, the config file and
// environment variables, in increasing order of precedence. A missing
// config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from a .env file without overriding
// variables already set in the environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/reimbursement.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Storage defaults
	v.SetDefault("storage.base_dir", "media")
	v.SetDefault("storage.media_url", "/media/")
	v.SetDefault("storage.max_upload_bytes", 10<<20)
	v.SetDefault("storage.sweep_interval", time.Hour)
	v.SetDefault("storage.sweep_grace", 24*time.Hour)
	v.SetDefault("storage.export_retention", 7*24*time.Hour)
	v.SetDefault("storage.report_font", "SimSun")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", 5*time.Minute)
	v.SetDefault("auth.refresh_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	// Lifecycle defaults
	v.SetDefault("lifecycle.edit_policy", "non_approved")
	v.SetDefault("lifecycle.require_invoice_on_create", true)
	v.SetDefault("lifecycle.require_positive_amount", true)
	v.SetDefault("lifecycle.time_zone", "")

	v.SetDefault("ledger.auto_record_approved", true)

	// Lark defaults
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.review_chat_id", "")
	v.SetDefault("lark.admin_url", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.review_chat_id", "LARK_REVIEW_CHAT_ID")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}

	switch c.Lifecycle.EditPolicy {
	case "non_approved", "rejected_only":
	default:
		return fmt.Errorf("lifecycle.edit_policy must be non_approved or rejected_only, got %q", c.Lifecycle.EditPolicy)
	}
	if c.Lifecycle.TimeZone != "" {
		if _, err := time.LoadLocation(c.Lifecycle.TimeZone); err != nil {
			return fmt.Errorf("lifecycle.time_zone: %w", err)
		}
	}

	// Lark is optional, but a half-configured app is a mistake
	if c.Lark.AppID != "" {
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
		}
		if c.Lark.ReviewChatID == "" {
			return fmt.Errorf("lark.review_chat_id is required when lark.app_id is set")
		}
	}

	return nil
}
